package server

import (
	"context"
	"log/slog"

	"docsum/app/api"
	"docsum/app/middleware"
	"docsum/app/state"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	AppName:               "docsum",
	ErrorHandler:          api.ErrorHandler,
	DisableStartupMessage: true,
}

type Deps struct {
	Docs  api.Documents
	State *state.State
	Debug api.DebugInfo
	// SyncOnFirstRequest, when set, is called on the first API request.
	SyncOnFirstRequest func()
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	app        *fiber.App
}

func NewServer(addr string, deps Deps) *Server {
	var (
		app           = fiber.New(config)
		checkHandler  = api.NewCheckHandler()
		resultHandler = api.NewResultHandler(deps.Docs, deps.State)
		fileHandler   = api.NewFileHandler(deps.Docs, deps.Debug.DataDir)
		debugHandler  = api.NewDebugHandler(deps.Docs, deps.State, deps.Debug)
		check         = app.Group("/check")
	)

	if deps.SyncOnFirstRequest != nil {
		app.Use(middleware.InitialSync("/api", deps.State, deps.SyncOnFirstRequest))
	}
	apiv1 := app.Group("/api")

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Get("/results", resultHandler.HandleGetResults)
	apiv1.Delete("/results/:filename", resultHandler.HandleDeleteResult)
	apiv1.Post("/process-url", resultHandler.HandleProcessURL)
	apiv1.Post("/save-to-drive", resultHandler.HandleSaveToDrive)
	apiv1.Post("/upload", fileHandler.HandleUpload)
	apiv1.Get("/debug", debugHandler.HandleDebug)

	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
		app:        app,
	}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until Stop is called.
func (s *Server) Run() error {
	s.logger.Info("server started", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	defer s.logger.Info("server stopped")
	return s.app.ShutdownWithContext(ctx)
}
