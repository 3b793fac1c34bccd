package api

import (
	"context"
	"errors"
	"net/url"

	"docsum/app/state"
	"docsum/loader/service"
	"docsum/remote"
	"docsum/types"

	"github.com/gofiber/fiber/v2"
)

// Documents is the processing surface the handlers drive.
type Documents interface {
	ProcessFile(ctx context.Context, path string) (types.DocumentRecord, service.Outcome, error)
	ProcessURL(ctx context.Context, rawURL string) (types.DocumentRecord, error)
	Delete(ctx context.Context, name string) error
	SaveToDrive(ctx context.Context, name string) (remote.File, error)
	Resync(ctx context.Context) (remote.SyncReport, error)
}

type ResultHandler struct {
	docs  Documents
	state *state.State
}

func NewResultHandler(docs Documents, st *state.State) *ResultHandler {
	return &ResultHandler{
		docs:  docs,
		state: st,
	}
}

func (h *ResultHandler) HandleGetResults(c *fiber.Ctx) error {
	return c.JSON(h.state.List())
}

func (h *ResultHandler) HandleDeleteResult(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil || name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.DeleteResponse{Success: false, Message: "invalid filename"})
	}

	if err := h.docs.Delete(c.UserContext(), name); err != nil {
		code := fiber.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidName) {
			code = fiber.StatusBadRequest
		}
		return c.Status(code).JSON(types.DeleteResponse{Success: false, Message: err.Error()})
	}
	return c.JSON(types.DeleteResponse{Success: true})
}

func (h *ResultHandler) HandleProcessURL(c *fiber.Ctx) error {
	var params types.ProcessURLParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if params.URL == "" {
		return ErrMissingField("url")
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	rec, err := h.docs.ProcessURL(c.UserContext(), params.URL)
	if err != nil {
		return ErrInternal(err)
	}
	return c.JSON(rec)
}

func (h *ResultHandler) HandleSaveToDrive(c *fiber.Ctx) error {
	var params types.SaveToDriveParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if params.Filename == "" {
		return ErrMissingField("filename")
	}

	f, err := h.docs.SaveToDrive(c.UserContext(), params.Filename)
	switch {
	case errors.Is(err, service.ErrUnknownDocument):
		return ErrNotFound(params.Filename, "document")
	case errors.Is(err, remote.ErrNoFolder):
		return NewError(fiber.StatusInternalServerError, "DRIVE_FOLDER_ID is not configured")
	case err != nil:
		return ErrInternal(err)
	}

	return c.JSON(types.SaveToDriveResponse{
		Success: true,
		FileID:  f.ID,
		Name:    f.Name,
	})
}
