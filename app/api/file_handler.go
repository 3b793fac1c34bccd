package api

import (
	"errors"
	"log/slog"
	"path/filepath"

	"docsum/loader/service"
	"docsum/store"
	"docsum/types"

	"github.com/gofiber/fiber/v2"
)

type FileHandler struct {
	docs    Documents
	dataDir string
}

func NewFileHandler(docs Documents, dataDir string) *FileHandler {
	return &FileHandler{
		docs:    docs,
		dataDir: dataDir,
	}
}

// HandleUpload stores an uploaded PDF in the data directory and processes it.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrMissingField("file")
	}

	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) || !types.IsSource(name) {
		return NewError(fiber.StatusBadRequest, "only PDF files are accepted")
	}

	path := filepath.Join(h.dataDir, name)
	if err := c.SaveFile(file, path); err != nil {
		return ErrInternal(err)
	}
	slog.Info("[UPLOAD] file saved", "path", path)

	// a replaced file must not be answered from its old cache
	if err := store.RemoveIfExists(store.SidecarPath(path)); err != nil {
		return ErrInternal(err)
	}

	rec, _, err := h.docs.ProcessFile(c.UserContext(), path)
	if errors.Is(err, service.ErrInProgress) {
		return NewError(fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return ErrInternal(err)
	}
	return c.JSON(rec)
}
