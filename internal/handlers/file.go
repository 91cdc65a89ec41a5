package handlers

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// FileSource is an object store that can hand stored bytes back.
type FileSource interface {
	Open(ctx context.Context, externalID string) ([]byte, error)
}

// FileHandler serves uploads kept by a local object store, so the URLs it
// hands out resolve when no external file host is configured.
type FileHandler struct {
	files FileSource
}

func NewFileHandler(files FileSource) *FileHandler {
	return &FileHandler{files: files}
}

// Serve GET /files/:id/*name
func (h *FileHandler) Serve(c *gin.Context) {
	data, err := h.files.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if name := strings.TrimPrefix(c.Param("name"), "/"); name != "" {
		c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	}
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}
