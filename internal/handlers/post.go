package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"paperboard/internal/apperr"
	"paperboard/internal/services"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts          *services.PostService
	maxUploadBytes int64
}

func NewPostHandler(posts *services.PostService, maxUploadBytes int64) *PostHandler {
	return &PostHandler{posts: posts, maxUploadBytes: maxUploadBytes}
}

// ListAll GET /posts
func (h *PostHandler) ListAll(c *gin.Context) {
	posts, err := h.posts.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostViews(posts))
}

// ListMine GET /posts/me, 204 when the caller has no posts
func (h *PostHandler) ListMine(c *gin.Context) {
	posts, err := h.posts.ListMine(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(posts) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, newPostViews(posts))
}

// Queue GET /posts/queue
func (h *PostHandler) Queue(c *gin.Context) {
	posts, err := h.posts.Queue(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostViews(posts))
}

// Leaderboard GET /posts/leaderboard
func (h *PostHandler) Leaderboard(c *gin.Context) {
	posts, err := h.posts.Leaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostViews(posts))
}

// Upload POST /posts/upload, multipart form with "file" and optional "caption"
func (h *PostHandler) Upload(c *gin.Context) {
	// leave room for the other form fields
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Errorf("uploaded file exceeds %d bytes: %w", h.maxUploadBytes, apperr.ErrInvalidInput))
			return
		}
		respondError(c, fmt.Errorf("a file is required: %w", apperr.ErrInvalidInput))
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, fmt.Errorf("read upload: %w", err))
		return
	}
	defer f.Close()

	// one byte past the limit is enough to know it is too big
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		respondError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	post, err := h.posts.Upload(c.Request.Context(), currentUser(c).ID, services.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Caption:     c.PostForm("caption"),
		Data:        data,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPostView(post))
}

// Delete DELETE /posts/:post_id
func (h *PostHandler) Delete(c *gin.Context) {
	postID, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), postID, currentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Message: "Post deleted successfully"})
}
