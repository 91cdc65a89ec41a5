package handlers

import (
	"net/http"

	"paperboard/internal/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// List GET /comments/:post_id
func (h *CommentHandler) List(c *gin.Context) {
	postID, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	comments, err := h.comments.List(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]CommentView, 0, len(comments))
	for i := range comments {
		out = append(out, newCommentView(&comments[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Create POST /comments/:post_id
func (h *CommentHandler) Create(c *gin.Context) {
	postID, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), postID, currentUser(c).ID, req.Body, req.ParentCommentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCommentView(comment))
}

// Delete DELETE /comments/:comment_id
func (h *CommentHandler) Delete(c *gin.Context) {
	commentID, ok := uuidParam(c, "comment_id")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), commentID, currentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true, Message: "Comment deleted successfully"})
}
