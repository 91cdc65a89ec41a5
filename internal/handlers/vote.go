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

type VoteHandler struct {
	ratings *services.RatingService
}

func NewVoteHandler(ratings *services.RatingService) *VoteHandler {
	return &VoteHandler{ratings: ratings}
}

// Rate POST /posts/:post_id/rate. The score comes from ?score= when present,
// else from a JSON body {"score": n}.
func (h *VoteHandler) Rate(c *gin.Context) {
	postID, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}

	var req rateRequest
	var err error
	if _, inQuery := c.GetQuery("score"); inQuery {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if errors.Is(err, io.EOF) {
		respondError(c, fmt.Errorf("score is required: %w", apperr.ErrInvalidInput))
		return
	}
	if err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.ratings.CastVote(c.Request.Context(), postID, currentUser(c).ID, *req.Score); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Vote registered"})
}
