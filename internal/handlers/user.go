package handlers

import (
	"net/http"

	"paperboard/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	identity *services.IdentityService
}

func NewUserHandler(identity *services.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

// Me GET /users/me
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserView(currentUser(c)))
}

// UpdateMe PATCH /users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user, err := h.identity.UpdateProfile(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

// DeleteMe DELETE /users/me
func (h *UserHandler) DeleteMe(c *gin.Context) {
	if err := h.identity.DeleteAccount(c.Request.Context(), currentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Show GET /users/:id
func (h *UserHandler) Show(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.identity.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PublicUserView{ID: user.ID, Owner: user.Owner()})
}
