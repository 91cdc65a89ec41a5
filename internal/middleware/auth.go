package middleware

import (
	"context"
	"fmt"
	"strings"

	"paperboard/internal/apperr"
	"paperboard/internal/models"

	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// TokenResolver turns a bearer token into the active user it belongs to.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
}

// AbortWithError writes the error envelope for err and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := apperr.Envelope(err)
	c.AbortWithStatusJSON(status, body)
}

// AuthRequired ensures a valid bearer token and loads its user into the context.
func AuthRequired(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			AbortWithError(c, fmt.Errorf("missing bearer token: %w", apperr.ErrUnauthorized))
			return
		}

		user, err := resolver.ResolveToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			AbortWithError(c, err)
			return
		}

		c.Set(CheckUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user loaded by AuthRequired, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
