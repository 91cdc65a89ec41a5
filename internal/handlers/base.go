package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"paperboard/internal/apperr"
	"paperboard/internal/middleware"
	"paperboard/internal/models"
	"paperboard/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func init() {
	// report json field names in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	}
}

// respondError writes the error envelope for err.
func respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// respondBindError reports a request that failed binding. Values that break
// a validation rule are invalid_input (400); anything that could not be
// decoded at all is 422.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		respondError(c, fmt.Errorf("%s: %w", validationMessage(verrs[0]), apperr.ErrInvalidInput))
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, apperr.Body{
		Code:   apperr.Code(apperr.ErrInvalidInput),
		Detail: "malformed request body",
	})
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	isText := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if isText {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isText {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return field + " is invalid"
}

// uuidParam parses a path parameter as a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, apperr.Body{
			Code:   apperr.Code(apperr.ErrInvalidInput),
			Detail: fmt.Sprintf("%s must be a UUID", name),
		})
		return uuid.Nil, false
	}
	return id, true
}

// currentUser is only called behind AuthRequired.
func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

type PostView struct {
	PostID        uuid.UUID    `json:"post_id"`
	URL           string       `json:"url"`
	FileType      string       `json:"file_type"`
	FileName      string       `json:"file_name"`
	Caption       string       `json:"caption"`
	Owner         models.Owner `json:"owner"`
	AverageRating float64      `json:"average_rating"`
	VoteCount     int          `json:"vote_count"`
	CreatedAt     time.Time    `json:"created_at"`
}

func newPostView(p *models.Post) PostView {
	return PostView{
		PostID:        p.ID,
		URL:           p.URL,
		FileType:      p.FileType,
		FileName:      p.FileName,
		Caption:       p.Caption,
		Owner:         p.User.Owner(),
		AverageRating: p.AverageRating,
		VoteCount:     p.VoteCount,
		CreatedAt:     p.CreatedAt,
	}
}

func newPostViews(posts []models.Post) []PostView {
	out := make([]PostView, 0, len(posts))
	for i := range posts {
		out = append(out, newPostView(&posts[i]))
	}
	return out
}

type CommentView struct {
	ID              uuid.UUID    `json:"id"`
	PostID          uuid.UUID    `json:"post_id"`
	Body            string       `json:"body"`
	BodyHTML        string       `json:"body_html"`
	ParentCommentID *uuid.UUID   `json:"parent_comment_id"`
	Owner           models.Owner `json:"owner"`
	CreatedAt       time.Time    `json:"created_at"`
}

func newCommentView(cm *models.Comment) CommentView {
	return CommentView{
		ID:              cm.ID,
		PostID:          cm.PostID,
		Body:            cm.Body,
		BodyHTML:        utils.RenderMarkdown(cm.Body),
		ParentCommentID: cm.ParentID,
		Owner:           cm.User.Owner(),
		CreatedAt:       cm.CreatedAt,
	}
}

// UserView is what a user sees about themselves.
type UserView struct {
	ID           uuid.UUID          `json:"id"`
	Email        string             `json:"email"`
	IsActive     bool               `json:"is_active"`
	IsSuperuser  bool               `json:"is_superuser"`
	IsVerified   bool               `json:"is_verified"`
	Username     string             `json:"username"`
	ProfileType  models.ProfileType `json:"profile_type"`
	Organization string             `json:"organization"`
	Program      *string            `json:"program"`
	YearOfStudy  *int               `json:"year_of_study"`
	JobTitle     *string            `json:"job_title"`
}

func newUserView(u *models.User) UserView {
	return UserView{
		ID:           u.ID,
		Email:        u.Email,
		IsActive:     u.IsActive,
		IsSuperuser:  u.IsSuperuser,
		IsVerified:   u.IsVerified,
		Username:     u.Username,
		ProfileType:  u.ProfileType.Normalized(),
		Organization: u.Organization,
		Program:      u.Program,
		YearOfStudy:  u.YearOfStudy,
		JobTitle:     u.JobTitle,
	}
}

// PublicUserView is what anyone may see about a user.
type PublicUserView struct {
	ID uuid.UUID `json:"id"`
	models.Owner
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
