// Package store declares the storage capabilities the services depend on.
// internal/db provides the postgres implementation and internal/store/memory
// an in-process one with the same invariants.
package store

import (
	"context"

	"paperboard/internal/models"

	"github.com/google/uuid"
)

// ContentStore owns posts, comments and ratings. Returned posts and comments
// carry their author in User.
type ContentStore interface {
	Ping(ctx context.Context) error

	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListPostsByUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error)
	// ListUnrated returns up to limit posts userID has not rated.
	ListUnrated(ctx context.Context, userID uuid.UUID, limit int) ([]models.Post, error)
	// ListTopRated returns up to limit posts by average rating, highest first.
	ListTopRated(ctx context.Context, limit int) ([]models.Post, error)
	// DeletePost removes the post with its comments and ratings.
	DeletePost(ctx context.Context, id uuid.UUID) error

	// CastVote records the rating and folds score into the post's aggregate
	// in one transaction. It fails with apperr.ErrAlreadyVoted if the user has
	// already rated the post, and apperr.ErrNotFound if the post is missing.
	CastVote(ctx context.Context, postID, userID uuid.UUID, score int) error
	ListRatings(ctx context.Context, postID uuid.UUID) ([]models.Rating, error)

	ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	// CreateComment fails with apperr.ErrNotFound for a missing post and
	// apperr.ErrParentNotFound for a missing parent; nothing is written then.
	CreateComment(ctx context.Context, comment *models.Comment) error
	// DeleteComment removes the comment and all replies below it.
	DeleteComment(ctx context.Context, id uuid.UUID) error
}

// UserStore owns user rows. Deleting a user removes their posts, comments and
// ratings, and re-derives the aggregates of posts they had rated.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// StoredObject is the reference object storage hands back for a file.
type StoredObject struct {
	URL        string
	ExternalID string
	Name       string
}

// ObjectStore keeps uploaded file bytes outside the database.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, name string) (*StoredObject, error)
	// Remove fails with apperr.ErrNotFound if the object is already gone.
	Remove(ctx context.Context, externalID string) error
}
