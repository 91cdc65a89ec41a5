package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"paperboard/internal/apperr"
	"paperboard/internal/models"
	"paperboard/internal/store"

	"github.com/google/uuid"
)

const MaxCommentLength = 1000

type CommentService struct {
	store store.ContentStore
	log   *slog.Logger
}

func NewCommentService(s store.ContentStore, log *slog.Logger) *CommentService {
	return &CommentService{store: s, log: log}
}

// List returns the post's comments oldest first, flat, each with its author.
func (s *CommentService) List(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	return s.store.ListComments(ctx, postID)
}

// Create adds a comment, or a reply when parentID is set.
func (s *CommentService) Create(ctx context.Context, postID, authorID uuid.UUID, body string, parentID *uuid.UUID) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("comment body must not be empty: %w", apperr.ErrInvalidInput)
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return nil, fmt.Errorf("comment body must be at most %d characters: %w", MaxCommentLength, apperr.ErrInvalidInput)
	}

	comment := &models.Comment{
		PostID:   postID,
		UserID:   authorID,
		ParentID: parentID,
		Body:     body,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	s.log.Info("comment created", "comment_id", comment.ID, "post_id", postID, "user_id", authorID)
	return comment, nil
}

// Delete removes the comment and its replies. Only the author may delete.
func (s *CommentService) Delete(ctx context.Context, commentID, requesterID uuid.UUID) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != requesterID {
		return fmt.Errorf("comment %s belongs to another user: %w", commentID, apperr.ErrForbidden)
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.log.Info("comment deleted", "comment_id", commentID, "user_id", requesterID)
	return nil
}
