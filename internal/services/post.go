package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"paperboard/internal/apperr"
	"paperboard/internal/cache"
	"paperboard/internal/models"
	"paperboard/internal/store"
	"paperboard/internal/utils"

	"github.com/google/uuid"
)

const (
	QueueLimit        = 30
	LeaderboardLimit  = 20
	MaxCaptionLength  = 2000
	defaultUploadName = "upload"
)

type PostOptions struct {
	MaxUploadBytes int64
}

type PostService struct {
	store   store.ContentStore
	objects store.ObjectStore
	board   *cache.Leaderboard
	log     *slog.Logger
	opts    PostOptions
}

func NewPostService(s store.ContentStore, objects store.ObjectStore, board *cache.Leaderboard, log *slog.Logger, opts PostOptions) *PostService {
	return &PostService{store: s, objects: objects, board: board, log: log, opts: opts}
}

func (s *PostService) ListAll(ctx context.Context) ([]models.Post, error) {
	return s.store.ListPosts(ctx)
}

func (s *PostService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	return s.store.ListPostsByUser(ctx, userID)
}

// Queue lists posts the user has not rated yet.
func (s *PostService) Queue(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	return s.store.ListUnrated(ctx, userID, QueueLimit)
}

// Leaderboard lists the best rated posts. Results are cached until the next
// vote, upload or delete, or until the TTL runs out.
func (s *PostService) Leaderboard(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	hit, err := s.board.Get(ctx, &posts)
	if err != nil {
		s.log.Warn("leaderboard cache read failed", "error", err)
	} else if hit {
		return posts, nil
	}

	gen := s.board.Generation()
	posts, err = s.store.ListTopRated(ctx, LeaderboardLimit)
	if err != nil {
		return nil, err
	}
	if _, err := s.board.Store(ctx, gen, posts); err != nil {
		s.log.Warn("leaderboard cache write failed", "error", err)
	}
	return posts, nil
}

type UploadInput struct {
	FileName    string
	ContentType string
	Caption     string
	Data        []byte
}

// Upload sends the document to object storage and records the post. If the
// post cannot be saved the stored object is removed again.
func (s *PostService) Upload(ctx context.Context, owner uuid.UUID, in UploadInput) (*models.Post, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("uploaded file is empty: %w", apperr.ErrInvalidInput)
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(in.Data)) > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("uploaded file exceeds %d bytes: %w", s.opts.MaxUploadBytes, apperr.ErrInvalidInput)
	}
	fileType, err := DetectFileType(in.ContentType, in.FileName, in.Data)
	if err != nil {
		return nil, err
	}
	caption := utils.StripHTML(in.Caption)
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return nil, fmt.Errorf("caption must be at most %d characters: %w", MaxCaptionLength, apperr.ErrInvalidInput)
	}

	name := in.FileName
	if name == "" {
		name = defaultUploadName
	}
	obj, err := s.objects.Store(ctx, in.Data, name)
	if err != nil {
		return nil, err
	}
	if obj.Name != "" {
		name = obj.Name
	}

	post := &models.Post{
		UserID:         owner,
		Caption:        caption,
		URL:            obj.URL,
		FileType:       fileType,
		FileName:       name,
		ExternalFileID: obj.ExternalID,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		if rmErr := s.objects.Remove(context.WithoutCancel(ctx), obj.ExternalID); rmErr != nil {
			s.log.Error("failed to remove orphaned upload", "external_id", obj.ExternalID, "error", rmErr)
		}
		return nil, err
	}

	s.log.Info("post uploaded", "post_id", post.ID, "user_id", owner, "file_type", fileType, "bytes", len(in.Data))
	invalidateLeaderboard(ctx, s.board, s.log)
	return post, nil
}

// Delete removes the post, then its stored file. Only the owner may delete.
// Removing the file is best effort: the post is already gone by then.
func (s *PostService) Delete(ctx context.Context, postID, requesterID uuid.UUID) error {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != requesterID {
		return fmt.Errorf("post %s belongs to another user: %w", postID, apperr.ErrForbidden)
	}

	if err := s.store.DeletePost(ctx, postID); err != nil {
		return err
	}
	s.log.Info("post deleted", "post_id", postID, "user_id", requesterID)
	invalidateLeaderboard(ctx, s.board, s.log)

	if post.ExternalFileID != "" {
		err := s.objects.Remove(context.WithoutCancel(ctx), post.ExternalFileID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			s.log.Warn("stored file already gone", "post_id", postID, "external_id", post.ExternalFileID)
		case err != nil:
			s.log.Warn("failed to remove stored file of deleted post", "post_id", postID, "external_id", post.ExternalFileID, "error", err)
		}
	}
	return nil
}
