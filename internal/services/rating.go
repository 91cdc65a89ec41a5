package services

import (
	"context"
	"fmt"
	"log/slog"

	"paperboard/internal/apperr"
	"paperboard/internal/cache"
	"paperboard/internal/store"

	"github.com/google/uuid"
)

const (
	MinScore = 1
	MaxScore = 5
)

// RatingService records one vote per user per post and keeps the post's
// vote_count and average_rating in step with the recorded ratings.
type RatingService struct {
	store store.ContentStore
	board *cache.Leaderboard
	log   *slog.Logger
}

func NewRatingService(s store.ContentStore, board *cache.Leaderboard, log *slog.Logger) *RatingService {
	return &RatingService{store: s, board: board, log: log}
}

// CastVote fails with apperr.ErrAlreadyVoted on a second vote by the same
// user and leaves the aggregate untouched.
func (s *RatingService) CastVote(ctx context.Context, postID, userID uuid.UUID, score int) error {
	if score < MinScore || score > MaxScore {
		return fmt.Errorf("score must be between %d and %d: %w", MinScore, MaxScore, apperr.ErrInvalidInput)
	}
	if err := s.store.CastVote(ctx, postID, userID, score); err != nil {
		return err
	}

	s.log.Info("vote cast", "post_id", postID, "user_id", userID, "score", score)
	invalidateLeaderboard(ctx, s.board, s.log)
	return nil
}

func invalidateLeaderboard(ctx context.Context, board *cache.Leaderboard, log *slog.Logger) {
	if err := board.Invalidate(context.WithoutCancel(ctx)); err != nil {
		log.Warn("failed to invalidate leaderboard cache", "error", err)
	}
}
