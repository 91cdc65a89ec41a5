package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"paperboard/internal/apperr"
	"paperboard/internal/cache"
	"paperboard/internal/models"
	"paperboard/internal/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVoteScenario(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewRatingService(st, nil, discardLogger())

	owner := seedUser(t, st, "owner")
	a := seedUser(t, st, "a")
	b := seedUser(t, st, "b")
	p := seedPost(t, st, owner, "f1")

	got, _ := st.GetPost(ctx, p.ID)
	assert.Equal(t, 0, got.VoteCount)
	assert.Zero(t, got.AverageRating)

	require.NoError(t, svc.CastVote(ctx, p.ID, a.ID, 5))
	got, _ = st.GetPost(ctx, p.ID)
	assert.Equal(t, 1, got.VoteCount)
	assert.InDelta(t, 5.0, got.AverageRating, 1e-9)

	require.NoError(t, svc.CastVote(ctx, p.ID, b.ID, 3))
	got, _ = st.GetPost(ctx, p.ID)
	assert.Equal(t, 2, got.VoteCount)
	assert.InDelta(t, 4.0, got.AverageRating, 1e-9)

	err := svc.CastVote(ctx, p.ID, a.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrAlreadyVoted)
	got, _ = st.GetPost(ctx, p.ID)
	assert.Equal(t, 2, got.VoteCount)
	assert.InDelta(t, 4.0, got.AverageRating, 1e-9)
}

func TestCastVoteRejectsOutOfRangeScores(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewRatingService(st, nil, discardLogger())
	owner := seedUser(t, st, "owner")
	p := seedPost(t, st, owner, "f1")

	for _, score := range []int{0, 6, -3} {
		err := svc.CastVote(ctx, p.ID, owner.ID, score)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, "score %d", score)
	}
	ratings, err := st.ListRatings(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestCastVoteMissingPost(t *testing.T) {
	st := memory.New()
	svc := NewRatingService(st, nil, discardLogger())
	u := seedUser(t, st, "u")
	assert.ErrorIs(t, svc.CastVote(context.Background(), uuid.New(), u.ID, 3), apperr.ErrNotFound)
}

func TestAverageMatchesRatingsAfterConcurrentVotes(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewRatingService(st, nil, discardLogger())
	owner := seedUser(t, st, "owner")
	p := seedPost(t, st, owner, "f1")

	const n = 40
	voters := make([]*models.User, n)
	for i := range voters {
		voters[i] = seedUser(t, st, fmt.Sprintf("voter%d", i))
	}

	var wg sync.WaitGroup
	for i, v := range voters {
		wg.Add(1)
		go func(id uuid.UUID, score int) {
			defer wg.Done()
			assert.NoError(t, svc.CastVote(ctx, p.ID, id, score))
			// a second attempt by the same voter always fails
			assert.ErrorIs(t, svc.CastVote(ctx, p.ID, id, score), apperr.ErrAlreadyVoted)
		}(v.ID, i%MaxScore+1)
	}
	wg.Wait()

	ratings, err := st.ListRatings(ctx, p.ID)
	require.NoError(t, err)
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	got, err := st.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, len(ratings), got.VoteCount)
	assert.Equal(t, n, got.VoteCount)
	assert.InDelta(t, float64(sum)/float64(n), got.AverageRating, 1e-9)
}

func TestCastVoteInvalidatesLeaderboard(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	lru, err := cache.NewLRU(16)
	require.NoError(t, err)
	svc := NewRatingService(st, cache.NewLeaderboard(lru, time.Minute), discardLogger())
	owner := seedUser(t, st, "owner")
	p := seedPost(t, st, owner, "f1")

	require.NoError(t, lru.Set(ctx, cache.LeaderboardKey, []string{"stale"}, time.Minute))
	require.NoError(t, svc.CastVote(ctx, p.ID, owner.ID, 4))

	var v []string
	hit, err := lru.Get(ctx, cache.LeaderboardKey, &v)
	require.NoError(t, err)
	assert.False(t, hit)
}
