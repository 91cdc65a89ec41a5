// Package memory is an in-process implementation of the store interfaces.
// It enforces the same invariants as the postgres store and backs the
// service tests and the -storage=memory mode.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"paperboard/internal/apperr"
	"paperboard/internal/models"

	"github.com/google/uuid"
)

type ratingKey struct {
	userID uuid.UUID
	postID uuid.UUID
}

// Store implements store.ContentStore and store.UserStore.
type Store struct {
	mu sync.RWMutex

	users    map[uuid.UUID]*models.User
	posts    map[uuid.UUID]*models.Post
	comments map[uuid.UUID]*models.Comment
	ratings  map[ratingKey]*models.Rating

	// insertion order, used to keep listings stable
	postOrder    []uuid.UUID
	commentOrder []uuid.UUID
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		posts:    make(map[uuid.UUID]*models.Post),
		comments: make(map[uuid.UUID]*models.Comment),
		ratings:  make(map[ratingKey]*models.Rating),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// === Users ===

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return fmt.Errorf("email %s is already registered: %w", user.Email, apperr.ErrConflict)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, apperr.ErrNotFound)
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, apperr.ErrNotFound)
	}
	email := strings.ToLower(user.Email)
	for id, u := range s.users {
		if id != user.ID && strings.ToLower(u.Email) == email {
			return fmt.Errorf("email %s is already registered: %w", user.Email, apperr.ErrConflict)
		}
	}
	user.UpdatedAt = time.Now().UTC()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}

	// posts rated by the user but owned by someone else need their aggregate re-derived
	touched := map[uuid.UUID]bool{}
	for k := range s.ratings {
		if k.userID == id {
			touched[k.postID] = true
			delete(s.ratings, k)
		}
	}
	for pid, p := range s.posts {
		if p.UserID == id {
			s.deletePostLocked(pid)
		}
	}
	for cid, c := range s.comments {
		if c.UserID == id {
			s.deleteCommentLocked(cid)
		}
	}
	delete(s.users, id)

	for pid := range touched {
		if p, ok := s.posts[pid]; ok {
			s.recomputeLocked(p)
		}
	}
	return nil
}

// === Posts ===

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[post.UserID]; !ok {
		return fmt.Errorf("post owner %s: %w", post.UserID, apperr.ErrNotFound)
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	post.CreatedAt = time.Now().UTC()
	post.VoteCount, post.AverageRating = 0, 0
	cp := *post
	cp.User = models.User{}
	s.posts[post.ID] = &cp
	s.postOrder = append(s.postOrder, post.ID)
	post.User = *s.users[post.UserID]
	return nil
}

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, apperr.ErrNotFound)
	}
	out := s.postView(p)
	return &out, nil
}

func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.listPosts(func(*models.Post) bool { return true }, byNewest, 0), nil
}

func (s *Store) ListPostsByUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	return s.listPosts(func(p *models.Post) bool { return p.UserID == userID }, byNewest, 0), nil
}

func (s *Store) ListUnrated(ctx context.Context, userID uuid.UUID, limit int) ([]models.Post, error) {
	s.mu.RLock()
	rated := map[uuid.UUID]bool{}
	for k := range s.ratings {
		if k.userID == userID {
			rated[k.postID] = true
		}
	}
	s.mu.RUnlock()
	return s.listPosts(func(p *models.Post) bool { return !rated[p.ID] }, byNewest, limit), nil
}

func (s *Store) ListTopRated(ctx context.Context, limit int) ([]models.Post, error) {
	return s.listPosts(func(*models.Post) bool { return true }, byRating, limit), nil
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, apperr.ErrNotFound)
	}
	s.deletePostLocked(id)
	return nil
}

// === Ratings ===

func (s *Store) CastVote(ctx context.Context, postID, userID uuid.UUID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return fmt.Errorf("post %s: %w", postID, apperr.ErrNotFound)
	}
	key := ratingKey{userID: userID, postID: postID}
	if _, exists := s.ratings[key]; exists {
		return fmt.Errorf("user %s on post %s: %w", userID, postID, apperr.ErrAlreadyVoted)
	}
	s.ratings[key] = &models.Rating{UserID: userID, PostID: postID, Score: score, CreatedAt: time.Now().UTC()}

	p.AverageRating = (p.AverageRating*float64(p.VoteCount) + float64(score)) / float64(p.VoteCount+1)
	p.VoteCount++
	return nil
}

func (s *Store) ListRatings(ctx context.Context, postID uuid.UUID) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Rating
	for k, r := range s.ratings {
		if k.postID == postID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// === Comments ===

func (s *Store) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Comment{}
	for _, id := range s.commentOrder {
		c, ok := s.comments[id]
		if !ok || c.PostID != postID {
			continue
		}
		out = append(out, s.commentView(c))
	}
	return out, nil
}

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, apperr.ErrNotFound)
	}
	out := s.commentView(c)
	return &out, nil
}

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return fmt.Errorf("post %s: %w", comment.PostID, apperr.ErrNotFound)
	}
	if _, ok := s.users[comment.UserID]; !ok {
		return fmt.Errorf("comment author %s: %w", comment.UserID, apperr.ErrNotFound)
	}
	if comment.ParentID != nil {
		if _, ok := s.comments[*comment.ParentID]; !ok {
			return fmt.Errorf("comment %s: %w", *comment.ParentID, apperr.ErrParentNotFound)
		}
	}
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	comment.CreatedAt = time.Now().UTC()
	cp := *comment
	cp.User, cp.Post, cp.Parent = models.User{}, models.Post{}, nil
	s.comments[comment.ID] = &cp
	s.commentOrder = append(s.commentOrder, comment.ID)
	comment.User = *s.users[comment.UserID]
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return fmt.Errorf("comment %s: %w", id, apperr.ErrNotFound)
	}
	s.deleteCommentLocked(id)
	return nil
}

// === helpers (callers hold mu) ===

func (s *Store) deletePostLocked(id uuid.UUID) {
	for cid, c := range s.comments {
		if c.PostID == id {
			s.deleteCommentLocked(cid)
		}
	}
	for k := range s.ratings {
		if k.postID == id {
			delete(s.ratings, k)
		}
	}
	delete(s.posts, id)
	s.postOrder = slices.DeleteFunc(s.postOrder, func(x uuid.UUID) bool { return x == id })
}

// deleteCommentLocked removes id and, recursively, every reply to it.
func (s *Store) deleteCommentLocked(id uuid.UUID) {
	if _, ok := s.comments[id]; !ok {
		return
	}
	delete(s.comments, id)
	for cid, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == id {
			s.deleteCommentLocked(cid)
		}
	}
	s.commentOrder = slices.DeleteFunc(s.commentOrder, func(x uuid.UUID) bool { return x == id })
}

func (s *Store) recomputeLocked(p *models.Post) {
	var sum, n int
	for k, r := range s.ratings {
		if k.postID == p.ID {
			sum += r.Score
			n++
		}
	}
	p.VoteCount = n
	p.AverageRating = 0
	if n > 0 {
		p.AverageRating = float64(sum) / float64(n)
	}
}

type postOrder func(a, b *models.Post) bool

func byNewest(a, b *models.Post) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

func byRating(a, b *models.Post) bool {
	if a.AverageRating != b.AverageRating {
		return a.AverageRating > b.AverageRating
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (s *Store) listPosts(keep func(*models.Post) bool, less postOrder, limit int) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// walk newest first so equal keys keep newest-first order under a stable sort
	picked := make([]*models.Post, 0, len(s.postOrder))
	for i := len(s.postOrder) - 1; i >= 0; i-- {
		p := s.posts[s.postOrder[i]]
		if keep(p) {
			picked = append(picked, p)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return less(picked[i], picked[j]) })
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}

	out := make([]models.Post, 0, len(picked))
	for _, p := range picked {
		out = append(out, s.postView(p))
	}
	return out
}

func (s *Store) postView(p *models.Post) models.Post {
	out := *p
	if u, ok := s.users[p.UserID]; ok {
		out.User = *u
	}
	return out
}

func (s *Store) commentView(c *models.Comment) models.Comment {
	out := *c
	if u, ok := s.users[c.UserID]; ok {
		out.User = *u
	}
	return out
}
