package db

import (
	"context"
	"fmt"
	"strings"

	"paperboard/internal/apperr"
	"paperboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the postgres implementation of store.ContentStore and store.UserStore.
type Store struct {
	db *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", apperr.ErrStorage, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === Posts ===

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	post.VoteCount, post.AverageRating = 0, 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return tx.First(&post.User, "id = ?", post.UserID).Error
	})
	return translate("create post", err)
}

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User").First(&post, "id = ?", id).Error; err != nil {
		return nil, translate("get post "+id.String(), err)
	}
	return &post, nil
}

func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Preload("User").Order("created_at DESC").Find(&posts).Error
	return posts, translate("list posts", err)
}

func (s *Store) ListPostsByUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&posts).Error
	return posts, translate("list user posts", err)
}

func (s *Store) ListUnrated(ctx context.Context, userID uuid.UUID, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Preload("User").
		Joins("LEFT JOIN ratings ON ratings.post_id = posts.id AND ratings.user_id = ?", userID).
		Where("ratings.post_id IS NULL").
		Order("posts.created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, translate("list unrated posts", err)
}

func (s *Store) ListTopRated(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Preload("User").
		Order("average_rating DESC, created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, translate("list top rated posts", err)
}

// DeletePost relies on the ON DELETE CASCADE keys for comments and ratings.
func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", id)
	if res.Error != nil {
		return translate("delete post", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("post %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// === Ratings ===

// CastVote inserts the rating and updates the aggregate in one transaction.
// The new average is computed by postgres from the row's current values so
// concurrent votes on the same post cannot overwrite each other.
func (s *Store) CastVote(ctx context.Context, postID, userID uuid.UUID, score int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Rating{}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("user %s on post %s: %w", userID, postID, apperr.ErrAlreadyVoted)
		}

		rating := models.Rating{UserID: userID, PostID: postID, Score: score}
		if err := tx.Omit(clause.Associations).Create(&rating).Error; err != nil {
			switch pgCode(err) {
			case uniqueViolation:
				return fmt.Errorf("user %s on post %s: %w", userID, postID, apperr.ErrAlreadyVoted)
			case foreignKeyViolation:
				return fmt.Errorf("post %s: %w", postID, apperr.ErrNotFound)
			}
			return err
		}

		res := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumns(map[string]interface{}{
				"average_rating": gorm.Expr("(average_rating * vote_count + ?) / (vote_count + 1)", score),
				"vote_count":     gorm.Expr("vote_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("post %s: %w", postID, apperr.ErrNotFound)
		}
		return nil
	})
	return translate("cast vote", err)
}

func (s *Store) ListRatings(ctx context.Context, postID uuid.UUID) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at").Find(&ratings).Error
	return ratings, translate("list ratings", err)
}

// === Comments ===

func (s *Store) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, translate("list comments", err)
}

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&comment, "id = ?", id).Error; err != nil {
		return nil, translate("get comment "+id.String(), err)
	}
	return &comment, nil
}

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("post %s: %w", comment.PostID, apperr.ErrNotFound)
		}

		if comment.ParentID != nil {
			if err := tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("comment %s: %w", *comment.ParentID, apperr.ErrParentNotFound)
			}
		}

		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			if pgCode(err) == foreignKeyViolation && comment.ParentID != nil {
				return fmt.Errorf("comment %s: %w", *comment.ParentID, apperr.ErrParentNotFound)
			}
			return err
		}
		return tx.First(&comment.User, "id = ?", comment.UserID).Error
	})
	return translate("create comment", err)
}

func (s *Store) DeleteComment(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id)
	if res.Error != nil {
		return translate("delete comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("comment %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// === Users ===

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.db.WithContext(ctx).Create(user).Error
	if pgCode(err) == uniqueViolation {
		return fmt.Errorf("email %s is already registered: %w", user.Email, apperr.ErrConflict)
	}
	return translate("create user", err)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate("get user by email", err)
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	res := s.db.WithContext(ctx).Model(user).Select("*").Omit("id", "created_at").Updates(user)
	if pgCode(res.Error) == uniqueViolation {
		return fmt.Errorf("email %s is already registered: %w", user.Email, apperr.ErrConflict)
	}
	if res.Error != nil {
		return translate("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", user.ID, apperr.ErrNotFound)
	}
	return nil
}

// DeleteUser removes the user; foreign keys cascade to posts, comments and
// ratings. Posts the user had rated get their aggregate re-derived from the
// ratings that remain, inside the same transaction.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rated []uuid.UUID
		if err := tx.Model(&models.Rating{}).
			Joins("JOIN posts ON posts.id = ratings.post_id").
			Where("ratings.user_id = ? AND posts.user_id <> ?", id, id).
			Pluck("ratings.post_id", &rated).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
		}

		if len(rated) == 0 {
			return nil
		}
		return tx.Model(&models.Post{}).
			Where("id IN ?", rated).
			UpdateColumns(map[string]interface{}{
				"vote_count":     gorm.Expr("(SELECT COUNT(*) FROM ratings WHERE ratings.post_id = posts.id)"),
				"average_rating": gorm.Expr("COALESCE((SELECT AVG(score) FROM ratings WHERE ratings.post_id = posts.id), 0)"),
			}).Error
	})
	return translate("delete user", err)
}
