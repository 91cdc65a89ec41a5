package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"paperboard/internal/apperr"
	"paperboard/internal/cache"
	"paperboard/internal/models"
	"paperboard/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// dummyHash is compared against when the email is unknown so failed logins
// take the same time either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("paperboard-dummy-password"), bcrypt.DefaultCost)

// IdentityService registers users, issues credentials and manages accounts.
type IdentityService struct {
	users   store.UserStore
	content store.ContentStore
	objects store.ObjectStore
	board   *cache.Leaderboard
	tokens  *TokenIssuer
	mailer  Mailer
	log     *slog.Logger
}

func NewIdentityService(users store.UserStore, content store.ContentStore, objects store.ObjectStore, board *cache.Leaderboard, tokens *TokenIssuer, mailer Mailer, log *slog.Logger) *IdentityService {
	return &IdentityService{users: users, content: content, objects: objects, board: board, tokens: tokens, mailer: mailer, log: log}
}

type RegisterInput struct {
	Email        string
	Password     string
	Username     string
	ProfileType  string
	Organization string
	Program      *string
	YearOfStudy  *int
	JobTitle     *string
}

// normalizeEmail lowercases the address. Its format is checked when the
// request is bound.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("email is required: %w", apperr.ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, apperr.ErrInvalidInput)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validateYear(year *int) error {
	if year != nil && (*year < 1 || *year > 10) {
		return fmt.Errorf("year_of_study must be between 1 and 10: %w", apperr.ErrInvalidInput)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", apperr.ErrInvalidInput)
	}
	profileType, ok := models.ParseProfileType(in.ProfileType)
	if !ok {
		return nil, fmt.Errorf("profile_type must be student or professional: %w", apperr.ErrInvalidInput)
	}
	if err := validateYear(in.YearOfStudy); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:          email,
		HashedPassword: hash,
		IsActive:       true,
		Username:       username,
		ProfileType:    profileType,
		Organization:   strings.TrimSpace(in.Organization),
		Program:        trimmed(in.Program),
		YearOfStudy:    in.YearOfStudy,
		JobTitle:       trimmed(in.JobTitle),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials and returns a bearer token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", fmt.Errorf("login: %w", apperr.ErrBadCredentials)
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil || !user.IsActive {
		return "", fmt.Errorf("login: %w", apperr.ErrBadCredentials)
	}
	return s.tokens.IssueAccess(user)
}

// ResolveToken returns the active user a bearer token belongs to.
func (s *IdentityService) ResolveToken(ctx context.Context, raw string) (*models.User, error) {
	id, err := s.tokens.ParseAccess(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("token user no longer exists: %w", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user inactive: %w", apperr.ErrUnauthorized)
	}
	return user, nil
}

func (s *IdentityService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

// ForgotPassword mails a reset token when the email belongs to an active
// user. It never reveals whether the email is registered.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}
	token, err := s.tokens.IssueReset(user)
	if err != nil {
		return err
	}
	s.mailer.SendPasswordResetEmail(user.Email, token)
	return nil
}

func (s *IdentityService) ResetPassword(ctx context.Context, token, password string) error {
	id, fingerprint, err := s.tokens.ParseReset(token)
	if err != nil {
		return err
	}
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("reset token: %w", apperr.ErrInvalidInput)
	}
	if err != nil {
		return err
	}
	if !user.IsActive || fingerprint != passwordFingerprint(user.HashedPassword) {
		return fmt.Errorf("reset token: %w", apperr.ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if user.HashedPassword, err = hashPassword(password); err != nil {
		return err
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.log.Info("password reset", "user_id", user.ID)
	return nil
}

// RequestVerification mails a verification token to an active, unverified user.
func (s *IdentityService) RequestVerification(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive || user.IsVerified {
		return nil
	}
	token, err := s.tokens.IssueVerify(user)
	if err != nil {
		return err
	}
	s.mailer.SendVerificationEmail(user.Email, token)
	return nil
}

func (s *IdentityService) Verify(ctx context.Context, token string) (*models.User, error) {
	id, email, err := s.tokens.ParseVerify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("verify token: %w", apperr.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, email) {
		return nil, fmt.Errorf("verify token: %w", apperr.ErrInvalidInput)
	}
	if user.IsVerified {
		return nil, fmt.Errorf("user already verified: %w", apperr.ErrInvalidInput)
	}
	user.IsVerified = true
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ProfileUpdate carries the fields a user may change about themselves. Nil
// fields are left as they are.
type ProfileUpdate struct {
	Email        *string
	Password     *string
	Username     *string
	ProfileType  *string
	Organization *string
	Program      *string
	YearOfStudy  *int
	JobTitle     *string
}

func (s *IdentityService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			user.Email = email
			user.IsVerified = false
		}
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		if user.HashedPassword, err = hashPassword(*in.Password); err != nil {
			return nil, err
		}
	}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return nil, fmt.Errorf("username is required: %w", apperr.ErrInvalidInput)
		}
		user.Username = name
	}
	if in.ProfileType != nil {
		pt, ok := models.ParseProfileType(*in.ProfileType)
		if !ok {
			return nil, fmt.Errorf("profile_type must be student or professional: %w", apperr.ErrInvalidInput)
		}
		user.ProfileType = pt
	}
	if in.Organization != nil {
		user.Organization = strings.TrimSpace(*in.Organization)
	}
	if in.Program != nil {
		user.Program = trimmed(in.Program)
	}
	if in.YearOfStudy != nil {
		if err := validateYear(in.YearOfStudy); err != nil {
			return nil, err
		}
		user.YearOfStudy = in.YearOfStudy
	}
	if in.JobTitle != nil {
		user.JobTitle = trimmed(in.JobTitle)
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	invalidateLeaderboard(ctx, s.board, s.log)
	return user, nil
}

// DeleteAccount removes the user with everything they own. Their stored
// files are removed afterwards on a best-effort basis.
func (s *IdentityService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	posts, err := s.content.ListPostsByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}

	for _, p := range posts {
		if p.ExternalFileID == "" {
			continue
		}
		if err := s.objects.Remove(context.WithoutCancel(ctx), p.ExternalFileID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("failed to remove stored file of deleted account", "user_id", userID, "external_id", p.ExternalFileID, "error", err)
		}
	}
	s.log.Info("account deleted", "user_id", userID, "posts", len(posts))
	invalidateLeaderboard(ctx, s.board, s.log)
	return nil
}
