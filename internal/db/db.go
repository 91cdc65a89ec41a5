package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paperboard/internal/apperr"
	"paperboard/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// postgres SQLSTATE codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// Open connects to postgres and migrates the schema.
func Open(dsn string, log *slog.Logger) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established")

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	log.Info("database migration completed")
	return conn, nil
}

// Migrate creates or updates the tables. Order matters for the foreign keys.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Rating{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translate maps a gorm/pgx error onto the apperr taxonomy. Errors that are
// already classified pass through unchanged.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.Known(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgCode(err) {
	case foreignKeyViolation:
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case checkViolation:
		return fmt.Errorf("%s: %w", op, apperr.ErrInvalidInput)
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrStorage, err)
}
