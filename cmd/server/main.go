package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"paperboard/internal/cache"
	"paperboard/internal/config"
	"paperboard/internal/db"
	"paperboard/internal/handlers"
	"paperboard/internal/logging"
	"paperboard/internal/middleware"
	"paperboard/internal/router"
	"paperboard/internal/services"
	"paperboard/internal/store"
	"paperboard/internal/store/memory"

	"github.com/gin-gonic/gin"
)

type backend interface {
	store.ContentStore
	store.UserStore
}

func main() {
	storage := flag.String("storage", "", "storage backend: postgres or memory (overrides STORAGE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *storage != "" {
		cfg.Storage = *storage
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var content backend
	switch cfg.Storage {
	case config.StoragePostgres:
		conn, err := db.Open(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		pg := db.NewStore(conn)
		defer pg.Close()
		content = pg
	default:
		log.Warn("using in-memory storage, data is lost on restart")
		content = memory.New()
	}

	var objects store.ObjectStore
	var files *handlers.FileHandler
	if cfg.ImageKitPrivateKey != "" {
		objects = services.NewImageKitStore(cfg.ImageKitPrivateKey, cfg.ImageKitUploadURL, cfg.ImageKitAPIURL, cfg.ImageKitFolder)
	} else {
		local := memory.NewObjectStore(strings.TrimSuffix(cfg.PublicURL, "/") + "/files")
		log.Warn("IMAGEKIT_PRIVATE_KEY not set, uploads are kept in memory and served from /files", "base_url", local.BaseURL)
		objects = local
		files = handlers.NewFileHandler(local)
	}

	var shared cache.Cache
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL, "paperboard:")
		if err != nil {
			return err
		}
		defer r.Close()
		shared = r
	} else {
		lru, err := cache.NewLRU(64)
		if err != nil {
			return err
		}
		shared = lru
	}
	leaderboard := cache.NewLeaderboard(shared, cfg.CacheTTL)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		l, err := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10000)
		if err != nil {
			return err
		}
		limiter = l
	}

	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTLifetime)
	mailer := services.NewMailService(services.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	}, log)

	identity := services.NewIdentityService(content, content, objects, leaderboard, tokens, mailer, log)
	posts := services.NewPostService(content, objects, leaderboard, log, services.PostOptions{
		MaxUploadBytes: cfg.UploadMaxBytes,
	})
	ratings := services.NewRatingService(content, leaderboard, log)
	comments := services.NewCommentService(content, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Deps{
		Log:      log,
		Resolver: identity,
		Limiter:  limiter,
		CORS:     middleware.DefaultCORSConfig(cfg.CORSOrigins),
		Health:   handlers.NewHealthHandler(content),
		Auth:     handlers.NewAuthHandler(identity),
		Users:    handlers.NewUserHandler(identity),
		Posts:    handlers.NewPostHandler(posts, cfg.UploadMaxBytes),
		Votes:    handlers.NewVoteHandler(ratings),
		Comments: handlers.NewCommentHandler(comments),
		Files:    files,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("paperboard server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
