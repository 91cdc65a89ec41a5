package router

import (
	"log/slog"

	"paperboard/internal/handlers"
	"paperboard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Deps is everything the route table needs.
type Deps struct {
	Log      *slog.Logger
	Resolver middleware.TokenResolver
	Limiter  *middleware.RateLimiter
	CORS     *middleware.CORSConfig

	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Posts    *handlers.PostHandler
	Votes    *handlers.VoteHandler
	Comments *handlers.CommentHandler
	// Files is only set when uploads are kept in memory.
	Files *handlers.FileHandler
}

// New builds the engine with the global middleware and all routes.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log), gin.Recovery(), middleware.CORS(d.CORS))
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	auth := middleware.AuthRequired(d.Resolver)
	limit := middleware.RateLimit(d.Limiter)

	r.GET("/healthz", d.Health.Healthz)

	// 公共路由 (Public Routes)
	r.GET("/posts", d.Posts.ListAll)
	r.GET("/posts/leaderboard", d.Posts.Leaderboard)
	r.GET("/comments/:post_id", d.Comments.List)
	r.GET("/users/:id", d.Users.Show)
	if d.Files != nil {
		r.GET("/files/:id/*name", d.Files.Serve)
	}

	authGroup := r.Group("/auth")
	authGroup.Use(limit)
	{
		authGroup.POST("/register", d.Auth.Register)
		authGroup.POST("/jwt/login", d.Auth.Login)
		authGroup.POST("/jwt/logout", auth, d.Auth.Logout)
		authGroup.POST("/forgot-password", d.Auth.ForgotPassword)
		authGroup.POST("/reset-password", d.Auth.ResetPassword)
		authGroup.POST("/request-verify-token", d.Auth.RequestVerifyToken)
		authGroup.POST("/verify", d.Auth.Verify)
	}

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(auth)
	{
		authorized.GET("/posts/me", d.Posts.ListMine)
		authorized.GET("/posts/queue", d.Posts.Queue)
		authorized.GET("/users/me", d.Users.Me)
	}

	// mutating routes are rate limited per user
	mutating := r.Group("/")
	mutating.Use(auth, limit)
	{
		mutating.POST("/posts/upload", d.Posts.Upload)
		mutating.POST("/posts/:post_id/rate", d.Votes.Rate)
		mutating.DELETE("/posts/:post_id", d.Posts.Delete)

		mutating.POST("/comments/:post_id", d.Comments.Create)
		mutating.DELETE("/comments/:comment_id", d.Comments.Delete)

		mutating.PATCH("/users/me", d.Users.UpdateMe)
		mutating.DELETE("/users/me", d.Users.DeleteMe)
	}
}
