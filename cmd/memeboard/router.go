package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/4xmen/memeboard/internal/auth"
	"github.com/4xmen/memeboard/internal/events"
	"github.com/4xmen/memeboard/internal/handlers"
	"github.com/4xmen/memeboard/internal/metrics"
	"github.com/4xmen/memeboard/internal/push"
	"github.com/4xmen/memeboard/internal/storage"
	"github.com/4xmen/memeboard/internal/ws"
	"github.com/4xmen/memeboard/pkg/config"
)

type routerDeps struct {
	cfg          *config.Config
	db           *sql.DB
	authSvc      *auth.Service
	storage      storage.Backend
	publisher    events.Publisher
	hub          *ws.Hub
	notifier     *push.Notifier
	metrics      *metrics.Metrics
	limiterStore limiter.Store
}

func newRouter(d routerDeps) *gin.Engine {
	authHandler := handlers.NewAuthHandler(d.authSvc)
	userHandler := handlers.NewUserHandler(d.db)
	memeHandler := handlers.NewMemeHandler(d.db, d.storage, d.publisher, d.cfg.MaxUploadSize)
	commentHandler := handlers.NewCommentHandler(d.db, d.publisher)
	followHandler := handlers.NewFollowHandler(d.db, d.publisher)
	msgHandler := handlers.NewMessageHandler(d.db, d.hub, d.notifier, d.publisher)
	pushHandler := handlers.NewPushHandler(d.db, d.notifier)

	router := gin.New()
	router.Use(serverErrorLogger())
	router.Use(gin.Logger())
	router.Use(panicRecovery())
	router.Use(d.metrics.Middleware())
	router.Use(corsMiddleware(d.cfg.CORSOrigins))
	router.MaxMultipartMemory = d.cfg.MaxUploadSize

	loginLimiter := limiter.New(d.limiterStore, limiter.Rate{Period: time.Minute, Limit: 5})
	registerLimiter := limiter.New(d.limiterStore, limiter.Rate{Period: time.Minute, Limit: 3})
	uploadLimiter := limiter.New(d.limiterStore, limiter.Rate{Period: time.Minute, Limit: 10})

	// Auth
	router.POST("/auth/register", rateLimitMiddleware("register", registerLimiter), authHandler.Register)
	router.POST("/auth/login", rateLimitMiddleware("login", loginLimiter), authHandler.Login)

	protected := router.Group("")
	protected.Use(authHandler.AuthMiddleware())
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)

		protected.POST("/push/subscribe", pushHandler.Subscribe)
		protected.DELETE("/push/subscribe", pushHandler.Unsubscribe)

		protected.GET("/ws", d.hub.HandleWebSocket)
	}

	// Users
	router.POST("/users/register", userHandler.RegisterUser)
	router.GET("/users/search", userHandler.SearchUsers)
	router.GET("/users", userHandler.ListUsers)
	router.GET("/users/:wallet", userHandler.GetUser)
	router.PUT("/users/:wallet", userHandler.UpdateProfile)
	router.GET("/users/:wallet/posts", userHandler.GetUserPosts)
	router.GET("/users/:wallet/followers", userHandler.GetFollowers)
	router.GET("/users/:wallet/following", userHandler.GetFollowing)

	// Memes
	upload := rateLimitMiddleware("upload", uploadLimiter)
	router.GET("/memes", memeHandler.GetMemes)
	router.POST("/memes", upload, memeHandler.Upload)
	router.POST("/memes/upload", upload, memeHandler.Upload)
	router.GET("/memes/:id", memeHandler.GetMeme)
	router.DELETE("/memes/:id", memeHandler.Delete)
	router.POST("/memes/:id/like", memeHandler.Like)
	router.DELETE("/memes/:id/like", memeHandler.Unlike)
	router.GET("/memes/:id/comments", commentHandler.GetComments)
	router.POST("/memes/:id/comments", commentHandler.AddComment)
	router.DELETE("/memes/:id/comments/:cid", commentHandler.DeleteComment)
	router.GET("/feed/:wallet", memeHandler.GetFollowingFeed)

	// Follows
	router.POST("/follow", followHandler.Follow)
	router.DELETE("/follow", followHandler.Unfollow)
	router.GET("/follow/check/:follower/:following", followHandler.CheckFollowing)

	// Messages
	router.POST("/messages/send", msgHandler.SendMessage)
	router.GET("/messages/conversations/:wallet", msgHandler.GetConversations)
	router.GET("/messages/:wallet/:other", msgHandler.GetMessages)
	router.PUT("/messages/read/:wallet/:other", msgHandler.MarkRead)

	router.GET("/push/vapid", pushHandler.VAPIDKey)

	if local, ok := d.storage.(*storage.Local); ok {
		router.Static("/uploads", local.Dir())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
