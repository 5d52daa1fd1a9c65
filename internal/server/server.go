package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gazette-chat/internal/config"
	"gazette-chat/internal/handler"
	"gazette-chat/internal/middleware"
	"gazette-chat/internal/redis"
	"gazette-chat/internal/services"
	"gazette-chat/internal/stream"
	"gazette-chat/internal/transport/httpdto"
	"gazette-chat/internal/websocket"
	"gazette-chat/pkg/database"
	"gazette-chat/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	db         *gorm.DB
}

type Handlers struct {
	Auth         *handler.AuthHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Upload       *handler.UploadHandler
	User         *handler.UserHandler
	Socket       *websocket.Handler
	Stream       *stream.Handler
}

func New(cfg *config.Config, db *gorm.DB, l *logger.Logger) *Server {
	switch cfg.Server.Environment {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		db:     db,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})
	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(s.db); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	auth := s.engine.Group("/v1/auth")
	if limiter != nil {
		auth.Use(middleware.AuthRateLimitMiddleware(limiter))
	}
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	s.engine.GET("/ws", handlers.Socket.Connect)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(authService))

	conversations := v1.Group("/conversations")
	{
		conversations.POST("/groups", handlers.Conversation.CreateGroup)
		conversations.GET("", handlers.Conversation.List)
		conversations.GET("/:id", handlers.Conversation.GetByID)
		conversations.PATCH("/:id", handlers.Conversation.UpdateMetadata)
		conversations.POST("/:id/participants", handlers.Conversation.AddParticipants)
		conversations.DELETE("/:id/participants/:user_id", handlers.Conversation.RemoveParticipant)
		conversations.POST("/:id/leave", handlers.Conversation.Leave)
		conversations.PUT("/:id/participants/:user_id/role", handlers.Conversation.SetParticipantRole)
		conversations.PUT("/:id/mute", handlers.Conversation.SetMuted)
		conversations.PUT("/:id/nickname", handlers.Conversation.SetNickname)

		conversations.GET("/:id/messages", handlers.Message.List)
		conversations.GET("/:id/unread", handlers.Message.UnreadCount)
		conversations.PUT("/:id/read", handlers.Message.MarkConversationRead)
		if limiter != nil {
			conversations.POST("/:id/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.Send)
		} else {
			conversations.POST("/:id/messages", handlers.Message.Send)
		}
	}

	messages := v1.Group("/messages")
	{
		if limiter != nil {
			messages.POST("/direct", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.SendDirect)
		} else {
			messages.POST("/direct", handlers.Message.SendDirect)
		}
		messages.PUT("/:message_id/read", handlers.Message.MarkMessageRead)
	}

	users := v1.Group("/users")
	{
		users.GET("/me", handlers.User.Me)
		users.POST("/follow", handlers.User.Follow)
		users.POST("/push-subscriptions", handlers.User.RegisterPushSubscription)
		users.DELETE("/push-subscriptions/:id", handlers.User.RevokePushSubscription)
	}

	if handlers.Upload != nil {
		v1.POST("/uploads/presign", handlers.Upload.Presign)
	}

	streams := v1.Group("/stream/conversations/:id")
	{
		streams.GET("/events", handlers.Stream.Events)
		streams.GET("/poll", handlers.Stream.Poll)
	}
}

// Start serves until SIGINT/SIGTERM, then drains with a short grace period.
func (s *Server) Start() error {
	go func() {
		s.logger.Infof("starting server on :%s", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("server error: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	s.logger.Infof("shutdown signal received, draining")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
