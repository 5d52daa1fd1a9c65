package main

import (
	"context"
	"log"
	"time"

	"gazette-chat/internal/config"
	"gazette-chat/internal/events"
	"gazette-chat/internal/handler"
	"gazette-chat/internal/push"
	"gazette-chat/internal/redis"
	"gazette-chat/internal/repository"
	"gazette-chat/internal/server"
	"gazette-chat/internal/services"
	"gazette-chat/internal/storage"
	"gazette-chat/internal/stream"
	"gazette-chat/internal/tasks"
	"gazette-chat/internal/websocket"
	"gazette-chat/pkg/database"
	"gazette-chat/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		l.Errorf("database: %v", err)
		return
	}

	redisClient := redis.NewClient(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	publisher := redis.NewPublisher(redisClient)
	subscriber := redis.NewSubscriber(redisClient)
	limiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())
	presence := redis.NewPresence(redisClient, 2*time.Minute)
	unreadCache := redis.NewUnreadCache(redisClient, 30*time.Second)

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)

	notifier := push.NewNotifier(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber, l)
	enqueuer := tasks.NewAsynqEnqueuer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	worker := tasks.NewWorker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, userRepo, presence, notifier, l)

	authService := services.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := services.NewUserService(db)
	membershipService := services.NewMembershipService(db, publisher, l)
	receiptService := services.NewReceiptService(db, publisher, l)
	messageService := services.NewMessageService(db, receiptService, publisher, enqueuer, unreadCache, l)

	var uploadHandler *handler.UploadHandler
	if cfg.S3.Bucket != "" {
		s3Client, err := storage.NewClient(context.Background(), storage.S3Config{
			Region:     cfg.S3.Region,
			Bucket:     cfg.S3.Bucket,
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
			Endpoint:   cfg.S3.Endpoint,
			PublicBase: cfg.S3.PublicBase,
			PresignTTL: 15 * time.Minute,
		})
		if err != nil {
			l.Errorf("s3: %v", err)
			return
		}
		uploadHandler = handler.NewUploadHandler(services.NewUploadService(s3Client))
	} else {
		l.Warnf("s3 not configured, media uploads disabled")
	}

	hub := websocket.NewHub()
	broker := stream.NewBroker(cfg.Stream.TopicCapacity, cfg.Stream.TopicTTL)
	bridge := events.NewBridge(subscriber, hub, broker)
	authorizer := websocket.NewChannelAuthorizer(convRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	go broker.RunJanitor(ctx, time.Minute)
	go func() {
		patterns := []string{
			events.ChannelPrefixConversation + "*",
			events.ChannelPrefixUser + "*",
		}
		if err := bridge.Run(ctx, patterns); err != nil && ctx.Err() == nil {
			l.Errorf("event bridge: %v", err)
		}
	}()
	go func() {
		if err := worker.Run(); err != nil {
			l.Errorf("task worker: %v", err)
		}
	}()

	srv := server.New(cfg, db, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Conversation: handler.NewConversationHandler(membershipService),
		Message:      handler.NewMessageHandler(messageService, receiptService),
		Upload:       uploadHandler,
		User:         handler.NewUserHandler(userService),
		Socket:       websocket.NewHandler(authService, hub, authorizer, presence, l),
		Stream:       stream.NewHandler(broker, authorizer, cfg.Stream.FlushInterval, l),
	}, authService, limiter)

	if err := srv.Start(); err != nil {
		l.Errorf("shutdown: %v", err)
	}

	worker.Shutdown()
	_ = enqueuer.Close()
	_ = redisClient.Close()
}
