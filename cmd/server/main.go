package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-agent/config"
	"order-agent/internal/api"
	"order-agent/internal/broker"
	"order-agent/internal/conversation"
	"order-agent/internal/lock"
	"order-agent/internal/menu"
	"order-agent/internal/redisclient"
	"order-agent/internal/service"
	"order-agent/internal/sessionstore"
	"order-agent/internal/store"
	"order-agent/internal/util"
	"order-agent/internal/whatsapp"
	"order-agent/internal/worker"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const phoneLockTTL = 30 * time.Second

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order agent")

	tp, err := util.InitTracer("order-agent", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	readiness := map[string]func(context.Context) error{
		"postgres": db.Ping,
		"redis":    redisClient.Ping,
	}

	sessions, closeSessions, err := openSessionStore(cfg, redisClient, readiness)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer closeSessions()
	log.Printf("Session store ready: %s", cfg.Conversation.SessionBackend)

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	inboundProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInbound)
	defer inboundProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(orderProducer, inboundProducer)

	var sender whatsapp.Sender
	if cfg.WhatsApp.Token != "" && cfg.WhatsApp.PhoneID != "" {
		sender = whatsapp.NewCloudSender(cfg.WhatsApp.APIBase, cfg.WhatsApp.PhoneID, cfg.WhatsApp.Token, cfg.Conversation.SenderTimeout)
	} else {
		logger.Warn("WhatsApp credentials not set, replies will only be logged")
		sender = whatsapp.NewLogSender()
	}

	menuProvider := menu.NewStoreProvider(db, redisClient, cfg.Conversation.MenuCacheTTL, cfg.Conversation.MenuLimit)
	orderService := service.NewOrderService(db, eventPublisher)
	machine := conversation.NewMachine(conversation.Options{
		MaxQuantity:      cfg.Conversation.MaxOrderQuantity,
		MinAddressLength: cfg.Conversation.MinAddressLength,
	})
	locker := lock.Chain{
		lock.NewKeyed(),
		lock.NewRedis(redisClient, "phone:", phoneLockTTL),
	}
	agent := service.NewAgent(
		sessions,
		menuProvider,
		orderService,
		locker,
		machine,
		sender,
		cfg.Conversation.StoreTimeout,
		cfg.Conversation.SenderTimeout,
	)
	notifier := service.NewNotifier(db, sender, cfg.Conversation.SenderTimeout)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup+"-notifications")
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, notifier)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	var inboundWorker *worker.InboundWorker
	handlerOpts := api.Options{
		VerifyToken:     cfg.WhatsApp.VerifyToken,
		AppSecret:       cfg.WhatsApp.AppSecret,
		Deduper:         redisClient,
		PhoneRateLimit:  cfg.Conversation.RateLimitPerMinute,
		APIRateLimit:    cfg.Conversation.RateLimitPerMinute,
		ReadinessChecks: readiness,
	}
	if cfg.Conversation.InboundMode == config.InboundModeQueue {
		handlerOpts.Publisher = eventPublisher

		inboundConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicInbound, cfg.Kafka.ConsumerGroup)
		inboundWorker = worker.NewInboundWorker(inboundConsumer, agent)
		go func() {
			if err := inboundWorker.Start(workerCtx); err != nil {
				log.Printf("Inbound worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(agent, orderService, menuProvider, handlerOpts)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s (inbound mode: %s)", cfg.Server.Port, cfg.Conversation.InboundMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	handler.Wait()

	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Failed to stop notification worker", zap.Error(err))
	}
	if inboundWorker != nil {
		if err := inboundWorker.Stop(); err != nil {
			logger.Warn("Failed to stop inbound worker", zap.Error(err))
		}
	}

	log.Println("Server exited")
}

// openSessionStore builds the configured session backend and registers its readiness check.
func openSessionStore(cfg *config.Config, redisClient *redisclient.Client,
	readiness map[string]func(context.Context) error) (sessionstore.Store, func(), error) {

	ttl := cfg.Conversation.SessionTTL

	switch cfg.Conversation.SessionBackend {
	case config.SessionBackendRedis:
		return sessionstore.NewRedis(redisClient, ttl), func() {}, nil

	case config.SessionBackendMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		sessions, err := sessionstore.NewMongo(ctx, client.Database(cfg.Mongo.Database), ttl)
		if err != nil {
			return nil, nil, err
		}
		readiness["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Printf("Error disconnecting MongoDB: %v", err)
			}
		}
		return sessions, closeFn, nil

	case config.SessionBackendMemory:
		util.GetLogger().Warn("In-memory sessions do not survive restarts or span instances")
		return sessionstore.NewMemory(ttl), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Conversation.SessionBackend)
	}
}
