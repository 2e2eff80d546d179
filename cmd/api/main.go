package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"oysloe/internal/adapter/api"
	"oysloe/internal/adapter/api/handler"
	apimiddleware "oysloe/internal/adapter/api/middleware"
	"oysloe/internal/adapter/api/router"
	"oysloe/internal/adapter/repository"
	domainrepo "oysloe/internal/domain/repository"
	"oysloe/internal/infrastructure/auth"
	"oysloe/internal/infrastructure/database"
	"oysloe/internal/infrastructure/email"
	"oysloe/internal/infrastructure/firebase"
	"oysloe/internal/infrastructure/queue"
	"oysloe/internal/infrastructure/ratelimit"
	"oysloe/internal/infrastructure/redis"
	"oysloe/internal/infrastructure/sms"
	"oysloe/internal/infrastructure/websocket"
	"oysloe/internal/infrastructure/worker"
	"oysloe/internal/usecase"
	"oysloe/pkg/config"
	"oysloe/pkg/logger"

	fbapp "firebase.google.com/go/v4"
)

const (
	notificationQueueKey = "oysloe:notifications"
	realtimeChannel      = "oysloe:ws:"
)

type repositories struct {
	rooms    domainrepo.ChatRoomRepository
	messages domainrepo.MessageRepository
	users    domainrepo.UserRepository
	products domainrepo.ProductRepository
	devices  domainrepo.DeviceRepository
	alerts   domainrepo.AlertRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Environment)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background loops outlive the signal so queued notifications drain during shutdown.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	db, repos := openStorage(ctx, cfg)

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
	}

	var (
		layer websocket.Layer
		jobs  queue.Queue
	)
	if redisClient != nil {
		layer = websocket.NewRedisLayer(redisClient, realtimeChannel)
		jobs = queue.NewRedisQueue(redisClient, notificationQueueKey)
		log.Info().Msg("Realtime fan-out and notification queue backed by Redis")
	} else {
		jobs = queue.NewMemoryQueue(cfg.NotifyQueueSize)
		log.Warn().Msg("REDIS_URL not set, running single-instance fan-out with an in-process queue")
	}

	var firebaseApp *fbapp.App
	if cfg.NeedsFirebase() {
		firebaseApp, err = firebase.NewApp(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase")
		}
	}

	var firestoreClient *firestore.Client
	if cfg.DirectoryBackend == config.DirectoryFirestore {
		firestoreClient, err = firebaseApp.Firestore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Firestore client")
		}
		repos.users = repository.NewFirestoreUserRepository(firestoreClient)
		repos.products = repository.NewFirestoreProductRepository(firestoreClient)
		log.Info().Msg("Reading users and products from Firestore")
	}

	var verifier auth.TokenVerifier
	if cfg.AuthProvider == config.AuthProviderFirebase {
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase Auth")
		}
		verifier = firebase.NewFirebaseAuthClient(authClient, cfg.FirebaseCheckRevoked)
	} else {
		verifier = auth.NewJWTVerifier(cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)
	}

	// Disabled channels stay nil interfaces so the dispatcher skips them.
	var (
		pushSender  usecase.PushSender
		smsSender   usecase.SMSSender
		emailSender usecase.EmailSender
	)
	if cfg.PushEnabled {
		messagingClient, err := firebaseApp.Messaging(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Firebase Messaging")
		}
		pushSender = firebase.NewMessagingClient(messagingClient)
	}
	if cfg.SMSEnabled() {
		smsSender = sms.NewArkeselClient(cfg.ArkeselBaseURL, cfg.ArkeselAPIKey, cfg.SMSSenderID)
	}
	if cfg.EmailEnabled() {
		emailSender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.DefaultFromMail)
	}

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Rule{
		ratelimit.ActionSendMessage: {PerMinute: cfg.SendPerMinute, Burst: 10},
		ratelimit.ActionCreateRoom:  {PerMinute: cfg.CreateRoomPerMinute, Burst: 5},
		ratelimit.ActionConnect:     {PerMinute: 30, Burst: 10},
	})
	go limiter.Run(appCtx, time.Minute)

	wsManager := websocket.NewManager(layer)
	wsManager.Start(appCtx)

	hooks := usecase.NewEventHooks()
	notificationUseCase := usecase.NewNotificationUseCase(repos.users, repos.devices, pushSender, smsSender, emailSender, jobs, cfg.MediaPlaceholder)
	notificationUseCase.Register(hooks)

	pool := worker.NewPool(jobs, cfg.NotifyWorkers)
	notificationUseCase.RegisterJobs(pool)
	pool.Start(appCtx)

	chatUseCase := usecase.NewChatUseCase(repos.rooms, repos.messages, repos.users, repos.products, wsManager, hooks, limiter, usecase.ChatOptions{
		ScopeProduct:   cfg.RoomScope == config.RoomScopePairProduct,
		CreateAttempts: cfg.RoomCreateAttempts,
	})
	deviceUseCase := usecase.NewDeviceUseCase(repos.devices)
	alertUseCase := usecase.NewAlertUseCase(repos.alerts, repos.users, hooks)

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)
	adminMiddleware := apimiddleware.NewAdminMiddleware(repos.users)

	handlers := handler.Handlers{
		Chat:      handler.NewChatHandler(chatUseCase),
		WebSocket: handler.NewWebSocketHandler(websocket.NewGateway(wsManager, chatUseCase), authMiddleware, cfg.AllowedOrigins),
		Device:    handler.NewDeviceHandler(deviceUseCase),
		Alert:     handler.NewAlertHandler(alertUseCase),
		Health:    handler.NewHealthHandler(db, redisClient, wsManager),
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
	}))

	e.Validator = api.NewValidator()

	router.Setup(e, handlers, authMiddleware, adminMiddleware, limiter)

	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("room_scope", cfg.RoomScope).Msg("Starting server")
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	if err := wsManager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Websocket sessions did not drain in time")
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Notification workers did not stop in time")
	}
	if err := notificationUseCase.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Pending SMS and email deliveries abandoned")
	}
	cancelApp()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Close Redis client")
		}
	}
	if firestoreClient != nil {
		if err := firestoreClient.Close(); err != nil {
			log.Error().Err(err).Msg("Close Firestore client")
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Close database")
		}
	}
}

// openStorage picks Postgres when DATABASE_URL is set and an in-memory store otherwise.
func openStorage(ctx context.Context, cfg *config.Config) (*sql.DB, repositories) {
	log := logger.Get()
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using the in-memory store")
		store := repository.NewMemoryStore()
		if cfg.MemoryDirectory() {
			n, err := store.LoadSeedFile(cfg.SeedFile)
			if err != nil {
				log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("Failed to seed the in-memory directory")
			}
			log.Info().Int("users", n).Str("file", cfg.SeedFile).Msg("Seeded the in-memory directory")
		}
		return nil, repositories{
			rooms:    store.Rooms(),
			messages: store.Messages(),
			users:    store.Users(),
			products: store.Products(),
			devices:  store.Devices(),
			alerts:   store.Alerts(),
		}
	}

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return db, repositories{
		rooms:    repository.NewPostgresChatRoomRepository(db),
		messages: repository.NewPostgresMessageRepository(db),
		users:    repository.NewPostgresUserRepository(db),
		products: repository.NewPostgresProductRepository(db),
		devices:  repository.NewPostgresDeviceRepository(db),
		alerts:   repository.NewPostgresAlertRepository(db),
	}
}
