package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/naigggs/hau2park.web-sub001/internal/api"
	"github.com/naigggs/hau2park.web-sub001/internal/api/handler"
	"github.com/naigggs/hau2park.web-sub001/internal/api/middleware"
	"github.com/naigggs/hau2park.web-sub001/internal/assistant"
	"github.com/naigggs/hau2park.web-sub001/internal/changefeed"
	"github.com/naigggs/hau2park.web-sub001/internal/config"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/mirror"
	"github.com/naigggs/hau2park.web-sub001/internal/repository/postgresql"
	"github.com/naigggs/hau2park.web-sub001/internal/service"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded.")

	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The feed bus is the spine of the sync layer: repositories publish
	// to it after every successful write, subscribers consume per topic.
	bus := changefeed.NewBus()

	spaceRepo := postgresql.NewPgParkingSpaceRepository(db, bus)
	guestRepo := postgresql.NewPgGuestRequestRepository(db, bus)
	approvalRepo := postgresql.NewPgPendingApprovalRepository(db, bus)
	userRepo := postgresql.NewPgUserRepository(db)
	log.Println("Repositories initialized.")

	// Optional: external change notifications (database triggers publish
	// row changes to SQS) feed the same bus.
	if cfg.SQSChangeQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("Could not load AWS SDK config: %v", err)
		}
		source := changefeed.NewSQSSource(sqs.NewFromConfig(awsCfg), cfg, bus)
		go source.Start(ctx)
	}

	subscriber := changefeed.NewSubscriber(bus)

	// Parking-space mirror: seeded from a snapshot, then reconciled from
	// the feed. Ordered by name to match the list views.
	spaceMirror := mirror.New(
		func(s domain.ParkingSpace) int { return s.ID },
		mirror.WithOrdering[int](func(a, b domain.ParkingSpace) bool { return a.Name < b.Name }),
	)
	spaceSnapshot := func() ([]domain.ParkingSpace, error) { return spaceRepo.FindAll(ctx) }
	if snap, err := spaceSnapshot(); err != nil {
		log.Printf("Initial parking-space snapshot failed: %v (mirror will buffer until reseeded)", err)
	} else {
		spaceMirror.Seed(snap)
	}
	spaceSub := subscriber.Subscribe(changefeed.TopicParkingSpaces)
	go spaceMirror.Run(spaceSub, spaceSnapshot)

	authService := service.NewAuthService(userRepo, approvalRepo, cfg.JWTSecret, cfg.JWTExpirationHours)
	guestService := service.NewGuestService(guestRepo, service.GenerateSecretToken, cfg.SecretTokenLength)
	approvalService := service.NewApprovalService(approvalRepo, userRepo)

	var completer assistant.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = assistant.NewOpenAICompleter(cfg)
	} else {
		log.Println("OPENAI_API_KEY not set; assistant runs without LLM completions.")
	}
	assistantService := assistant.NewService(assistant.NewMemoryStore(), completer)
	log.Println("Services initialized.")

	// Browser push: relay every topic to connected WebSocket clients.
	wsManager := handler.NewWebSocketManager()
	go wsManager.Start()
	for _, topic := range []string{
		changefeed.TopicParkingSpaces,
		changefeed.TopicGuestRequests,
		changefeed.TopicPendingApprovals,
	} {
		go wsManager.Relay(subscriber.Subscribe(topic))
	}

	authMw := middleware.NewAuthMiddleware(authService)
	router := api.SetupRouter(authService, guestService, approvalService, assistantService,
		spaceRepo, spaceMirror, authMw, wsManager)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()
	spaceSub.Unsubscribe()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	log.Println("Server stopped.")
}
