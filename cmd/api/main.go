package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/ai-collective/backend/internal/config"
	"github.com/zhouzirui/ai-collective/backend/internal/handler"
	"github.com/zhouzirui/ai-collective/backend/internal/model/persona"
	"github.com/zhouzirui/ai-collective/backend/internal/service/ai"
	"github.com/zhouzirui/ai-collective/backend/internal/service/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/service/credential"
	"github.com/zhouzirui/ai-collective/backend/internal/service/logs"
	"github.com/zhouzirui/ai-collective/backend/internal/service/personality"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	recorder := logs.NewRecorder(logs.DefaultCapacity, logger.Named("console"))

	// Credential store
	store, err := credential.OpenSQLite(ctx, cfg.Storage.SettingsDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	credentials := credential.NewService(store)
	if err := credentials.Load(ctx); err != nil {
		return err
	}
	if !credentials.HasKey() && cfg.AI.SeedAPIKey != "" {
		if err := credentials.Save(ctx, cfg.AI.SeedAPIKey); err != nil {
			return err
		}
		logger.Info("seeded api key from ARK_API_KEY")
	}
	credentials.Subscribe(func(key string) {
		logger.Info("api key updated", zap.String("key", credential.Mask(key)))
	})

	// Roster and personalities
	personas, err := persona.LoadRoster(cfg.Storage.RosterFile)
	if err != nil {
		return err
	}
	var files fs.FS = persona.Personalities()
	if cfg.Storage.PersonalityDir != "" {
		files = os.DirFS(cfg.Storage.PersonalityDir)
	}
	loader := personality.NewLoader(files, nil)

	aiService := ai.NewService(cfg.AI.NewChatModel, credentials, recorder, ai.Options{
		Temperature: &cfg.AI.Temperature,
		TopP:        &cfg.AI.TopP,
	})
	logger.Info("response client ready",
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
	)

	chatService := chat.NewService(personas, loader, aiService, credentials, recorder, cfg.Chat, chat.Options{})
	defer chatService.Close()

	go func() {
		if err := chatService.Start(ctx); err != nil {
			logger.Error("chat session failed to start", zap.Error(err))
		}
	}()

	router := handler.NewRouter(handler.Services{
		Personas:    persona.NewMemoryStore(personas),
		Chat:        chatService,
		Credentials: credentials,
		Recorder:    recorder,
		Logger:      logger,

		MessageRate:  cfg.Server.MessageRate,
		MessageBurst: cfg.Server.MessageBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("AI Collective backend listening", zap.String("addr", cfg.Server.Addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
