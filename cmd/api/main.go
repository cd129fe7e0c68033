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

	"github.com/joho/godotenv"

	"github.com/zhouzirui/edge-terminal/backend/internal/config"
	"github.com/zhouzirui/edge-terminal/backend/internal/handler"
	profileHandler "github.com/zhouzirui/edge-terminal/backend/internal/handler/profile"
	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/access"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/ai"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/convert"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/search"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/turn"
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

	profileStore := profile.NewMemoryStore(cfg.Profile.Profiles(), cfg.Profile.DefaultID)
	chatService := chat.NewService(access.NewGate(cfg.Access.Key))

	converter, err := convert.New(cfg.Convert.Scheme)
	if err != nil {
		log.Fatalf("failed to initialize script converter: %v", err)
	}
	log.Printf("script conversion: %s (hold=%d)", cfg.Convert.Scheme, cfg.Convert.HoldRunes)

	var searcher search.Searcher = search.Disabled{}
	if cfg.Search.Enabled {
		ddg, err := search.NewDuckDuckGo(ctx, search.Config{
			MaxResults: cfg.Search.MaxResults,
			Timeout:    cfg.Search.Timeout,
		})
		if err != nil {
			log.Printf("warning: failed to initialize search: %v", err)
			log.Println("continuing with search disabled")
		} else {
			searcher = ddg
			log.Println("DuckDuckGo search initialized successfully")
		}
	} else {
		log.Println("search disabled by configuration")
	}

	status := profileHandler.Status{
		Provider:        string(cfg.AI.Provider),
		Model:           cfg.AI.ModelName(),
		Streaming:       cfg.AI.StreamResponse,
		SearchAvailable: searcher.Available(),
	}

	// A failed model keeps the UI usable; every turn then ends with the generic error.
	var generator turn.Generator
	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Printf("❌ 核心引擎未啟動，請確認 Ollama 是否執行中: %v", err)
		generator = ai.Unavailable{Cause: err}
		status.ModelError = err.Error()
	} else {
		generator = aiService
		log.Printf("AI service initialized successfully provider=%s model=%s", cfg.AI.Provider, aiService.ModelName())
	}

	runner := turn.NewRunner(chatService, profileStore, searcher, generator, converter, cfg.Convert.HoldRunes)

	router, err := handler.NewRouter(profileStore, chatService, runner, status)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Edge terminal listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
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
