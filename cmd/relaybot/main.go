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

	"github.com/justduck/relaybot/internal/ai"
	"github.com/justduck/relaybot/internal/bot"
	"github.com/justduck/relaybot/internal/config"
	"github.com/justduck/relaybot/internal/httpapi"
	"github.com/justduck/relaybot/internal/memory"
	"github.com/justduck/relaybot/internal/notify"
	"github.com/justduck/relaybot/internal/observability"
	"github.com/justduck/relaybot/internal/search"
	"github.com/justduck/relaybot/internal/telegram"
	"github.com/justduck/relaybot/internal/tts"
	"github.com/justduck/relaybot/internal/users"
	"github.com/justduck/relaybot/internal/weather"
)

func main() {
	// Local development keeps secrets in a .env file; in production
	// the variables come from the environment and the file is absent.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.TelegramBotToken == "" {
		log.Fatalf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatalf("GOOGLE_API_KEY is required")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.MemoryRetention)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	registry, err := users.NewRegistry(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("user registry init failed: %v", err)
	}
	defer registry.Close()

	if cfg.SeedAdminID != 0 {
		if _, err := registry.GetOrCreate(ctx, cfg.SeedAdminID, users.Seed{}); err != nil {
			log.Printf("seed admin %d: %v", cfg.SeedAdminID, err)
		} else if err := registry.SetRole(ctx, cfg.SeedAdminID, users.RoleAdmin); err != nil {
			log.Printf("seed admin %d role: %v", cfg.SeedAdminID, err)
		}
	}

	tgClient := telegram.NewClient(telegram.ClientConfig{
		Token:         cfg.TelegramBotToken,
		APIBase:       cfg.TelegramAPIBase,
		OutboundRate:  cfg.OutboundRate,
		OutboundBurst: cfg.OutboundBurst,
		ChunkDelay:    cfg.ChunkDelay,
		Metrics:       metrics,
	})

	generator := ai.NewGeminiGenerator(ai.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Metrics: metrics,
	})

	searcher := search.NewService(search.Config{
		TavilyAPIKey:   cfg.TavilyAPIKey,
		BraveAPIKey:    cfg.BraveAPIKey,
		PexelsAPIKey:   cfg.PexelsAPIKey,
		UnsplashAPIKey: cfg.UnsplashAccessKey,
		Metrics:        metrics,
	})
	if !searcher.WebConfigured() {
		log.Printf("web search disabled: no Tavily or Brave key")
	}
	if !searcher.ImagesConfigured() {
		log.Printf("image search disabled: no Pexels or Unsplash key")
	}

	weatherClient := weather.NewClient(weather.Config{})
	speech := tts.NewClient(tts.Config{})

	pending := bot.NewPendingTracker(cfg.PromptTTL)
	router := bot.NewRouter(bot.RouterConfig{
		AITimeout:      cfg.AITimeout,
		BroadcastDelay: cfg.BroadcastDelay,
	}, bot.RouterDeps{
		Sender:   tgClient,
		AI:       generator,
		Memory:   memoryStore,
		Users:    registry,
		Searcher: searcher,
		Weather:  weatherClient,
		Speech:   speech,
		Pending:  pending,
		Metrics:  metrics,
	})

	notifier := notify.NewService(notify.Config{Delay: cfg.NotifyDelay},
		tgClient, registry, weatherClient, metrics, nil)
	router.SetDailyRunner(notifier)

	api := httpapi.New(cfg, router, registry, notifier, metrics, nil)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go pending.RunJanitor(runCtx, time.Minute)

	var scheduler *notify.Scheduler
	if cfg.DailyEnabled {
		scheduler = notify.NewScheduler(notifier, nil)
		if err := scheduler.Register(cfg.DailyCronSpec); err != nil {
			log.Fatalf("daily schedule init failed: %v", err)
		}
		scheduler.Start()
		log.Printf("daily weather scheduled at %q", cfg.DailyCronSpec)
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
