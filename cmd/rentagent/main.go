package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/user/rentagent/internal/agent"
	"github.com/user/rentagent/internal/api"
	"github.com/user/rentagent/internal/calendar"
	"github.com/user/rentagent/internal/config"
	"github.com/user/rentagent/internal/db"
	"github.com/user/rentagent/internal/hub"
	"github.com/user/rentagent/internal/listing"
	"github.com/user/rentagent/internal/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Optional; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	tz, err := cfg.Location()
	if err != nil {
		return err
	}

	backend := &listing.RealtorClient{
		BaseURL:    cfg.SearchBaseURL,
		APIKey:     os.Getenv("RENTAL_SEARCH_API_KEY"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	// Without a calendar token the toolset drops the calendar tools and the
	// agent goes straight from contact details to simulated requests.
	var cal calendar.Service
	if cfg.CalendarTokenPath != "" {
		cal = calendar.NewGoogleClient(cfg.CalendarTokenPath, tz)
	} else {
		slog.Info("calendar token not configured, viewing plans disabled")
	}

	strategy, err := agent.NewLLMStrategy(agent.LLMOptions{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   llmAPIKey(cfg.Provider),
	})
	if err != nil {
		return err
	}

	toolset := agent.NewToolset(agent.ToolsetDeps{Backend: backend, Calendar: cal})

	orch, err := agent.New(agent.Options{
		Strategy: strategy,
		Toolset:  toolset,
		Recorder: db.NewMessageRepo(database.SQL()),
	})
	if err != nil {
		return err
	}

	mgr := server.NewManager(orch,
		db.NewConversationRepo(database.SQL()),
		db.NewViewingRequestRepo(database.SQL()),
		slog.Default())

	h := hub.New(cfg.Token, mgr)
	go h.Run(ctx)

	router := api.NewRouter(database.SQL(), mgr, cfg.Token)

	fmt.Printf("\nrentagent running at http://localhost:%d?token=%s\n\n", cfg.Port, cfg.Token)

	srv := server.New(cfg, h, router)
	return srv.Start(ctx)
}

func llmAPIKey(provider string) string {
	if provider == "openai" {
		return os.Getenv("OPENAI_API_KEY")
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("LLM_API_KEY")
}
