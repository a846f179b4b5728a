package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"AgentChat/internal/chatbot"
	"AgentChat/internal/config"
	"AgentChat/internal/store"
	"AgentChat/internal/telemetry"
	"AgentChat/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	// reported once the logger exists
	envErr := godotenv.Load()

	cfg := config.Load()
	flag.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Backend REST base URL")
	flag.StringVar(&cfg.WSURL, "ws-url", cfg.WSURL, "Backend streaming channel URL")
	flag.StringVar(&cfg.Lang, "lang", cfg.Lang, "Language sent with questions")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database for threads")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for logs, traces and metrics")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request timeout")
	flag.IntVar(&cfg.MaxTurns, "max-turns", cfg.MaxTurns, "Default agent team conversation length")
	flag.StringVar(&cfg.ThreadID, "thread-id", cfg.ThreadID, "Resume an existing thread by ID")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, envErr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, envErr error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()
	logEnvFile(logger, envErr)

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	db, err := telemetry.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	persist, err := store.New(db, logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer persist.Close()

	client, err := transport.NewClient(cfg.APIBaseURL, logger,
		transport.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		transport.WithTracer(tracer),
		transport.WithMeter(meter),
	)
	if err != nil {
		return err
	}
	dialer, err := transport.NewDialer(cfg.WSURL, logger)
	if err != nil {
		return err
	}

	if cfg.Debug {
		logger.Debug("debug mode enabled")
	}
	logger.Info("starting agentchat", "api_url", cfg.APIBaseURL, "ws_url", cfg.WSURL, "lang", cfg.Lang)

	bot, err := chatbot.New(ctx, chatbot.Options{
		Config: cfg,
		Logger: logger,
		Meter:  meter,
		Client: client,
		Dialer: dialer,
		Store:  persist,
		In:     os.Stdin,
		Out:    os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}

	// unblock the line reader on Ctrl-C so deferred cleanup runs
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()
	return bot.Run(ctx)
}

// logEnvFile notes whether settings came from a .env file. A missing file
// is normal when the environment is already set.
func logEnvFile(logger *slog.Logger, err error) {
	if err != nil {
		logger.Debug("No .env file loaded, using environment variables", "error", err)
		return
	}
	logger.Debug("Loaded settings from .env")
}
