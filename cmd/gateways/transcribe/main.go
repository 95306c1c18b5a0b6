package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	config "github.com/deporecord/backend/config/transcribe"
	transcribe "github.com/deporecord/backend/gateways/transcribe"
	"github.com/deporecord/backend/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:      slog.LevelDebug,
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: false,
	})

	cfg := config.MustLoad()

	if cfg.DeepgramAPIKey == "" {
		log.Error("DEEPGRAM_API_KEY is required")
		os.Exit(1)
	}

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	srv, err := transcribe.New(cfg, log)
	if err != nil {
		log.Error("failed to create transcription gateway", slog.String("error", err.Error()))
		return err
	}

	return srv.Start(ctx)
}
