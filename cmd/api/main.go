package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/romariotrain/truetestify/internal/app"
	"github.com/romariotrain/truetestify/internal/config"
	"github.com/romariotrain/truetestify/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg)

	code := app.Run("api", log, func(ctx context.Context) error {
		return run(ctx, cfg, log)
	})
	os.Exit(code)
}
