package main

import (
	"flag"
	"log"
	"os"

	"MarketSnap/internal/di"
	"MarketSnap/pkg/config"
	applogger "MarketSnap/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	app.Logger().Info("marketsnap starting",
		applogger.String("env", cfg.Environment),
		applogger.String("storage", cfg.Storage.Driver),
		applogger.String("refresh_dispatcher", cfg.Refresh.Dispatcher),
		applogger.Int("port", cfg.Server.Port))

	// Run blocks until SIGINT or SIGTERM.
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
