package main

import (
	"flag"
	"log"
	"os"

	"github.com/alexenache10/NeuralPortofolio/internal/di"
	"github.com/alexenache10/NeuralPortofolio/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/trainer.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s backend=%s assets=%d", cfg.Environment, cfg.Backend.Type, len(cfg.Assets.Symbols))

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run blocks until the batch finishes or a signal arrives
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
