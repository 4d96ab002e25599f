package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/edge-colorizer/internal/colorizer"
	"github.com/Brownie44l1/edge-colorizer/internal/config"
	"github.com/Brownie44l1/edge-colorizer/internal/jobs"
	"github.com/Brownie44l1/edge-colorizer/internal/model"
	"github.com/Brownie44l1/edge-colorizer/internal/storage"
)

func main() {
	v, err := config.LoadConfig(config.GetEnv("COLORIZER_CONFIG_DIR", "./config"))
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		logrus.Fatalf("Failed to parse config: %v", err)
	}
	if err := cfg.Log.ConfigureLogger(); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	backend, err := model.Load(cfg.Model.LoadOptions())
	if err != nil {
		logrus.Fatalf("Failed to initialize model: %v", err)
	}
	defer backend.Close()

	store := jobs.NewStore(storage.NewFileStorage(cfg.Storage.Path))
	processor := jobs.NewProcessor(colorizer.New(backend), store,
		cfg.Server.PaletteSize, colorizer.ParsePaletteMethod(cfg.Server.PaletteMethod))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := jobs.NewConsumer(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic, cfg.Kafka.GroupID, processor, 2)
	if err := consumer.Run(ctx); err != nil {
		logrus.Fatalf("Consumer failed: %v", err)
	}
}
