package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/edge-colorizer/internal/colorizer"
	"github.com/Brownie44l1/edge-colorizer/internal/config"
	"github.com/Brownie44l1/edge-colorizer/internal/handlers"
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

	c := colorizer.New(backend)
	method := colorizer.ParsePaletteMethod(cfg.Server.PaletteMethod)
	store := jobs.NewStore(storage.NewFileStorage(cfg.Storage.Path))

	producer, err := jobs.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		logrus.WithError(err).Warn("Kafka unavailable, processing jobs in-process")
		producer = jobs.NewInlineProducer(jobs.NewProcessor(c, store, cfg.Server.PaletteSize, method), 64)
	}
	defer producer.Close()

	gin.SetMode(cfg.Server.Mode)
	h := handlers.NewHandler(c, store, producer, handlers.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		PaletteSize:    cfg.Server.PaletteSize,
		PaletteMethod:  method,
	})
	router := handlers.InitRoutes(h, handlers.RouterConfig{
		Timeout:     cfg.Server.Timeout,
		AllowOrigin: cfg.Server.AllowOrigin,
	})

	srv := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		info := backend.Info()
		logrus.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"backend": info.Backend,
			"input":   info.InputShape,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
}
