package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rumen-monitor/internal/alert"
	"rumen-monitor/internal/api"
	"rumen-monitor/internal/capture"
	"rumen-monitor/internal/config"
	"rumen-monitor/internal/db"
	"rumen-monitor/internal/export"
	"rumen-monitor/internal/ingest"
	"rumen-monitor/internal/model"
	"rumen-monitor/internal/ws"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal("create database directory", zap.Error(err))
	}
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open store", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()

	configHolder, err := alert.NewConfigHolder(ctx, store)
	if err != nil {
		logger.Fatal("load alert config", zap.Error(err))
	}

	captureCtl, err := capture.NewController(ctx, store, logger)
	if err != nil {
		logger.Fatal("restore capture state", zap.Error(err))
	}

	hub := ws.NewHub(logger)

	mqttClient := ingest.NewClient(cfg.MQTT, logger)
	notifier := alert.NewNotifier(store, hub, mqttClient, logger)
	pipeline := ingest.NewPipeline(store, captureCtl, configHolder, notifier, hub, logger)

	hub.SetSnapshot(func() ([]model.StationState, []model.Alert) {
		alerts, err := store.RecentAlerts(ctx, 20)
		if err != nil {
			logger.Warn("alert history for initial_state", zap.Error(err))
		}
		return pipeline.Stations(), alerts
	})
	go hub.Run(ctx)

	// Failure to reach the broker at startup is the one fatal error; after
	// this point reconnects are automatic.
	if err := mqttClient.Connect(); err != nil {
		logger.Fatal("broker unreachable", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	if err := mqttClient.Subscribe(ctx, pipeline.Handle); err != nil {
		logger.Fatal("telemetry subscribe", zap.Error(err))
	}

	exporter, err := export.NewExporter(store, cfg.Export.Dir, cfg.Export.Interval, logger)
	if err != nil {
		logger.Fatal("init exporter", zap.Error(err))
	}
	go exporter.Run(ctx)

	handler := api.NewHandler(store, captureCtl, configHolder, pipeline, notifier, hub, logger)
	srv := &http.Server{
		Addr:    cfg.HTTP.ListenAddress,
		Handler: api.NewRouter(handler),
	}
	go func() {
		logger.Info("admin surface listening", zap.String("addr", cfg.HTTP.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
		}
	}()

	logger.Info("monitor running",
		zap.String("broker", cfg.MQTT.BrokerURL),
		zap.String("namespace", cfg.MQTT.Namespace),
		zap.Duration("export_interval", cfg.Export.Interval),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", s.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func initLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Log.Format == "console" {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, err
	}
	return zcfg.Build()
}
