package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantfolio/risk-engine/config"
	"github.com/quantfolio/risk-engine/internal/kafka"
	"github.com/quantfolio/risk-engine/internal/simulation"
	"github.com/quantfolio/risk-engine/internal/store"
	"github.com/quantfolio/risk-engine/internal/stream"
	"github.com/quantfolio/risk-engine/pkg/api"
	"github.com/quantfolio/risk-engine/pkg/metrics"
	"github.com/quantfolio/risk-engine/pkg/models"
	"github.com/quantfolio/risk-engine/pkg/utils/logger"
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("risk-engine.main")
	log.Infof("Starting %s", cfg.App.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()
	snapshots := store.NewInMemorySnapshotStore()
	results := store.NewResultStore()

	hub := stream.NewHub()
	go hub.Run(ctx)

	// Kafka edges: snapshots in, results out
	kafkaClient := kafka.NewClient(&kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.Consumer.GroupID,
		StartOffset:    cfg.Kafka.Consumer.AutoOffsetReset,
		BatchSize:      cfg.Kafka.Producer.BatchSize,
		SessionTimeout: cfg.Kafka.Consumer.SessionTimeout,
	})
	snapshotConsumer := kafkaClient.NewConsumer(cfg.Kafka.Topics.PortfolioSnapshots)
	resultProducer := kafkaClient.NewProducer(cfg.Kafka.Topics.RiskResults)

	settings := models.SimulationSettings{
		NumPaths:             cfg.Simulation.NumPaths,
		UseQMC:               cfg.Simulation.UseQMC,
		FatTailMethod:        models.FatTailMethod(cfg.Simulation.FatTailMethod),
		DrawdownThresholdPct: cfg.Simulation.DrawdownThresholdPct,
		MaxWorkers:           cfg.Simulation.MaxWorkers,
	}

	// Every consumed snapshot runs the configured simulation; the result is
	// retained, broadcast to subscribers, and published downstream
	go func() {
		err := snapshotConsumer.ConsumeSnapshots(ctx, func(ctx context.Context, snap *models.PortfolioSnapshot) error {
			recorder.RecordSnapshotConsumed()
			if err := snapshots.Save(snap); err != nil {
				return err
			}

			orch := simulation.NewOrchestrator(settings.MaxWorkers, hub.Reporter(snap.ID))
			result, err := orch.RunSnapshot(ctx, snap, settings)

			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			recorder.RecordSimulation(settings.FatTailMethod, settings.UseQMC, outcome, settings.NumPaths, result.Duration)
			if err != nil {
				log.Errorf("Simulation failed for portfolio %s: %v", snap.ID, err)
				// The failure is terminal for this snapshot; commit and move on
				return nil
			}

			if err := results.Save(snap.ID, result); err != nil {
				log.Warnf("Failed to retain result for portfolio %s: %v", snap.ID, err)
			}
			recorder.RecordResult(snap.ID, result)
			hub.BroadcastResult(snap.ID, result)

			if err := resultProducer.PublishResult(ctx, snap.ID, result); err != nil {
				return err
			}
			recorder.RecordResultPublished()
			log.Infof("Published simulation result for portfolio %s", snap.ID)
			return nil
		})
		if err != nil {
			log.Errorf("Snapshot consumer stopped: %v", err)
			cancel()
		}
	}()

	// HTTP surface
	handlers := api.CreateHandlers(snapshots, results, hub, recorder, cfg.Simulation, cfg.Optimizer)
	server := api.NewServer(api.Config{
		Host:         cfg.API.Host,
		Port:         cfg.API.Port,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}, handlers)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Errorf("API server failed: %v", err)
			cancel()
		}
	}()

	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port)
		go func() {
			if err := promServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	log.Info("Risk engine started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
		log.Info("Context cancelled, initiating shutdown")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}
	if promServer != nil {
		if err := promServer.Stop(); err != nil {
			log.Errorf("Metrics server shutdown error: %v", err)
		}
	}
	if err := snapshotConsumer.Close(); err != nil {
		log.Errorf("Snapshot consumer shutdown error: %v", err)
	}
	if err := resultProducer.Close(); err != nil {
		log.Errorf("Result producer shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
	_ = log.Sync()
}
