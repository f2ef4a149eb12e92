package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/config"
	"omnisense-server/pkg/fusion"
	"omnisense-server/pkg/gesture"
	"omnisense-server/pkg/messaging"
	"omnisense-server/pkg/metrics"
	"omnisense-server/pkg/perception"
	"omnisense-server/pkg/stream"
	"omnisense-server/pkg/ws"
)

func main() {
	// Basic logger configuration; replaced once the config is loaded.
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.ApplyLogging(logger)

	metrics.Init(logger)

	// Perception collaborators. The gesture service is mandatory for the
	// vision path; the emotion service degrades gracefully when offline.
	gestureClient := perception.NewGestureClient(logger, cfg.GestureServiceURL, cfg.AdapterTimeout)
	emotionClient := perception.NewEmotionClient(logger, cfg.EmotionServiceURL, cfg.AdapterTimeout)
	speechClient := perception.NewSpeechClient(logger, cfg.SpeechServiceURL, cfg.AdapterTimeout)
	visionAdapter := perception.NewCombinedVisionAdapter(logger, gestureClient, emotionClient)

	registry := perception.NewRegistry(logger)
	registry.RegisterVision(visionAdapter)
	registry.RegisterSpeech(speechClient)
	registry.RegisterProbe("emotion_service", emotionClient)

	// Optional AMQP fan-out of UI events and session reports.
	amqpClient := messaging.NewClient(logger, messaging.Config{
		URL:       cfg.AMQPUrl,
		QueueName: cfg.AMQPQueueName,
	})
	var publisher stream.EventPublisher
	if amqpClient.Enabled() {
		if err := amqpClient.Connect(); err != nil {
			logger.WithError(err).Warn("AMQP connect failed, will keep retrying in the background")
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP publishing disabled (AMQP_URL not set)")
	}

	stabilizerOpts := gesture.StabilizerOptions{
		HistorySize:    cfg.GestureHistorySize,
		MajorityCount:  cfg.GestureMajorityCount,
		CooldownFrames: cfg.GestureCooldownFrames,
	}
	fusionOpts := fusion.Options{
		GazeWindowSize:   cfg.GazeWindowSize,
		GazeThresholdDeg: cfg.GazeThresholdDeg,
		PaceThresholdWPM: cfg.PaceThresholdWPM,
		AlertCooldown:    cfg.AlertCooldown,
		EmotionWeight:    cfg.ScoreEmotionWeight,
		GazeWeight:       cfg.ScoreGazeWeight,
		PaceWeight:       cfg.ScorePaceWeight,
	}

	factory := func(connUUID string, sender stream.Sender) *stream.Orchestrator {
		return stream.New(logger, stream.Options{
			ConnUUID:       connUUID,
			FlushThreshold: cfg.AudioFlushThreshold,
			Stabilizer:     stabilizerOpts,
			Fusion:         fusionOpts,
		}, visionAdapter, speechClient, sender, publisher)
	}

	connHandler := ws.NewConnectionHandler(logger, cfg.MaxMessageSize, factory)
	server := ws.NewServer(logger, cfg, registry, connHandler)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down HTTP server")
	} else {
		logger.Info("HTTP server shut down successfully")
	}

	amqpClient.Close()
	logger.Info("Shutdown complete")
}
