package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Configuration holds all application settings, loaded from environment
// variables with logged defaults for anything unset.
type Configuration struct {
	// HTTP server configuration
	HTTPPort          int
	HTTPEnableMetrics bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// Perception collaborator endpoints
	GestureServiceURL string
	EmotionServiceURL string
	SpeechServiceURL  string
	AdapterTimeout    time.Duration

	// Streaming configuration
	AudioFlushThreshold int // bytes of PCM accumulated before transcription
	MaxMessageSize      int64

	// Gesture stabilization
	GestureHistorySize    int
	GestureMajorityCount  int
	GestureCooldownFrames int

	// Fusion thresholds
	GazeWindowSize    int
	GazeThresholdDeg  float64
	PaceThresholdWPM  float64
	AlertCooldown     time.Duration
	ScoreEmotionWeight float64
	ScoreGazeWeight    float64
	ScorePaceWeight    float64

	// AMQP configuration (optional; empty URL disables publishing)
	AMQPUrl       string
	AMQPQueueName string

	// Logging
	LogLevel  logrus.Level
	LogFormat string
}

// Load reads the application configuration from environment variables. A
// missing .env file is not an error; explicit environment always wins.
func Load(logger *logrus.Logger) (*Configuration, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables only")
	}

	config := &Configuration{}

	config.HTTPPort = intEnv(logger, "HTTP_PORT", 8000)
	config.HTTPEnableMetrics = os.Getenv("HTTP_ENABLE_METRICS") != "false"
	config.ReadTimeout = durationEnv(logger, "HTTP_READ_TIMEOUT", 10*time.Second)
	config.WriteTimeout = durationEnv(logger, "HTTP_WRITE_TIMEOUT", 10*time.Second)

	config.GestureServiceURL = stringEnv(logger, "GESTURE_SERVICE_URL", "http://localhost:8002")
	config.EmotionServiceURL = stringEnv(logger, "EMOTION_SERVICE_URL", "http://localhost:8003")
	config.SpeechServiceURL = stringEnv(logger, "SPEECH_SERVICE_URL", "http://localhost:8001")
	config.AdapterTimeout = durationEnv(logger, "ADAPTER_TIMEOUT", 10*time.Second)

	// 48000 bytes is ~1.5s of 16kHz 16-bit mono PCM
	config.AudioFlushThreshold = intEnv(logger, "AUDIO_FLUSH_THRESHOLD", 48000)
	config.MaxMessageSize = int64(intEnv(logger, "MAX_MESSAGE_SIZE", 1<<20))

	config.GestureHistorySize = intEnv(logger, "GESTURE_HISTORY_SIZE", 5)
	config.GestureMajorityCount = intEnv(logger, "GESTURE_MAJORITY_COUNT", 4)
	config.GestureCooldownFrames = intEnv(logger, "GESTURE_COOLDOWN_FRAMES", 10)

	config.GazeWindowSize = intEnv(logger, "GAZE_WINDOW_SIZE", 30)
	config.GazeThresholdDeg = floatEnv(logger, "GAZE_THRESHOLD_DEG", 15.0)
	config.PaceThresholdWPM = floatEnv(logger, "PACE_THRESHOLD_WPM", 180.0)
	config.AlertCooldown = durationEnv(logger, "ALERT_COOLDOWN", 5*time.Second)
	config.ScoreEmotionWeight = floatEnv(logger, "SCORE_EMOTION_WEIGHT", 0.4)
	config.ScoreGazeWeight = floatEnv(logger, "SCORE_GAZE_WEIGHT", 0.4)
	config.ScorePaceWeight = floatEnv(logger, "SCORE_PACE_WEIGHT", 0.2)

	config.AMQPUrl = os.Getenv("AMQP_URL")
	config.AMQPQueueName = stringEnv(logger, "AMQP_QUEUE_NAME", "omnisense_events")
	if config.AMQPUrl == "" {
		logger.Info("AMQP_URL not set, event publishing disabled")
	}

	levelStr := stringEnv(logger, "LOG_LEVEL", "info")
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		logger.WithField("log_level", levelStr).Warn("Invalid LOG_LEVEL, defaulting to info")
		level = logrus.InfoLevel
	}
	config.LogLevel = level
	config.LogFormat = stringEnv(logger, "LOG_FORMAT", "text")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations that cannot work.
func (c *Configuration) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.AudioFlushThreshold <= 0 {
		return fmt.Errorf("AUDIO_FLUSH_THRESHOLD must be positive, got %d", c.AudioFlushThreshold)
	}
	if c.GestureHistorySize <= 0 {
		return fmt.Errorf("GESTURE_HISTORY_SIZE must be positive, got %d", c.GestureHistorySize)
	}
	if c.GestureMajorityCount > c.GestureHistorySize {
		return fmt.Errorf("GESTURE_MAJORITY_COUNT (%d) cannot exceed GESTURE_HISTORY_SIZE (%d)",
			c.GestureMajorityCount, c.GestureHistorySize)
	}
	if c.GazeWindowSize <= 0 {
		return fmt.Errorf("GAZE_WINDOW_SIZE must be positive, got %d", c.GazeWindowSize)
	}
	return nil
}

// ApplyLogging configures the logger according to the loaded configuration.
func (c *Configuration) ApplyLogging(logger *logrus.Logger) {
	logger.SetLevel(c.LogLevel)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func stringEnv(logger *logrus.Logger, key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	logger.WithFields(logrus.Fields{"key": key, "default": def}).Debug("Using default configuration value")
	return def
}

func intEnv(logger *logrus.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.WithFields(logrus.Fields{"key": key, "value": v, "default": def}).Warn("Invalid integer value, using default")
		return def
	}
	return n
}

func floatEnv(logger *logrus.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.WithFields(logrus.Fields{"key": key, "value": v, "default": def}).Warn("Invalid float value, using default")
		return def
	}
	return f
}

func durationEnv(logger *logrus.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.WithFields(logrus.Fields{"key": key, "value": v, "default": def}).Warn("Invalid duration value, using default")
		return def
	}
	return d
}
