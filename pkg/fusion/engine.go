package fusion

import (
	"time"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/gesture"
)

// AlertKind keys the per-kind cooldown timers, so one alert firing never
// suppresses a different kind.
type AlertKind string

const (
	AlertGaze AlertKind = "GAZE"
	AlertPace AlertKind = "PACE"
)

// gestureCommands maps confirmed gestures to their UI commands. UNKNOWN and
// anything absent from this table never emit.
var gestureCommands = map[gesture.Label]string{
	gesture.Fist:     "SELECT_ITEM",
	gesture.OpenPalm: "PAUSE_SESSION",
	gesture.Pointing: "HIGHLIGHT_MODE",
	gesture.Peace:    "NEXT_ITEM",
	gesture.ThumbsUp: "APPROVE",
	gesture.OK:       "CONFIRM",
	gesture.Tchao:    "GOODBYE",
}

// Options tunes the fusion thresholds and cooldowns.
type Options struct {
	GazeWindowSize   int
	GazeThresholdDeg float64
	PaceThresholdWPM float64
	AlertCooldown    time.Duration

	// Communication score weights; see score.go.
	EmotionWeight float64
	GazeWeight    float64
	PaceWeight    float64
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		GazeWindowSize:   30,
		GazeThresholdDeg: 15.0,
		PaceThresholdWPM: 180.0,
		AlertCooldown:    5 * time.Second,
		EmotionWeight:    0.4,
		GazeWeight:       0.4,
		PaceWeight:       0.2,
	}
}

// Engine merges the vision and audio modalities into a single stream of UI
// events. One engine instance is owned exclusively by one connection's task,
// so no locking is needed. At most one event is returned per call; when
// several conditions fire at once the priority is voice command > gesture
// command > emotion adaptation > gaze alert > pace alert.
type Engine struct {
	logger *logrus.Entry
	opts   Options

	lastEmotion string
	gazeHistory []float64
	lastAlertAt map[AlertKind]time.Time
	score       *scoreTracker

	// now is replaceable in tests
	now func() time.Time
}

// NewEngine creates a fusion engine for one connection.
func NewEngine(logger *logrus.Logger, opts Options) *Engine {
	if opts.GazeWindowSize <= 0 {
		opts = DefaultOptions()
	}
	return &Engine{
		logger:      logger.WithField("component", "fusion"),
		opts:        opts,
		lastEmotion: "neutral",
		gazeHistory: make([]float64, 0, opts.GazeWindowSize),
		lastAlertAt: make(map[AlertKind]time.Time),
		score:       newScoreTracker(opts),
		now:         time.Now,
	}
}

// OnVision folds one vision event into the engine state and returns the
// highest-priority UI event it produces, or nil.
func (e *Engine) OnVision(ev VisionEvent) UIEvent {
	var gestureCmd, adaptation, gazeAlert UIEvent

	if ev.Gesture != nil {
		if command, ok := gestureCommands[*ev.Gesture]; ok {
			// Emitted on every confirmed frame, not only on change;
			// downstream consumers debounce.
			gestureCmd = NewGestureCommand(command, *ev.Gesture)
		}
	}

	if ev.EmotionLabel != "" {
		e.score.observeEmotion(ev.EmotionLabel)
		if ev.EmotionLabel != e.lastEmotion {
			adaptation = NewUIAdaptation(modeFor(ev.EmotionLabel), ev.EmotionLabel, ev.EmotionConfidence)
		}
	}

	if ev.GazeDeviationDeg != nil {
		if mean := e.trackGaze(*ev.GazeDeviationDeg); mean > e.opts.GazeThresholdDeg && e.cooldownElapsed(AlertGaze) {
			gazeAlert = GazeAlert{Type: "GAZE_ALERT", Message: "Maintain eye contact"}
		}
	}

	switch {
	case gestureCmd != nil:
		e.logger.WithField("gesture", string(*ev.Gesture)).Debug("Gesture command emitted")
		return gestureCmd
	case adaptation != nil:
		// The transition is only consumed when the adaptation is actually
		// delivered, so a suppressed transition fires on a later frame.
		e.lastEmotion = ev.EmotionLabel
		e.logger.WithFields(logrus.Fields{
			"emotion": ev.EmotionLabel,
			"mode":    adaptation.(UIAdaptation).Mode,
		}).Debug("UI adaptation emitted")
		return adaptation
	case gazeAlert != nil:
		e.lastAlertAt[AlertGaze] = e.now()
		return gazeAlert
	default:
		return nil
	}
}

// OnAudio folds one audio event into the engine state and returns the
// highest-priority UI event it produces, or nil. Voice commands are explicit
// user intent and are never rate-limited.
func (e *Engine) OnAudio(ev AudioEvent) UIEvent {
	if ev.WordsPerMinute > 0 {
		e.score.observePace(ev.WordsPerMinute, e.opts.PaceThresholdWPM)
	}

	if ev.Intent != "" {
		e.logger.WithFields(logrus.Fields{
			"intent": ev.Intent,
			"entity": ev.Entity,
		}).Debug("Voice command emitted")
		return NewVoiceCommand(ev.Intent, ev.Entity, ev.Transcript)
	}

	if ev.WordsPerMinute > e.opts.PaceThresholdWPM && e.cooldownElapsed(AlertPace) {
		e.lastAlertAt[AlertPace] = e.now()
		return PaceAlert{Type: "PACE_ALERT", Message: "Slow down"}
	}

	return nil
}

// Score returns the current communication score in [0,1].
func (e *Engine) Score() float64 {
	return e.score.value(e.gazeMean(), len(e.gazeHistory), e.opts.GazeThresholdDeg)
}

// LastEmotion returns the most recently delivered emotion label.
func (e *Engine) LastEmotion() string {
	return e.lastEmotion
}

func (e *Engine) trackGaze(deviation float64) float64 {
	if len(e.gazeHistory) == e.opts.GazeWindowSize {
		e.gazeHistory = e.gazeHistory[1:]
	}
	e.gazeHistory = append(e.gazeHistory, deviation)
	return e.gazeMean()
}

func (e *Engine) gazeMean() float64 {
	if len(e.gazeHistory) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range e.gazeHistory {
		sum += d
	}
	return sum / float64(len(e.gazeHistory))
}

func (e *Engine) cooldownElapsed(kind AlertKind) bool {
	last, ok := e.lastAlertAt[kind]
	if !ok {
		return true
	}
	return e.now().Sub(last) >= e.opts.AlertCooldown
}

func modeFor(emotion string) UIMode {
	switch emotion {
	case "angry", "fear":
		return ModeSimplified
	case "sad":
		return ModeCalm
	case "happy", "surprise":
		return ModeDynamic
	default:
		return ModeStandard
	}
}
