package session

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TimelineEntry is one timestamped event in a session's history.
type TimelineEntry struct {
	ElapsedSeconds float64 `json:"time"`
	Type           string  `json:"type"`
	Value          string  `json:"value"`
}

// Report is the immutable snapshot produced when a session stops.
type Report struct {
	SessionID       string          `json:"session_id"`
	DurationSeconds float64         `json:"duration_seconds"`
	EmotionCounts   map[string]int  `json:"emotion_stats"`
	GestureCounts   map[string]int  `json:"gesture_stats"`
	Timeline        []TimelineEntry `json:"timeline"`
	Score           float64         `json:"communication_score"`
}

// Recorder accumulates a timeline and aggregate statistics for one
// connection's coaching session. It is owned exclusively by the connection's
// task: single writer, and the report is read once on stop.
type Recorder struct {
	logger *logrus.Entry

	active      bool
	sessionID   string
	startTime   time.Time
	emotionsLog []string
	gesturesLog []string
	timeline    []TimelineEntry

	// now is replaceable in tests
	now func() time.Time
}

// NewRecorder creates an inactive recorder.
func NewRecorder(logger *logrus.Logger) *Recorder {
	return &Recorder{
		logger: logger.WithField("component", "session"),
		now:    time.Now,
	}
}

// Start begins a new session, resetting all logs. Calling Start while a
// session is already active is a no-op that preserves the existing logs.
func (r *Recorder) Start() {
	if r.active {
		return
	}
	r.active = true
	r.sessionID = uuid.NewString()
	r.startTime = r.now()
	r.emotionsLog = nil
	r.gesturesLog = nil
	r.timeline = nil
	r.logger.WithField("session_id", r.sessionID).Info("Session started")
}

// Stop ends the session and returns its report. Returns nil when no session
// is active; logs are left untouched in that case.
func (r *Recorder) Stop(score float64) *Report {
	if !r.active {
		return nil
	}
	r.active = false

	report := &Report{
		SessionID:       r.sessionID,
		DurationSeconds: roundCenti(r.now().Sub(r.startTime).Seconds()),
		EmotionCounts:   countValues(r.emotionsLog),
		GestureCounts:   countValues(r.gesturesLog),
		Timeline:        append([]TimelineEntry(nil), r.timeline...),
		Score:           score,
	}

	r.logger.WithFields(logrus.Fields{
		"session_id": report.SessionID,
		"duration_s": report.DurationSeconds,
		"gestures":   len(r.gesturesLog),
		"emotions":   len(r.emotionsLog),
	}).Info("Session stopped")

	return report
}

// Active reports whether a session is currently being recorded.
func (r *Recorder) Active() bool {
	return r.active
}

// LogEmotion records one emotion observation. No-op while inactive.
func (r *Recorder) LogEmotion(label string) {
	if !r.active {
		return
	}
	r.emotionsLog = append(r.emotionsLog, label)
}

// LogGesture records one confirmed gesture and appends a timeline entry
// stamped with the elapsed session time. No-op while inactive.
func (r *Recorder) LogGesture(label string) {
	if !r.active {
		return
	}
	r.gesturesLog = append(r.gesturesLog, label)
	r.timeline = append(r.timeline, TimelineEntry{
		ElapsedSeconds: roundCenti(r.now().Sub(r.startTime).Seconds()),
		Type:           "GESTURE",
		Value:          label,
	})
}

func countValues(values []string) map[string]int {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	return counts
}

func roundCenti(v float64) float64 {
	return math.Round(v*100) / 100
}
