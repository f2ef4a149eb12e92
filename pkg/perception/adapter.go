// Package perception normalizes the heterogeneous responses of the external
// perception collaborators (landmark/gesture extraction, emotion
// classification, speech-to-text plus intent) into canonical shapes the
// fusion engine can consume. Collaborators run out of process and are
// reached over HTTP; every absence of a field means "not detected this
// frame", never an error.
package perception

import (
	"context"
)

// HandFeatures are the raw geometric features for one detected hand, when
// the collaborator delegates classification to the server. Index 0 of
// Fingers is the thumb.
type HandFeatures struct {
	Fingers            [5]bool `json:"fingers"`
	ThumbIndexDistance float64 `json:"thumb_index_distance"`
	WristLateralMove   float64 `json:"wrist_movement"`
}

// VisionResult is the combined, normalized output of the vision
// collaborators for a single frame.
type VisionResult struct {
	// HandDetected is false when the frame contained no recognizable hand;
	// the gesture smoothing window restarts cold in that case.
	HandDetected bool

	// Gesture is the collaborator-side classification, if it produced one.
	Gesture string

	// RawHand carries geometric features for server-side classification.
	RawHand *HandFeatures

	EmotionLabel      string
	EmotionConfidence float64

	// GazeDeviationDeg is nil when no face was tracked this frame.
	GazeDeviationDeg *float64
}

// SpeechResult is the normalized output of the speech collaborator for one
// accumulated audio window. An empty transcript means "no speech detected",
// which is distinct from an adapter error.
type SpeechResult struct {
	Transcript     string
	Intent         string
	Entity         string
	WordsPerMinute float64
}

// HealthStatus is the liveness probe result of one collaborator.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Healthy and Offline are the two states a collaborator probe reports.
const (
	StatusHealthy = "healthy"
	StatusOffline = "offline"
)

// VisionAdapter analyzes a single encoded video frame.
type VisionAdapter interface {
	Name() string
	AnalyzeFrame(ctx context.Context, frame []byte) (*VisionResult, error)
	Health(ctx context.Context) HealthStatus
}

// SpeechAdapter transcribes an accumulated raw PCM buffer.
type SpeechAdapter interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte) (*SpeechResult, error)
	Health(ctx context.Context) HealthStatus
}
