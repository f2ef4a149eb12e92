package fusion

import (
	"time"

	"omnisense-server/pkg/gesture"
)

// VisionEvent is the canonical per-frame result of the vision collaborators.
// Any field may be absent for a given frame; absence means "not detected",
// not an error.
type VisionEvent struct {
	Gesture           *gesture.Label
	EmotionLabel      string
	EmotionConfidence float64
	GazeDeviationDeg  *float64
	Timestamp         time.Time
}

// AudioEvent is the canonical result of one transcription window.
type AudioEvent struct {
	Transcript     string
	Intent         string
	Entity         string
	WordsPerMinute float64
	Timestamp      time.Time
}

// CommandSource tells a client which modality produced a UI command.
type CommandSource string

const (
	SourceGesture CommandSource = "GESTURE"
	SourceVoice   CommandSource = "VOICE"
)

// UIMode is the adaptive presentation mode derived from the speaker's emotion.
type UIMode string

const (
	ModeStandard   UIMode = "STANDARD"
	ModeSimplified UIMode = "SIMPLIFIED"
	ModeCalm       UIMode = "CALM"
	ModeDynamic    UIMode = "DYNAMIC"
)

// UIEvent is the closed set of outbound messages the fusion engine can emit.
// Implementations are the only valid variants; the marker method keeps the
// set closed.
type UIEvent interface {
	EventType() string
	uiEvent()
}

// UIAdaptation asks the client to switch presentation mode after an emotion
// transition.
type UIAdaptation struct {
	Type       string  `json:"type"`
	Mode       UIMode  `json:"mode"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// UICommand is a discrete command triggered by a confirmed gesture or a voice
// intent. Transcript and Entity are only populated for voice commands.
type UICommand struct {
	Type       string        `json:"type"`
	Source     CommandSource `json:"source"`
	Command    string        `json:"command"`
	Gesture    string        `json:"gesture,omitempty"`
	Entity     string        `json:"entity,omitempty"`
	Transcript string        `json:"transcript,omitempty"`
}

// GazeAlert warns that the speaker has been looking away for too long.
type GazeAlert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PaceAlert warns that the speaker is talking too fast.
type PaceAlert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e UIAdaptation) EventType() string { return "UI_ADAPTATION" }
func (e UICommand) EventType() string    { return "UI_COMMAND" }
func (e GazeAlert) EventType() string    { return "GAZE_ALERT" }
func (e PaceAlert) EventType() string    { return "PACE_ALERT" }

func (UIAdaptation) uiEvent() {}
func (UICommand) uiEvent()    {}
func (GazeAlert) uiEvent()    {}
func (PaceAlert) uiEvent()    {}

// NewUIAdaptation builds the adaptation variant with its type tag set.
func NewUIAdaptation(mode UIMode, emotion string, confidence float64) UIAdaptation {
	return UIAdaptation{Type: "UI_ADAPTATION", Mode: mode, Emotion: emotion, Confidence: confidence}
}

// NewGestureCommand builds a gesture-sourced command.
func NewGestureCommand(command string, g gesture.Label) UICommand {
	return UICommand{Type: "UI_COMMAND", Source: SourceGesture, Command: command, Gesture: string(g)}
}

// NewVoiceCommand builds a voice-sourced command.
func NewVoiceCommand(intent, entity, transcript string) UICommand {
	return UICommand{Type: "UI_COMMAND", Source: SourceVoice, Command: intent, Entity: entity, Transcript: transcript}
}
