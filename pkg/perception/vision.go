package perception

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/errors"
)

// gestureResponse is the wire shape of the landmark/gesture collaborator.
// The service either classifies the gesture itself or hands back raw
// geometric features for server-side classification; both fields absent
// means no hand was detected this frame.
type gestureResponse struct {
	Gesture       string        `json:"gesture,omitempty"`
	Features      *HandFeatures `json:"features,omitempty"`
	GazeDeviation *float64      `json:"gaze_deviation,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// emotionResponse is the wire shape of the emotion collaborator.
type emotionResponse struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// GestureClient talks to the landmark/gesture extraction collaborator.
type GestureClient struct {
	*serviceClient
}

// NewGestureClient creates a client for the gesture collaborator.
func NewGestureClient(logger *logrus.Logger, baseURL string, timeout time.Duration) *GestureClient {
	return &GestureClient{serviceClient: newServiceClient(logger, "gesture", baseURL, timeout)}
}

func (c *GestureClient) analyze(ctx context.Context, frame []byte) (*gestureResponse, error) {
	var resp gestureResponse
	if err := c.postFile(ctx, "/analyze", "frame.jpg", frame, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.NewMalformedInput(resp.Error).WithField("service", c.name)
	}
	return &resp, nil
}

// EmotionClient talks to the emotion classification collaborator.
type EmotionClient struct {
	*serviceClient
}

// NewEmotionClient creates a client for the emotion collaborator.
func NewEmotionClient(logger *logrus.Logger, baseURL string, timeout time.Duration) *EmotionClient {
	return &EmotionClient{serviceClient: newServiceClient(logger, "emotion", baseURL, timeout)}
}

func (c *EmotionClient) analyze(ctx context.Context, frame []byte) (*emotionResponse, error) {
	var resp emotionResponse
	if err := c.postFile(ctx, "/analyze", "frame.jpg", frame, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CombinedVisionAdapter fans one frame out to the gesture and emotion
// collaborators and merges their responses. Emotion classification is
// best-effort: its failure degrades the result but never blocks the gesture
// path.
type CombinedVisionAdapter struct {
	logger  *logrus.Entry
	gesture *GestureClient
	emotion *EmotionClient
}

// NewCombinedVisionAdapter wires the two vision collaborators together.
func NewCombinedVisionAdapter(logger *logrus.Logger, gesture *GestureClient, emotion *EmotionClient) *CombinedVisionAdapter {
	return &CombinedVisionAdapter{
		logger:  logger.WithField("adapter", "vision"),
		gesture: gesture,
		emotion: emotion,
	}
}

// Name implements VisionAdapter.
func (a *CombinedVisionAdapter) Name() string { return "vision" }

// AnalyzeFrame implements VisionAdapter. The gesture call is mandatory; the
// emotion call is skipped in the merged result when it fails.
func (a *CombinedVisionAdapter) AnalyzeFrame(ctx context.Context, frame []byte) (*VisionResult, error) {
	if len(frame) == 0 {
		return nil, errors.NewMalformedInput("empty video frame")
	}

	gestureResp, err := a.gesture.analyze(ctx, frame)
	if err != nil {
		return nil, err
	}

	result := &VisionResult{
		HandDetected:     gestureResp.Gesture != "" || gestureResp.Features != nil,
		Gesture:          gestureResp.Gesture,
		RawHand:          gestureResp.Features,
		GazeDeviationDeg: gestureResp.GazeDeviation,
	}

	if a.emotion != nil {
		emotionResp, err := a.emotion.analyze(ctx, frame)
		if err != nil {
			a.logger.WithError(err).Debug("Emotion collaborator skipped for this frame")
		} else if emotionResp.Error == "" && emotionResp.Emotion != "" {
			result.EmotionLabel = emotionResp.Emotion
			result.EmotionConfidence = emotionResp.Confidence
		}
	}

	return result, nil
}

// Health implements VisionAdapter; the gesture collaborator is the
// authoritative probe for the vision path.
func (a *CombinedVisionAdapter) Health(ctx context.Context) HealthStatus {
	return a.gesture.Health(ctx)
}

// EmotionHealth probes the optional emotion collaborator.
func (a *CombinedVisionAdapter) EmotionHealth(ctx context.Context) HealthStatus {
	if a.emotion == nil {
		return HealthStatus{Status: StatusOffline, Service: "emotion"}
	}
	return a.emotion.Health(ctx)
}
