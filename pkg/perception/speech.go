package perception

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/errors"
)

// PCM format the speech collaborator expects: 16 kHz mono, 16-bit samples.
const (
	pcmSampleRate    = 16000
	pcmBytesPerFrame = 2
)

// speechResponse is the wire shape of the speech collaborator.
type speechResponse struct {
	Transcript string `json:"transcript"`
	Intent     string `json:"intent"`
	Entity     string `json:"entity"`
}

// SpeechClient talks to the speech-to-text + intent collaborator.
type SpeechClient struct {
	*serviceClient
}

// NewSpeechClient creates a client for the speech collaborator.
func NewSpeechClient(logger *logrus.Logger, baseURL string, timeout time.Duration) *SpeechClient {
	return &SpeechClient{serviceClient: newServiceClient(logger, "speech", baseURL, timeout)}
}

// Name implements SpeechAdapter.
func (c *SpeechClient) Name() string { return "speech" }

// Transcribe implements SpeechAdapter. The words-per-minute rate is derived
// from the transcript word count and the wall-clock length of the PCM
// buffer, since the collaborator only reports text.
func (c *SpeechClient) Transcribe(ctx context.Context, pcm []byte) (*SpeechResult, error) {
	if len(pcm) == 0 {
		return nil, errors.NewMalformedInput("empty audio buffer")
	}

	var resp speechResponse
	if err := c.postFile(ctx, "/transcribe", "audio.pcm", pcm, &resp); err != nil {
		return nil, err
	}

	result := &SpeechResult{
		Transcript: resp.Transcript,
		Intent:     resp.Intent,
		Entity:     resp.Entity,
	}

	if words := len(strings.Fields(resp.Transcript)); words > 0 {
		seconds := float64(len(pcm)) / float64(pcmSampleRate*pcmBytesPerFrame)
		if seconds > 0 {
			result.WordsPerMinute = float64(words) / seconds * 60.0
		}
	}

	c.logger.WithFields(logrus.Fields{
		"transcript_len": len(resp.Transcript),
		"intent":         resp.Intent,
		"wpm":            result.WordsPerMinute,
	}).Debug("Transcription window processed")

	return result, nil
}
