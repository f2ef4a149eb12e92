package fusion

// emotionValence maps classifier emotion labels to a [0,1] valence used by
// the communication score.
var emotionValence = map[string]float64{
	"happy":    1.0,
	"surprise": 0.8,
	"neutral":  0.6,
	"sad":      0.3,
	"fear":     0.25,
	"disgust":  0.2,
	"angry":    0.2,
}

const scoreWindowSize = 30

// scoreTracker derives a communication score from rolling windows of the
// fused modalities: emotion valence, gaze attention and speaking pace. When
// a modality has produced no samples yet its term drops out and the
// remaining weights renormalize, so the score stays meaningful from the
// first observation on.
type scoreTracker struct {
	emotionWeight float64
	gazeWeight    float64
	paceWeight    float64

	valences   []float64
	paceScores []float64
}

func newScoreTracker(opts Options) *scoreTracker {
	return &scoreTracker{
		emotionWeight: opts.EmotionWeight,
		gazeWeight:    opts.GazeWeight,
		paceWeight:    opts.PaceWeight,
		valences:      make([]float64, 0, scoreWindowSize),
		paceScores:    make([]float64, 0, scoreWindowSize),
	}
}

func (t *scoreTracker) observeEmotion(label string) {
	valence, ok := emotionValence[label]
	if !ok {
		valence = 0.5
	}
	t.valences = appendBounded(t.valences, valence)
}

// observePace scores one transcription window: full marks inside a
// comfortable band, linear penalty the further the rate drifts above the
// alert threshold or below conversational speed.
func (t *scoreTracker) observePace(wpm, threshold float64) {
	var s float64
	switch {
	case wpm >= 100 && wpm <= threshold:
		s = 1.0
	case wpm > threshold:
		s = clamp01(1.0 - (wpm-threshold)/threshold)
	default:
		s = clamp01(wpm / 100.0)
	}
	t.paceScores = appendBounded(t.paceScores, s)
}

// value combines the modality terms. gazeMean comes from the engine's gaze
// window; attention is full at zero deviation and exhausted at three times
// the alert threshold.
func (t *scoreTracker) value(gazeMean float64, gazeSamples int, gazeThreshold float64) float64 {
	totalWeight := 0.0
	weighted := 0.0

	if len(t.valences) > 0 {
		weighted += t.emotionWeight * mean(t.valences)
		totalWeight += t.emotionWeight
	}
	if gazeSamples > 0 {
		attention := clamp01(1.0 - gazeMean/(3*gazeThreshold))
		weighted += t.gazeWeight * attention
		totalWeight += t.gazeWeight
	}
	if len(t.paceScores) > 0 {
		weighted += t.paceWeight * mean(t.paceScores)
		totalWeight += t.paceWeight
	}

	if totalWeight == 0 {
		return 0.5
	}
	return clamp01(weighted / totalWeight)
}

func appendBounded(window []float64, v float64) []float64 {
	if len(window) == scoreWindowSize {
		window = window[1:]
	}
	return append(window, v)
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
