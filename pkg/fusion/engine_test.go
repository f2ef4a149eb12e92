package fusion

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnisense-server/pkg/gesture"
)

func newTestEngine() (*Engine, *fakeClock) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	e := NewEngine(logger, DefaultOptions())
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	e.now = clock.Now
	return e, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func gesturePtr(l gesture.Label) *gesture.Label { return &l }

func float64Ptr(f float64) *float64 { return &f }

func TestGestureCommandMapping(t *testing.T) {
	tests := []struct {
		g       gesture.Label
		command string
	}{
		{gesture.Fist, "SELECT_ITEM"},
		{gesture.OpenPalm, "PAUSE_SESSION"},
		{gesture.Pointing, "HIGHLIGHT_MODE"},
		{gesture.Peace, "NEXT_ITEM"},
		{gesture.ThumbsUp, "APPROVE"},
		{gesture.OK, "CONFIRM"},
		{gesture.Tchao, "GOODBYE"},
	}

	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			e, _ := newTestEngine()
			ev := e.OnVision(VisionEvent{Gesture: gesturePtr(tt.g)})
			require.NotNil(t, ev)
			cmd, ok := ev.(UICommand)
			require.True(t, ok)
			assert.Equal(t, tt.command, cmd.Command)
			assert.Equal(t, SourceGesture, cmd.Source)
		})
	}
}

func TestUnknownGestureNeverEmits(t *testing.T) {
	e, _ := newTestEngine()
	assert.Nil(t, e.OnVision(VisionEvent{Gesture: gesturePtr(gesture.Unknown)}))
	assert.Nil(t, e.OnVision(VisionEvent{Gesture: gesturePtr(gesture.TwoFingers)}))
}

func TestGestureCommandRepeatsEveryFrame(t *testing.T) {
	e, _ := newTestEngine()
	for i := 0; i < 3; i++ {
		ev := e.OnVision(VisionEvent{Gesture: gesturePtr(gesture.Fist)})
		require.NotNil(t, ev, "frame %d", i)
	}
}

func TestEmotionAdaptationOnlyOnTransition(t *testing.T) {
	e, _ := newTestEngine()

	ev := e.OnVision(VisionEvent{EmotionLabel: "happy", EmotionConfidence: 0.9})
	require.NotNil(t, ev)
	ad, ok := ev.(UIAdaptation)
	require.True(t, ok)
	assert.Equal(t, ModeDynamic, ad.Mode)
	assert.Equal(t, 0.9, ad.Confidence)

	assert.Nil(t, e.OnVision(VisionEvent{EmotionLabel: "happy"}), "same emotion again is not a transition")

	ev = e.OnVision(VisionEvent{EmotionLabel: "sad"})
	require.NotNil(t, ev)
	assert.Equal(t, ModeCalm, ev.(UIAdaptation).Mode)
}

func TestEmotionModeMapping(t *testing.T) {
	tests := []struct {
		emotion string
		mode    UIMode
	}{
		{"angry", ModeSimplified},
		{"fear", ModeSimplified},
		{"sad", ModeCalm},
		{"happy", ModeDynamic},
		{"surprise", ModeDynamic},
		{"disgust", ModeStandard},
	}
	for _, tt := range tests {
		e, _ := newTestEngine()
		ev := e.OnVision(VisionEvent{EmotionLabel: tt.emotion})
		require.NotNil(t, ev, tt.emotion)
		assert.Equal(t, tt.mode, ev.(UIAdaptation).Mode, tt.emotion)
	}
}

func TestGazeAlertThresholdAndCooldown(t *testing.T) {
	e, clock := newTestEngine()

	// Rolling mean above 15 degrees fires immediately on the first sample.
	ev := e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(30.0)})
	require.NotNil(t, ev)
	assert.IsType(t, GazeAlert{}, ev)

	// Still above threshold, but inside the cooldown window.
	for i := 0; i < 5; i++ {
		clock.Advance(500 * time.Millisecond)
		assert.Nil(t, e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(30.0)}))
	}

	// 5 seconds after the first alert it can fire again.
	clock.Advance(3 * time.Second)
	ev = e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(30.0)})
	require.NotNil(t, ev)
	assert.IsType(t, GazeAlert{}, ev)
}

func TestGazeBelowThresholdNeverAlerts(t *testing.T) {
	e, _ := newTestEngine()
	for i := 0; i < 60; i++ {
		assert.Nil(t, e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(10.0)}))
	}
}

func TestGazeWindowSlides(t *testing.T) {
	e, _ := newTestEngine()

	// Fill the 30-sample window with zero deviation.
	for i := 0; i < 30; i++ {
		e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(0.0)})
	}

	// 29 large samples push the mean over 15 only once enough old zeros
	// have been evicted: mean of (n*30 + (30-n)*0)/30 > 15 needs n > 15.
	fired := false
	for i := 0; i < 16; i++ {
		if ev := e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(30.0)}); ev != nil {
			fired = i == 15
			break
		}
	}
	assert.True(t, fired, "alert must fire exactly when the rolling mean crosses the threshold")
}

func TestVoiceCommandNeverRateLimited(t *testing.T) {
	e, clock := newTestEngine()

	ev := e.OnAudio(AudioEvent{Intent: "NEXT_PAGE", Transcript: "please go next"})
	require.NotNil(t, ev)
	cmd := ev.(UICommand)
	assert.Equal(t, SourceVoice, cmd.Source)
	assert.Equal(t, "NEXT_PAGE", cmd.Command)
	assert.Equal(t, "please go next", cmd.Transcript)

	// A second intent within one second still emits.
	clock.Advance(200 * time.Millisecond)
	ev = e.OnAudio(AudioEvent{Intent: "CONFIRM", Transcript: "yes"})
	require.NotNil(t, ev)
	assert.Equal(t, "CONFIRM", ev.(UICommand).Command)
}

func TestPaceAlertWithCooldown(t *testing.T) {
	e, clock := newTestEngine()

	ev := e.OnAudio(AudioEvent{WordsPerMinute: 200})
	require.NotNil(t, ev)
	assert.IsType(t, PaceAlert{}, ev)

	clock.Advance(time.Second)
	assert.Nil(t, e.OnAudio(AudioEvent{WordsPerMinute: 210}), "inside cooldown")

	clock.Advance(5 * time.Second)
	ev = e.OnAudio(AudioEvent{WordsPerMinute: 210})
	require.NotNil(t, ev)
	assert.IsType(t, PaceAlert{}, ev)
}

func TestPaceBelowThresholdNoAlert(t *testing.T) {
	e, _ := newTestEngine()
	assert.Nil(t, e.OnAudio(AudioEvent{WordsPerMinute: 150}))
}

func TestCooldownsAreKeyedPerAlertKind(t *testing.T) {
	e, clock := newTestEngine()

	require.NotNil(t, e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(40.0)}))

	// A gaze alert just fired; the pace cooldown is independent.
	clock.Advance(100 * time.Millisecond)
	ev := e.OnAudio(AudioEvent{WordsPerMinute: 220})
	require.NotNil(t, ev)
	assert.IsType(t, PaceAlert{}, ev)
}

func TestVisionPriorityGestureOverEmotionOverGaze(t *testing.T) {
	e, _ := newTestEngine()

	ev := e.OnVision(VisionEvent{
		Gesture:          gesturePtr(gesture.Fist),
		EmotionLabel:     "happy",
		GazeDeviationDeg: float64Ptr(40.0),
	})
	require.NotNil(t, ev)
	assert.IsType(t, UICommand{}, ev, "gesture command wins")

	// The suppressed emotion transition is still pending and fires next.
	ev = e.OnVision(VisionEvent{EmotionLabel: "happy"})
	require.NotNil(t, ev)
	assert.IsType(t, UIAdaptation{}, ev)
}

func TestVoicePriorityOverPace(t *testing.T) {
	e, _ := newTestEngine()
	ev := e.OnAudio(AudioEvent{Intent: "CONFIRM", WordsPerMinute: 240})
	require.NotNil(t, ev)
	assert.IsType(t, UICommand{}, ev, "voice command wins over pace alert")
}

func TestSuppressedGazeAlertDoesNotConsumeCooldown(t *testing.T) {
	e, _ := newTestEngine()

	ev := e.OnVision(VisionEvent{Gesture: gesturePtr(gesture.Fist), GazeDeviationDeg: float64Ptr(40.0)})
	require.NotNil(t, ev)
	assert.IsType(t, UICommand{}, ev)

	// The gaze alert was outranked, so it may fire on the next frame.
	ev = e.OnVision(VisionEvent{GazeDeviationDeg: float64Ptr(40.0)})
	require.NotNil(t, ev)
	assert.IsType(t, GazeAlert{}, ev)
}

func TestScoreNeutralWithoutObservations(t *testing.T) {
	e, _ := newTestEngine()
	assert.Equal(t, 0.5, e.Score())
}

func TestScoreRespondsToModalities(t *testing.T) {
	e, _ := newTestEngine()

	e.OnVision(VisionEvent{EmotionLabel: "happy", GazeDeviationDeg: float64Ptr(0.0)})
	e.OnAudio(AudioEvent{WordsPerMinute: 140, Transcript: "steady delivery"})
	high := e.Score()
	assert.Greater(t, high, 0.8)

	// Sustained bad signals drag the score down.
	for i := 0; i < 30; i++ {
		e.OnVision(VisionEvent{EmotionLabel: "angry", GazeDeviationDeg: float64Ptr(45.0)})
		e.OnAudio(AudioEvent{WordsPerMinute: 300})
	}
	low := e.Score()
	assert.Less(t, low, high)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, low, 1.0)
}
