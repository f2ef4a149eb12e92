package session

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder() (*Recorder, *time.Time) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	r := NewRecorder(logger)
	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestStopWhileInactiveReturnsNil(t *testing.T) {
	r, _ := newTestRecorder()
	assert.Nil(t, r.Stop(0))
	assert.False(t, r.Active())
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	r, now := newTestRecorder()

	r.Start()
	r.LogGesture("FIST")
	firstID := r.sessionID

	r.Start()
	assert.Equal(t, firstID, r.sessionID, "re-start must not rotate the session")

	*now = now.Add(2 * time.Second)
	report := r.Stop(0.5)
	require.NotNil(t, report)
	assert.Equal(t, map[string]int{"FIST": 1}, report.GestureCounts, "existing logs preserved across redundant Start")
}

func TestLogsAreNoOpsWhileInactive(t *testing.T) {
	r, _ := newTestRecorder()
	r.LogEmotion("happy")
	r.LogGesture("FIST")

	r.Start()
	report := r.Stop(0)
	require.NotNil(t, report)
	assert.Empty(t, report.EmotionCounts)
	assert.Empty(t, report.GestureCounts)
	assert.Empty(t, report.Timeline)
}

func TestReportAggregation(t *testing.T) {
	r, now := newTestRecorder()
	r.Start()

	*now = now.Add(1 * time.Second)
	r.LogGesture("FIST")
	*now = now.Add(1500 * time.Millisecond)
	r.LogGesture("OPEN_PALM")
	*now = now.Add(1500 * time.Millisecond)
	r.LogGesture("FIST")

	r.LogEmotion("happy")
	r.LogEmotion("happy")
	r.LogEmotion("sad")

	*now = now.Add(1 * time.Second)
	report := r.Stop(0.72)
	require.NotNil(t, report)

	assert.Equal(t, 5.0, report.DurationSeconds)
	assert.Equal(t, map[string]int{"FIST": 2, "OPEN_PALM": 1}, report.GestureCounts)
	assert.Equal(t, map[string]int{"happy": 2, "sad": 1}, report.EmotionCounts)
	assert.Equal(t, 0.72, report.Score)

	require.Len(t, report.Timeline, 3)
	assert.Equal(t, TimelineEntry{ElapsedSeconds: 1.0, Type: "GESTURE", Value: "FIST"}, report.Timeline[0])
	assert.Equal(t, TimelineEntry{ElapsedSeconds: 2.5, Type: "GESTURE", Value: "OPEN_PALM"}, report.Timeline[1])
	assert.Equal(t, TimelineEntry{ElapsedSeconds: 4.0, Type: "GESTURE", Value: "FIST"}, report.Timeline[2])
}

func TestSecondStopReturnsNil(t *testing.T) {
	r, _ := newTestRecorder()
	r.Start()
	require.NotNil(t, r.Stop(0))
	assert.Nil(t, r.Stop(0))
}

func TestStartAfterStopResetsLogs(t *testing.T) {
	r, _ := newTestRecorder()
	r.Start()
	r.LogGesture("FIST")
	r.Stop(0)

	r.Start()
	report := r.Stop(0)
	require.NotNil(t, report)
	assert.Empty(t, report.GestureCounts, "new session starts clean")
}

func TestDurationRoundedToCentiseconds(t *testing.T) {
	r, now := newTestRecorder()
	r.Start()
	*now = now.Add(1234567 * time.Microsecond)
	report := r.Stop(0)
	require.NotNil(t, report)
	assert.Equal(t, 1.23, report.DurationSeconds)
}
