package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnisense-server/pkg/config"
	"omnisense-server/pkg/fusion"
	"omnisense-server/pkg/gesture"
	"omnisense-server/pkg/perception"
	"omnisense-server/pkg/stream"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testConfig() *config.Configuration {
	cfg, err := config.Load(testLogger())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newTestServer(t *testing.T, vision perception.VisionAdapter, speech perception.SpeechAdapter) *httptest.Server {
	t.Helper()
	logger := testLogger()
	registry := perception.NewRegistry(logger)
	registry.RegisterVision(vision)
	registry.RegisterSpeech(speech)

	factory := func(connUUID string, sender stream.Sender) *stream.Orchestrator {
		return stream.New(logger, stream.Options{
			ConnUUID:       connUUID,
			FlushThreshold: 100,
			Stabilizer:     gesture.DefaultStabilizerOptions(),
			Fusion:         fusion.DefaultOptions(),
		}, vision, speech, sender, nil)
	}

	handler := NewConnectionHandler(logger, 1<<20, factory)
	server := NewServer(logger, testConfig(), registry, handler)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestEndToEndGestureCommand(t *testing.T) {
	vision := perception.NewMockVisionAdapter(&perception.VisionResult{
		HandDetected: true,
		RawHand:      &perception.HandFeatures{ThumbIndexDistance: 1.0}, // all folded: FIST
	})
	srv := newTestServer(t, vision, perception.NewMockSpeechAdapter(nil))
	conn := dial(t, srv)

	frame := append([]byte{0}, []byte("jpeg")...)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
	}

	msg := readJSON(t, conn)
	assert.Equal(t, "UI_COMMAND", msg["type"])
	assert.Equal(t, "SELECT_ITEM", msg["command"])
	assert.Equal(t, "GESTURE", msg["source"])
}

func TestEndToEndSessionReport(t *testing.T) {
	srv := newTestServer(t,
		perception.NewMockVisionAdapter(&perception.VisionResult{EmotionLabel: "happy"}),
		perception.NewMockSpeechAdapter(nil))
	conn := dial(t, srv)

	start := append([]byte{2}, []byte(`{"type":"SESSION_CONTROL","action":"START"}`)...)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, start))

	frame := append([]byte{0}, []byte("jpeg")...)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	// First outbound message is the dynamic-mode adaptation for "happy".
	msg := readJSON(t, conn)
	assert.Equal(t, "UI_ADAPTATION", msg["type"])
	assert.Equal(t, "DYNAMIC", msg["mode"])

	stop := append([]byte{2}, []byte(`{"type":"SESSION_CONTROL","action":"STOP"}`)...)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, stop))

	msg = readJSON(t, conn)
	assert.Equal(t, "SESSION_REPORT", msg["type"])
	report := msg["report"].(map[string]interface{})
	emotions := report["emotion_stats"].(map[string]interface{})
	assert.Equal(t, float64(1), emotions["happy"])
}

func TestEndToEndVoiceCommand(t *testing.T) {
	speech := perception.NewMockSpeechAdapter(&perception.SpeechResult{
		Transcript: "open dashboard",
		Intent:     "ACTIVATE_MODULE",
		Entity:     "DASHBOARD",
	})
	srv := newTestServer(t, perception.NewMockVisionAdapter(), speech)
	conn := dial(t, srv)

	chunk := append([]byte{1}, make([]byte, 120)...)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, chunk))

	msg := readJSON(t, conn)
	assert.Equal(t, "UI_COMMAND", msg["type"])
	assert.Equal(t, "VOICE", msg["source"])
	assert.Equal(t, "ACTIVATE_MODULE", msg["command"])
	assert.Equal(t, "DASHBOARD", msg["entity"])
	assert.Equal(t, "open dashboard", msg["transcript"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t,
		perception.NewMockVisionAdapter(&perception.VisionResult{}),
		perception.NewMockSpeechAdapter(nil))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "healthy", report.Orchestrator)
	require.Contains(t, report.Services, "mock-vision")
	assert.Equal(t, perception.StatusHealthy, report.Services["mock-vision"].Status)
}

func TestLivenessEndpoint(t *testing.T) {
	srv := newTestServer(t,
		perception.NewMockVisionAdapter(&perception.VisionResult{}),
		perception.NewMockSpeechAdapter(nil))

	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTextMessagesAreIgnored(t *testing.T) {
	srv := newTestServer(t,
		perception.NewMockVisionAdapter(&perception.VisionResult{}),
		perception.NewMockSpeechAdapter(nil))
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	// The connection stays up: a valid control round-trip still works.
	start := append([]byte{2}, []byte(`{"type":"SESSION_CONTROL","action":"START"}`)...)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, start))
	stop := append([]byte{2}, []byte(`{"type":"SESSION_CONTROL","action":"STOP"}`)...)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, stop))

	msg := readJSON(t, conn)
	assert.Equal(t, "SESSION_REPORT", msg["type"])
}
