package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/metrics"
	"omnisense-server/pkg/stream"
)

// Upgrader configures the WebSocket handshake.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; deployment fronts this with a proxy.
		return true
	},
}

// wsSender serializes outbound JSON writes on one connection. Reads and
// writes happen on the same goroutine in the normal path, but the mutex
// keeps close frames from interleaving with event writes.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) SendJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// OrchestratorFactory builds a stream orchestrator for one connection.
type OrchestratorFactory func(connUUID string, sender stream.Sender) *stream.Orchestrator

// ConnectionHandler upgrades HTTP requests and runs the per-connection
// streaming loop. Message handling within one connection is strictly
// sequential; each connection gets its own goroutine and its own
// connection-scoped state, so connections never contend on shared state.
type ConnectionHandler struct {
	logger      *logrus.Logger
	maxMsgSize  int64
	newOrchestr OrchestratorFactory
}

// NewConnectionHandler creates the /ws endpoint handler.
func NewConnectionHandler(logger *logrus.Logger, maxMsgSize int64, factory OrchestratorFactory) *ConnectionHandler {
	if maxMsgSize <= 0 {
		maxMsgSize = 1 << 20
	}
	return &ConnectionHandler{
		logger:      logger,
		maxMsgSize:  maxMsgSize,
		newOrchestr: factory,
	}
}

// ServeHTTP implements http.Handler.
func (h *ConnectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	connUUID := uuid.NewString()
	logger := h.logger.WithField("conn_uuid", connUUID)
	logger.Info("Client connected")

	if metrics.ConnectionsActive != nil {
		metrics.ConnectionsActive.Inc()
	}

	sender := &wsSender{conn: conn}
	orchestrator := h.newOrchestr(connUUID, sender)

	// Cancelling the context aborts any in-flight adapter call for this
	// connection.
	ctx, cancel := context.WithCancel(r.Context())

	defer func() {
		cancel()
		orchestrator.Close()
		conn.Close()
		if metrics.ConnectionsActive != nil {
			metrics.ConnectionsActive.Dec()
		}
		logger.Info("Client disconnected")
	}()

	conn.SetReadLimit(h.maxMsgSize)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Connection read failed")
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			logger.WithField("msg_type", msgType).Warn("Ignoring non-binary message")
			continue
		}
		if err := orchestrator.HandleMessage(ctx, data); err != nil {
			// Only transport errors propagate out of the orchestrator;
			// the connection is unusable at this point.
			logger.WithError(err).Warn("Failed to deliver to client")
			return
		}
	}
}
