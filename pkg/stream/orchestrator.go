package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"omnisense-server/pkg/errors"
	"omnisense-server/pkg/fusion"
	"omnisense-server/pkg/gesture"
	"omnisense-server/pkg/metrics"
	"omnisense-server/pkg/perception"
	"omnisense-server/pkg/session"
)

// Inbound binary message discriminators, the first byte of every client
// message.
const (
	TypeVideo   byte = 0
	TypeAudio   byte = 1
	TypeControl byte = 2
)

// ControlMessage is the JSON payload of a control frame.
type ControlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// Control message vocabulary.
const (
	ControlSessionType = "SESSION_CONTROL"
	ActionStart        = "START"
	ActionStop         = "STOP"
)

// SessionReportMessage is the outbound envelope for a finished session.
type SessionReportMessage struct {
	Type   string          `json:"type"`
	Report *session.Report `json:"report"`
}

// Sender delivers outbound JSON messages to the client.
type Sender interface {
	SendJSON(v interface{}) error
}

// EventPublisher forwards fusion output to a message broker for downstream
// analytics. Implementations must tolerate being called on every event.
type EventPublisher interface {
	PublishUIEvent(connUUID string, event interface{})
	PublishReport(connUUID string, report *session.Report)
}

// Options configures one connection's orchestrator.
type Options struct {
	ConnUUID       string
	FlushThreshold int // accumulated PCM bytes that trigger a transcription
	Stabilizer     gesture.StabilizerOptions
	Fusion         fusion.Options
}

// Orchestrator owns the streaming protocol for a single connection: it
// demultiplexes inbound binary messages, buffers audio until a transcription
// window fills, calls the perception adapters, routes canonical events
// through the fusion engine and forwards results to the client and the
// session recorder. All state is connection-scoped and accessed only by the
// owning connection's goroutine, so none of it needs locking.
type Orchestrator struct {
	logger   *logrus.Entry
	connUUID string

	vision perception.VisionAdapter
	speech perception.SpeechAdapter

	classifier *gesture.Classifier
	stabilizer *gesture.Stabilizer
	engine     *fusion.Engine
	recorder   *session.Recorder

	sender    Sender
	publisher EventPublisher

	audioAccumulator []byte
	flushThreshold   int
}

// New creates an orchestrator for one connection.
func New(
	logger *logrus.Logger,
	opts Options,
	vision perception.VisionAdapter,
	speech perception.SpeechAdapter,
	sender Sender,
	publisher EventPublisher,
) *Orchestrator {
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = 48000
	}
	return &Orchestrator{
		logger:           logger.WithField("conn_uuid", opts.ConnUUID),
		connUUID:         opts.ConnUUID,
		vision:           vision,
		speech:           speech,
		classifier:       gesture.NewClassifier(),
		stabilizer:       gesture.NewStabilizer(opts.Stabilizer),
		engine:           fusion.NewEngine(logger, opts.Fusion),
		recorder:         session.NewRecorder(logger),
		sender:           sender,
		publisher:        publisher,
		audioAccumulator: make([]byte, 0, opts.FlushThreshold),
		flushThreshold:   opts.FlushThreshold,
	}
}

// HandleMessage processes one inbound binary message. Protocol violations
// and per-frame adapter failures are logged and absorbed; only transport
// errors from the sender propagate, since those mean the connection is gone.
func (o *Orchestrator) HandleMessage(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		o.logger.Warn("Ignoring empty message")
		return nil
	}

	discriminator, payload := data[0], data[1:]

	switch discriminator {
	case TypeVideo:
		return o.handleVideo(ctx, payload)
	case TypeAudio:
		return o.handleAudio(ctx, payload)
	case TypeControl:
		return o.handleControl(payload)
	default:
		err := errors.NewProtocolViolation("unknown discriminator").
			WithField("discriminator", discriminator)
		o.logger.WithError(err).Warn("Ignoring message")
		return nil
	}
}

// handleVideo dispatches one frame to the vision adapter and routes the
// result. Vision is best-effort per frame: adapter failure drops the frame
// and keeps the connection alive.
func (o *Orchestrator) handleVideo(ctx context.Context, frame []byte) error {
	start := time.Now()
	result, err := o.vision.AnalyzeFrame(ctx, frame)
	observeAdapter("vision", start, err)
	if err != nil {
		o.logger.WithError(err).Warn("Vision adapter failed, skipping frame")
		if metrics.FramesDropped != nil {
			metrics.FramesDropped.WithLabelValues(o.connUUID).Inc()
		}
		return nil
	}

	event := fusion.VisionEvent{
		EmotionLabel:      result.EmotionLabel,
		EmotionConfidence: result.EmotionConfidence,
		GazeDeviationDeg:  result.GazeDeviationDeg,
		Timestamp:         time.Now(),
	}

	if result.HandDetected {
		confirmed := o.stabilizer.Observe(o.rawLabel(result))
		event.Gesture = &confirmed
		if confirmed != gesture.Unknown {
			o.recorder.LogGesture(string(confirmed))
			if metrics.GesturesConfirmed != nil {
				metrics.GesturesConfirmed.WithLabelValues(string(confirmed)).Inc()
			}
		}
	} else {
		// Cold restart of the smoothing window; the confirmed gesture
		// survives until a new majority displaces it.
		o.stabilizer.Reset()
	}

	if result.EmotionLabel != "" {
		o.recorder.LogEmotion(result.EmotionLabel)
	}

	if metrics.FramesProcessed != nil {
		metrics.FramesProcessed.WithLabelValues(o.connUUID).Inc()
	}

	return o.deliver(o.engine.OnVision(event))
}

// rawLabel resolves the per-frame classification, preferring server-side
// classification over raw features when the collaborator provides them.
func (o *Orchestrator) rawLabel(result *perception.VisionResult) gesture.Label {
	if result.RawHand != nil {
		return o.classifier.Classify(gesture.RawSample{
			Fingers:            result.RawHand.Fingers,
			ThumbIndexDistance: result.RawHand.ThumbIndexDistance,
			WristLateralMove:   result.RawHand.WristLateralMove,
			Timestamp:          time.Now(),
		})
	}
	if result.Gesture == "" {
		return gesture.Unknown
	}
	return gesture.Label(result.Gesture)
}

// handleAudio appends one PCM chunk to the accumulator and flushes a full
// transcription window. The accumulator is cleared unconditionally after a
// flush attempt: a failed transcription is dropped rather than retried,
// because stale audio is useless for live coaching and keeping it would
// corrupt the next window.
func (o *Orchestrator) handleAudio(ctx context.Context, chunk []byte) error {
	o.audioAccumulator = append(o.audioAccumulator, chunk...)
	if metrics.AudioBytesAccumulated != nil {
		metrics.AudioBytesAccumulated.Add(float64(len(chunk)))
	}

	if len(o.audioAccumulator) < o.flushThreshold {
		return nil
	}

	buffer := o.audioAccumulator
	o.audioAccumulator = make([]byte, 0, o.flushThreshold)
	if metrics.AudioWindowsFlushed != nil {
		metrics.AudioWindowsFlushed.Inc()
	}

	start := time.Now()
	result, err := o.speech.Transcribe(ctx, buffer)
	observeAdapter("speech", start, err)
	if err != nil {
		o.logger.WithError(err).Warn("Speech adapter failed, dropping audio window")
		return nil
	}

	return o.deliver(o.engine.OnAudio(fusion.AudioEvent{
		Transcript:     result.Transcript,
		Intent:         result.Intent,
		Entity:         result.Entity,
		WordsPerMinute: result.WordsPerMinute,
		Timestamp:      time.Now(),
	}))
}

// handleControl parses a control frame and drives the session recorder.
// Malformed control messages are logged and ignored.
func (o *Orchestrator) handleControl(payload []byte) error {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		o.logger.WithError(errors.NewProtocolViolation("malformed control JSON")).Warn("Ignoring control message")
		return nil
	}

	if msg.Type != ControlSessionType {
		o.logger.WithField("type", msg.Type).Warn("Ignoring unknown control message")
		return nil
	}

	switch msg.Action {
	case ActionStart:
		o.recorder.Start()
		if metrics.SessionsStarted != nil {
			metrics.SessionsStarted.Inc()
		}
	case ActionStop:
		report := o.recorder.Stop(o.engine.Score())
		if report == nil {
			return nil
		}
		if metrics.SessionsStopped != nil {
			metrics.SessionsStopped.Inc()
		}
		if o.publisher != nil {
			o.publisher.PublishReport(o.connUUID, report)
		}
		return o.sender.SendJSON(SessionReportMessage{Type: "SESSION_REPORT", Report: report})
	default:
		o.logger.WithField("action", msg.Action).Warn("Ignoring unknown session action")
	}
	return nil
}

// deliver sends one fusion output to the client and mirrors it to the
// publisher. A nil event is a valid "nothing to say" outcome.
func (o *Orchestrator) deliver(event fusion.UIEvent) error {
	if event == nil {
		return nil
	}
	if metrics.UIEventsEmitted != nil {
		metrics.UIEventsEmitted.WithLabelValues(event.EventType()).Inc()
	}
	if o.publisher != nil {
		o.publisher.PublishUIEvent(o.connUUID, event)
	}
	return o.sender.SendJSON(event)
}

// Close releases the connection's buffered state. Partially accumulated
// audio is discarded.
func (o *Orchestrator) Close() {
	o.audioAccumulator = nil
	o.logger.Debug("Orchestrator closed")
}

// Recorder exposes the session recorder, used by connection teardown to
// abandon an in-flight session.
func (o *Orchestrator) Recorder() *session.Recorder {
	return o.recorder
}

func observeAdapter(name string, start time.Time, err error) {
	if metrics.AdapterRequests == nil {
		return
	}
	metrics.AdapterRequests.WithLabelValues(name).Inc()
	metrics.AdapterLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AdapterErrors.WithLabelValues(name).Inc()
	}
}
