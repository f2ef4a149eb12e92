package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"omnisense-server/pkg/metrics"
	"omnisense-server/pkg/session"
)

// EventMessage is the envelope published for downstream analytics consumers.
type EventMessage struct {
	ConnUUID  string          `json:"conn_uuid"`
	Kind      string          `json:"kind"` // "ui_event" or "session_report"
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Config holds AMQP client configuration. An empty URL disables publishing
// entirely; every publish becomes a silent no-op.
type Config struct {
	URL       string
	QueueName string
}

// Client publishes fusion output and session reports to an AMQP queue. The
// connection is re-established in the background when it drops; messages
// published while disconnected are dropped, not queued, since stale coaching
// events have no value.
type Client struct {
	logger    *logrus.Logger
	config    Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewClient creates an AMQP client. Call Connect before publishing.
func NewClient(logger *logrus.Logger, config Config) *Client {
	return &Client{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether publishing is configured.
func (c *Client) Enabled() bool {
	return c.config.URL != ""
}

// Connect establishes the AMQP connection and declares the queue. A monitor
// goroutine reconnects when the connection drops.
func (c *Client) Connect() error {
	if !c.Enabled() {
		c.logger.Debug("AMQP publishing disabled, skipping connect")
		return nil
	}
	if err := c.dial(); err != nil {
		return err
	}
	go c.monitor()
	return nil
}

func (c *Client) dial() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if _, err := channel.QueueDeclare(c.config.QueueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = channel
	c.connected = true
	c.logger.WithField("queue", c.config.QueueName).Info("Connected to AMQP")
	return nil
}

func (c *Client) monitor() {
	for {
		c.connMutex.RLock()
		conn := c.conn
		c.connMutex.RUnlock()
		if conn == nil {
			return
		}

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.stopChan:
			return
		case err := <-closed:
			c.connMutex.Lock()
			c.connected = false
			c.connMutex.Unlock()
			if err != nil {
				c.logger.WithError(err).Warn("AMQP connection lost, reconnecting")
			}
		}

		for {
			select {
			case <-c.stopChan:
				return
			case <-time.After(5 * time.Second):
			}
			if err := c.dial(); err != nil {
				c.logger.WithError(err).Warn("AMQP reconnect failed")
				continue
			}
			break
		}
	}
}

// PublishUIEvent publishes one fusion engine output for a connection.
func (c *Client) PublishUIEvent(connUUID string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal UI event")
		return
	}
	c.publish(EventMessage{
		ConnUUID:  connUUID,
		Kind:      "ui_event",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// PublishReport publishes a completed session report.
func (c *Client) PublishReport(connUUID string, report *session.Report) {
	payload, err := json.Marshal(report)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal session report")
		return
	}
	c.publish(EventMessage{
		ConnUUID:  connUUID,
		Kind:      "session_report",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if metrics.ReportsPublished != nil {
		metrics.ReportsPublished.Inc()
	}
}

func (c *Client) publish(msg EventMessage) {
	if !c.Enabled() {
		return
	}

	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if !c.connected || c.channel == nil {
		c.logger.Debug("AMQP not connected, dropping message")
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal AMQP message")
		return
	}

	err = c.channel.Publish("", c.config.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		if metrics.PublishErrors != nil {
			metrics.PublishErrors.Inc()
		}
		c.logger.WithError(err).Error("Failed to publish AMQP message")
	}
}

// Close shuts the client down. Idempotent.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stopChan) })

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
