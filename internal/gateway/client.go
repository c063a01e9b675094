package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ironlatch/ironlatch-core/internal/infrastructure/mqtt"
	"github.com/ironlatch/ironlatch-core/internal/usercode"
)

const (
	// commandQoS is the QoS level for command and report traffic.
	// At-least-once keeps set-family commands from silently vanishing;
	// duplicate delivery is harmless because set operations are idempotent.
	commandQoS = 1

	// defaultExchangeTimeout bounds how long Exchange waits for the
	// matching report when the caller's context has no deadline.
	defaultExchangeTimeout = 10 * time.Second
)

// Bus is the MQTT surface the client needs. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the minimal logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// ReportHandler receives unsolicited report frames, those no Exchange
// call is waiting for. Handlers run on the MQTT delivery goroutine and
// must not block.
type ReportHandler func(frame usercode.Frame)

// Client bridges one endpoint's command traffic over MQTT.
//
// It implements the transport contract the user code manager expects:
// Exchange publishes a command envelope and blocks until the gateway
// relays the endpoint's matching report; Send publishes fire-and-forget.
// Correlation is by report command identity because the device session
// protocol carries no request IDs end to end.
type Client struct {
	bus      Bus
	topics   mqtt.Topics
	nodeID   int
	endpoint int
	timeout  time.Duration
	logger   Logger

	mu       sync.Mutex
	pending  map[uint8]chan usercode.Frame
	onReport ReportHandler
}

// NewClient creates a client for one node endpoint and subscribes to its
// report topic under the configured topic prefix. Call Close to release
// the subscription.
func NewClient(bus Bus, topics mqtt.Topics, nodeID, endpoint int, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}
	if topics.Prefix() == "" {
		topics = mqtt.NewTopics("")
	}

	c := &Client{
		bus:      bus,
		topics:   topics,
		nodeID:   nodeID,
		endpoint: endpoint,
		timeout:  timeout,
		logger:   noopLogger{},
		pending:  make(map[uint8]chan usercode.Frame),
	}

	topic := c.topics.NodeReport(nodeID, endpoint)
	if err := bus.Subscribe(topic, commandQoS, c.handleReport); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return c, nil
}

// SetLogger replaces the no-op logger.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetReportHandler registers a callback for unsolicited reports.
func (c *Client) SetReportHandler(handler ReportHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReport = handler
}

// Close unsubscribes from the endpoint's report topic.
func (c *Client) Close() error {
	return c.bus.Unsubscribe(c.topics.NodeReport(c.nodeID, c.endpoint))
}

// Exchange publishes a command frame and waits for the matching report.
//
// The matching report command is derived from the request command. A
// request with no report pair is rejected up front. Only one exchange
// per report command may be in flight at a time.
func (c *Client) Exchange(ctx context.Context, req usercode.Frame) (usercode.Frame, error) {
	expected, ok := usercode.ResponseCommand(req.Command)
	if !ok {
		return usercode.Frame{}, fmt.Errorf("%w: command 0x%02X", ErrNoResponseCommand, req.Command)
	}

	ch := make(chan usercode.Frame, 1)

	c.mu.Lock()
	if _, exists := c.pending[expected]; exists {
		c.mu.Unlock()
		return usercode.Frame{}, fmt.Errorf("%w: report 0x%02X", ErrExchangeBusy, expected)
	}
	c.pending[expected] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, expected)
		c.mu.Unlock()
	}()

	if err := c.publish(req); err != nil {
		return usercode.Frame{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case frame := <-ch:
		return frame, nil
	case <-timer.C:
		return usercode.Frame{}, fmt.Errorf("%w: report 0x%02X after %v", ErrExchangeTimeout, expected, c.timeout)
	case <-ctx.Done():
		return usercode.Frame{}, ctx.Err()
	}
}

// Send publishes a command frame without waiting for any report.
func (c *Client) Send(ctx context.Context, req usercode.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.publish(req)
}

func (c *Client) publish(req usercode.Frame) error {
	msg := NewCommandMessage(req)
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	topic := c.topics.NodeCommand(c.nodeID, c.endpoint)
	if err := c.bus.Publish(topic, data, commandQoS, false); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	c.logger.Debug("command published",
		"node_id", c.nodeID,
		"endpoint", c.endpoint,
		"command", fmt.Sprintf("0x%02X", req.Command),
		"message_id", msg.ID,
	)
	return nil
}

// handleReport dispatches an incoming report frame to the waiting
// exchange, or to the unsolicited report handler if nothing waits.
func (c *Client) handleReport(topic string, payload []byte) error {
	msg, err := DecodeReportMessage(payload)
	if err != nil {
		c.logger.Warn("report envelope rejected", "topic", topic, "error", err)
		return err
	}
	if msg.CommandClass != usercode.CommandClass {
		return nil
	}

	frame, err := msg.Frame()
	if err != nil {
		c.logger.Warn("report payload rejected", "topic", topic, "error", err)
		return err
	}

	c.mu.Lock()
	ch, waiting := c.pending[frame.Command]
	if waiting {
		delete(c.pending, frame.Command)
	}
	handler := c.onReport
	c.mu.Unlock()

	if waiting {
		ch <- frame
		return nil
	}

	if handler != nil {
		handler(frame)
		return nil
	}

	c.logger.Debug("unsolicited report dropped",
		"node_id", c.nodeID,
		"endpoint", c.endpoint,
		"command", fmt.Sprintf("0x%02X", frame.Command),
	)
	return nil
}
