// ABOUTME: Supervised WebSocket channel for live counts and frame updates
// ABOUTME: Classifies backend push messages and fans them out to subscribers

package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Kind classifies a live channel message.
type Kind string

// Message kinds. The backend sends three shapes: a reset event, a frame
// update whose count is the *current* occupancy, and a bare count carrying
// the cumulative session total.
const (
	KindReset Kind = "reset"
	KindFrame Kind = "frame"
	KindTotal Kind = "total"
)

// Event is one classified message. Events are applied in transport order;
// the channel adds no sequence numbers and no de-duplication.
type Event struct {
	Kind Kind

	// FrameData is the encoded live frame, set for KindFrame.
	FrameData string

	// Count is the current occupancy for KindFrame, or the cumulative
	// session total for KindTotal.
	Count int
}

// ErrRetriesExhausted is returned by Run when the reconnect budget is spent.
var ErrRetriesExhausted = errors.New("reconnect retries exhausted")

// errUnknownShape marks messages that match none of the known shapes.
var errUnknownShape = errors.New("unknown message shape")

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Options configures the channel's reconnect behavior.
type Options struct {
	// ReconnectDelay is the flat wait between reconnect attempts.
	// Defaults to the 3 seconds the original dashboard used.
	ReconnectDelay time.Duration

	// MaxRetries bounds consecutive failed connection attempts before Run
	// gives up. Zero retries forever.
	MaxRetries int
}

// Channel maintains one push connection scoped to an identity, reconnecting
// on unexpected close. Subscribers receive classified events as they arrive.
type Channel struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// NewChannel creates a live channel for the given identity. An empty
// identity connects to the unscoped path.
func NewChannel(wsBaseURL, identity string, opts Options) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}

	url := wsBaseURL + "/ws"
	if identity != "" {
		url += "/" + identity
	}

	return &Channel{
		url:         url,
		opts:        opts,
		dialer:      websocket.DefaultDialer,
		logger:      slog.Default().With("component", "livefeed"),
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a subscriber for live events. Returns the event
// channel and a subscription ID. The subscription is cleaned up when ctx is
// cancelled. Delivery is non-blocking: events are dropped for subscribers
// whose channels are full.
func (c *Channel) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	c.mu.Lock()
	c.subscribers[subID] = ch
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Channel) Unsubscribe(subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subscribers[subID]; ok {
		delete(c.subscribers, subID)
		close(ch)
	}
}

func (c *Channel) publish(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for subID, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			c.logger.Debug("dropping event for slow subscriber", "sub_id", subID)
		}
	}
}

// Run connects and listens until ctx is cancelled or the retry budget is
// exhausted. Every unexpected close waits the flat reconnect delay and then
// reopens unconditionally.
func (c *Channel) Run(ctx context.Context) error {
	retries := 0

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("connect failed", "url", c.url, "error", err)
		} else {
			c.logger.Info("connected", "url", c.url)
			retries = 0
			err = c.listen(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("connection lost", "error", err)
		}

		retries++
		if c.opts.MaxRetries > 0 && retries > c.opts.MaxRetries {
			c.logger.Error("giving up", "retries", retries-1)
			return ErrRetriesExhausted
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// listen reads and publishes messages until the connection drops.
func (c *Channel) listen(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}

		ev, err := parseMessage(data)
		if err != nil {
			c.logger.Debug("ignoring message", "error", err)
			continue
		}
		c.publish(*ev)
	}
}

// parseMessage classifies one raw message into an Event.
func parseMessage(data []byte) (*Event, error) {
	var raw struct {
		Event string `json:"event"`
		Type  string `json:"type"`
		Data  string `json:"data"`
		Count *int   `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}

	switch {
	case raw.Event == "reset":
		return &Event{Kind: KindReset}, nil
	case raw.Type == "frame":
		ev := &Event{Kind: KindFrame, FrameData: raw.Data}
		if raw.Count != nil {
			ev.Count = *raw.Count
		}
		return ev, nil
	case raw.Count != nil:
		return &Event{Kind: KindTotal, Count: *raw.Count}, nil
	default:
		return nil, errUnknownShape
	}
}
