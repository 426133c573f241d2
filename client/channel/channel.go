package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"collabroom/client/protocol"
	"collabroom/client/rlog"

	"github.com/gorilla/websocket"
)

// Handler receives the raw payload of one event occurrence. Handlers for
// all events run on a single dispatch goroutine, in arrival order, so
// subscriber state never sees two events at once.
type Handler func(data json.RawMessage)

// Channel is the bidirectional event connection bound to one identity and,
// once join-room has been emitted, one room. Reconnection is the caller's
// job: a dropped channel stays dead and a new one is dialed in its place.
type Channel struct {
	conn   *websocket.Conn
	logger rlog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]map[int]Handler
	nextID   int
	closed   bool

	inbox chan protocol.Envelope
	done  chan struct{}

	// OnDisconnect fires once if the connection drops without Close being
	// called. Handlers registered at drop time are already cleared.
	OnDisconnect func(err error)
}

// Dial opens a channel against the server's websocket endpoint, carrying
// the bearer credential in the query string.
func Dial(ctx context.Context, baseURL, accessToken string, logger rlog.Logger) (*Channel, error) {
	if logger == nil {
		logger = rlog.Nop()
	}

	wsURL, err := toWebsocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	wsURL += "/ws?token=" + url.QueryEscape(accessToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open realtime channel: %w", err)
	}

	c := &Channel{
		conn:     conn,
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
		inbox:    make(chan protocol.Envelope, 256),
		done:     make(chan struct{}),
	}

	go c.readLoop()
	go c.dispatchLoop()

	return c, nil
}

func toWebsocketURL(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	return parsed.String(), nil
}

func (c *Channel) Logf(format string, v ...any) {
	c.logger.Logf(format, v...)
}

// Emit sends one event. A failed emit is not retried; eventual convergence
// rides on the next broadcast or on a full resync.
func (c *Channel) Emit(event string, payload any) error {
	data, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("emit %s failed: %w", event, err)
	}
	return nil
}

// Subscribe registers a handler for one event name and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (c *Channel) Subscribe(event string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}

	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if handlers, ok := c.handlers[event]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(c.handlers, event)
			}
		}
	}
}

// SubscriptionCount reports live registrations; teardown must drive this
// to zero.
func (c *Channel) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, handlers := range c.handlers {
		count += len(handlers)
	}
	return count
}

// Close tears the channel down and clears every registration atomically.
// No handler runs after Close returns.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.handlers = make(map[string]map[int]Handler)
	c.mu.Unlock()

	c.conn.Close()
	<-c.done
}

func (c *Channel) readLoop() {
	var readErr error
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		var envelope protocol.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.Logf("Dropping malformed frame {%v}", err)
			continue
		}

		select {
		case c.inbox <- envelope:
		default:
			c.Logf("Inbox full, dropping %s event", envelope.Event)
		}
	}

	close(c.inbox)

	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	c.handlers = make(map[string]map[int]Handler)
	c.mu.Unlock()

	if !wasClosed && c.OnDisconnect != nil {
		c.OnDisconnect(readErr)
	}
}

func (c *Channel) dispatchLoop() {
	defer close(c.done)
	for envelope := range c.inbox {
		c.mu.Lock()
		snapshot := make([]Handler, 0, len(c.handlers[envelope.Event]))
		for _, handler := range c.handlers[envelope.Event] {
			snapshot = append(snapshot, handler)
		}
		c.mu.Unlock()

		for _, handler := range snapshot {
			handler(envelope.Data)
		}
	}
}
