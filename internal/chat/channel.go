package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ChannelState is the lifecycle state of a live channel.
type ChannelState string

const (
	ChannelIdle       ChannelState = "idle"
	ChannelConnecting ChannelState = "connecting"
	ChannelOpen       ChannelState = "open"
	// ChannelClosed is terminal. The channel never reconnects; a new
	// Channel is created for a new connection.
	ChannelClosed ChannelState = "closed"
)

// DefaultTypingTimeout is how long after the last typing_start the channel
// waits before emitting a single typing_stop.
const DefaultTypingTimeout = 1500 * time.Millisecond

const writeTimeout = 10 * time.Second

// frameConn is the minimal transport surface the channel needs. The real
// implementation wraps a coder/websocket connection; tests substitute fakes.
type frameConn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Channel owns one persistent bidirectional connection to the chat endpoint
// for exactly one conversation. It decodes inbound frames into Events and
// encodes user actions into outbound frames.
//
// Outbound sends are fail-soft: a send while the channel is not open is
// dropped, never queued.
type Channel struct {
	// clientID identifies this connection in logs.
	clientID string

	wsBaseURL      string
	token          string
	conversationID int64
	partnerID      int64
	typingTimeout  time.Duration

	dial func(ctx context.Context) (frameConn, error)

	mu    sync.Mutex
	state ChannelState
	conn  frameConn

	typingMu   sync.Mutex
	typingStop *time.Timer

	events chan Event
	logger *slog.Logger
}

// ChannelOption is a function that configures a Channel.
type ChannelOption func(*Channel)

// WithTypingTimeout overrides the typing_stop debounce delay. Useful for
// tests that should not wait 1.5 seconds.
func WithTypingTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) {
		c.typingTimeout = d
	}
}

// NewChannel creates a Channel for one conversation. The connection is not
// opened until Open is called.
func NewChannel(wsBaseURL, token string, conversationID, partnerID int64, opts ...ChannelOption) *Channel {
	c := &Channel{
		clientID:       uuid.NewString(),
		wsBaseURL:      strings.TrimRight(wsBaseURL, "/"),
		token:          token,
		conversationID: conversationID,
		partnerID:      partnerID,
		typingTimeout:  DefaultTypingTimeout,
		state:          ChannelIdle,
		events:         make(chan Event, 256),
	}
	c.dial = c.dialWebSocket
	c.logger = slog.Default().With("client_id", c.clientID, "conversation_id", conversationID)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the chat endpoint and starts the read loop. It may be called
// once; the channel moves Idle -> Connecting -> Open, or to Closed if the
// dial fails.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != ChannelIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("channel already %s", state)
	}
	c.state = ChannelConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = ChannelClosed
		c.mu.Unlock()
		close(c.events)
		return fmt.Errorf("opening chat connection: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = ChannelOpen
	c.mu.Unlock()

	c.logger.Info("Chat connection open")
	go c.readLoop(conn)
	return nil
}

func (c *Channel) dialWebSocket(ctx context.Context) (frameConn, error) {
	endpoint := fmt.Sprintf("%s/%d?token=%s", c.wsBaseURL, c.conversationID, url.QueryEscape(c.token))
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// readLoop pumps frames from the connection into the events channel. It is
// the only reader on the connection, so inbound frames are handed over in
// strict arrival order. It runs until the connection closes, then marks the
// channel Closed and closes the events channel.
func (c *Channel) readLoop(conn frameConn) {
	defer func() {
		c.shutdown()
		close(c.events)
	}()

	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.logger.Info("Chat connection closed")
			default:
				c.logger.Error("Chat connection lost", "error", err)
			}
			return
		}

		ev, err := DecodeFrame(data)
		if err != nil {
			c.logger.Error("Dropping malformed frame", "error", err)
			continue
		}
		if ev == nil {
			c.logger.Debug("Ignoring unknown frame type")
			continue
		}
		c.events <- ev
	}
}

// Events returns the stream of decoded inbound frames. The channel is closed
// when the connection closes.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// State reports the current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendMessage emits one message frame addressed to the partner. At least one
// of text and attachmentID must be present, otherwise nothing is sent. There
// is no local echo: the message enters the conversation state only when the
// server's own broadcast for it comes back, so displayed ids and timestamps
// always originate server-side.
func (c *Channel) SendMessage(text string, attachmentID int64) {
	if strings.TrimSpace(text) == "" && attachmentID == 0 {
		c.logger.Debug("Dropping empty message send")
		return
	}
	c.send(outboundFrame{
		Event:      eventMessage,
		ReceiverID: c.partnerID,
		Text:       text,
		MediaID:    attachmentID,
	})
}

// SendTypingStart emits a typing_start frame and (re)arms the stop timer.
// Rapid successive calls coalesce: the pending timer is cancelled and
// rescheduled, never stacked, so exactly one typing_stop goes out once the
// timeout elapses after the last call.
func (c *Channel) SendTypingStart() {
	if !c.send(outboundFrame{Event: eventTypingStart}) {
		return
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	if c.typingStop != nil {
		c.typingStop.Stop()
	}
	c.typingStop = time.AfterFunc(c.typingTimeout, func() {
		c.send(outboundFrame{Event: eventTypingStop})
		c.typingMu.Lock()
		c.typingStop = nil
		c.typingMu.Unlock()
	})
}

// SendSeen emits a seen frame for one message. Callers only invoke it for a
// partner-authored message that is not already seen.
func (c *Channel) SendSeen(messageID int64) {
	c.send(outboundFrame{Event: eventSeen, MessageID: messageID})
}

// send writes one frame if the channel is open, and reports whether it did.
// Sends while not open are dropped.
func (c *Channel) send(f outboundFrame) bool {
	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()

	if state != ChannelOpen || conn == nil {
		c.logger.Debug("Dropping outbound frame, channel not open", "event", f.Event, "state", state)
		return false
	}

	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Error("Encoding outbound frame", "event", f.Event, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, data); err != nil {
		c.logger.Error("Writing outbound frame", "event", f.Event, "error", err)
		return false
	}
	return true
}

// Close tears the connection down immediately. It is safe to call from any
// state and more than once.
func (c *Channel) Close() {
	c.shutdown()
}

func (c *Channel) shutdown() {
	c.mu.Lock()
	if c.state == ChannelClosed {
		c.mu.Unlock()
		return
	}
	c.state = ChannelClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.typingMu.Lock()
	if c.typingStop != nil {
		c.typingStop.Stop()
		c.typingStop = nil
	}
	c.typingMu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("Closing chat connection", "error", err)
		}
	}
}

// wsConn adapts a coder/websocket connection to the frameConn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
