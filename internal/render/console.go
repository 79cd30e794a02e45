// Package render contains the terminal renderer. It subscribes to the chat
// bus topics and prints the conversation as it evolves; it holds no state of
// its own beyond what is needed for display.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/duetapp/duetchat/internal/chat"
	"github.com/duetapp/duetchat/internal/chat/topics"
	"github.com/duetapp/duetchat/internal/pubsub"
)

// Console prints chat activity to a writer.
type Console struct {
	subscriber pubsub.Subscriber
	selfID     int64
	logger     *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a Console for the local participant, writing to out.
func NewConsole(subscriber pubsub.Subscriber, selfID int64, out io.Writer) *Console {
	return &Console{
		subscriber: subscriber,
		selfID:     selfID,
		out:        out,
		logger:     slog.Default(),
	}
}

// Start subscribes to the chat topics. Subscriptions run until the context
// is canceled.
func (c *Console) Start(ctx context.Context) error {
	subscriptions := map[string]pubsub.Handler{
		topics.MessageNew:    c.onMessage,
		topics.MessageStatus: c.onStatus,
		topics.Typing:        c.onTyping,
		topics.SessionClosed: c.onClosed,
	}
	for topic, handler := range subscriptions {
		if err := c.subscriber.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

// PrintHistory renders the already-loaded message log once, before live
// events start arriving.
func (c *Console) PrintHistory(messages []chat.Message) {
	for _, m := range messages {
		c.printMessage(m)
	}
}

func (c *Console) onMessage(ctx context.Context, msg pubsub.Message) error {
	var m chat.Message
	if err := msg.Decode(&m); err != nil {
		return fmt.Errorf("decoding message payload: %w", err)
	}
	c.printMessage(m)
	return nil
}

func (c *Console) onStatus(ctx context.Context, msg pubsub.Message) error {
	var n chat.StatusNotice
	if err := msg.Decode(&n); err != nil {
		return fmt.Errorf("decoding status payload: %w", err)
	}
	c.printf("  %s message %d\n", statusGlyph(n.Status), n.MessageID)
	return nil
}

func (c *Console) onTyping(ctx context.Context, msg pubsub.Message) error {
	var n chat.TypingNotice
	if err := msg.Decode(&n); err != nil {
		return fmt.Errorf("decoding typing payload: %w", err)
	}
	if n.Typing {
		c.printf("  partner is typing…\n")
	}
	return nil
}

func (c *Console) onClosed(ctx context.Context, msg pubsub.Message) error {
	c.printf("-- connection closed --\n")
	return nil
}

// printMessage renders one message line. Delivery status is shown for the
// viewer's own messages only; the partner's messages never render a status.
func (c *Console) printMessage(m chat.Message) {
	who := "partner"
	suffix := ""
	if m.SenderID == c.selfID {
		who = "you"
		suffix = " " + statusGlyph(m.Status)
	}

	body := m.Text
	if m.Attachment != nil {
		tag := fmt.Sprintf("[%s, %s]", m.Attachment.DisplayName, formatSize(m.Attachment.SizeBytes))
		if body != "" {
			body += " " + tag
		} else {
			body = tag
		}
	}

	c.printf("%s %s: %s%s\n", m.CreatedAt, who, body, suffix)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Error("Writing to console", "error", err)
	}
}

func statusGlyph(s chat.Status) string {
	switch s {
	case chat.StatusSeen:
		return "✓✓"
	case chat.StatusDelivered:
		return "✓"
	default:
		return "…"
	}
}

func formatSize(bytes int64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
	)
	switch {
	case bytes >= mib:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(mib))
	case bytes >= kib:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(kib))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
