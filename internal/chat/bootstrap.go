package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/duetapp/duetchat/internal/api"
)

// ErrHistoryUnavailable marks a failed history load. It is non-fatal: the
// session renders an empty log and the live connection still starts.
var ErrHistoryUnavailable = errors.New("history unavailable")

// BootstrapAPI is the slice of the REST client the bootstrap depends on.
type BootstrapAPI interface {
	Conversation(ctx context.Context) (int64, error)
	Messages(ctx context.Context, conversationID int64) ([]api.HistoryMessage, error)
}

// Bootstrap resolves the active conversation and loads its message history
// before any live connection starts.
type Bootstrap struct {
	api    BootstrapAPI
	logger *slog.Logger
}

// NewBootstrap creates a Bootstrap backed by the given API client.
func NewBootstrap(apiClient BootstrapAPI) *Bootstrap {
	return &Bootstrap{
		api:    apiClient,
		logger: slog.Default(),
	}
}

// Conversation resolves the one conversation id for the authenticated couple.
func (b *Bootstrap) Conversation(ctx context.Context) (int64, error) {
	id, err := b.api.Conversation(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving conversation: %w", err)
	}
	return id, nil
}

// History fetches the conversation's full message history in server order.
// A fetch failure returns ErrHistoryUnavailable; there is no retry.
func (b *Bootstrap) History(ctx context.Context, conversationID int64) ([]Message, error) {
	raw, err := b.api.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	return normalizeHistory(raw), nil
}

// normalizeHistory maps the server's boolean read flag into a status:
// seen when marked read, delivered otherwise. Historical messages are never
// "sent"; that state only exists for just-sent, not-yet-acknowledged
// outbound messages.
func normalizeHistory(raw []api.HistoryMessage) []Message {
	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		status := StatusDelivered
		if m.IsRead {
			status = StatusSeen
		}
		messages = append(messages, Message{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.Text,
			Attachment: attachmentFromMedia(m.Media),
			CreatedAt:  m.CreatedAt,
			Status:     status,
		})
	}
	return messages
}

func attachmentFromMedia(m *api.Media) *Attachment {
	if m == nil {
		return nil
	}
	return &Attachment{
		ID:          m.ID,
		StorageKey:  m.Key,
		DisplayName: m.FileName,
		MimeType:    m.FileType,
		SizeBytes:   m.FileSize,
	}
}
