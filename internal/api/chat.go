package api

import (
	"context"
	"fmt"
)

// Media is a persisted attachment descriptor as returned by the backend.
type Media struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

// HistoryMessage is a message as returned by the history endpoint. The server
// reports read state as a boolean; the chat layer normalizes it into a status.
type HistoryMessage struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"message_text,omitempty"`
	Media      *Media `json:"media,omitempty"`
	CreatedAt  string `json:"created_at"`
	IsRead     bool   `json:"is_read,omitempty"`
}

// Conversation resolves the single conversation for the authenticated couple.
func (c *Client) Conversation(ctx context.Context) (int64, error) {
	var out struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := c.get(ctx, "/chat/conversation", &out); err != nil {
		return 0, err
	}
	return out.ConversationID, nil
}

// Messages fetches the full ordered message history for a conversation.
func (c *Client) Messages(ctx context.Context, conversationID int64) ([]HistoryMessage, error) {
	var out []HistoryMessage
	path := fmt.Sprintf("/chat/messages/%d", conversationID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
