package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event is a decoded inbound frame. Exactly one concrete type exists per
// frame tag so handling stays exhaustive: MessageEvent, TypingEvent and
// StatusEvent.
type Event interface {
	isEvent()
}

// MessageEvent carries a new message broadcast by the server. The sender's
// own messages arrive this way too; the client never inserts a local echo.
type MessageEvent struct {
	Message Message
}

// TypingEvent signals that a participant started or stopped typing.
type TypingEvent struct {
	UserID int64
	Start  bool
}

// StatusEvent patches a single message's delivery status.
type StatusEvent struct {
	MessageID int64
	Status    Status
}

func (MessageEvent) isEvent() {}
func (TypingEvent) isEvent()  {}
func (StatusEvent) isEvent()  {}

// wireID is a message id on the socket. The server stringifies message ids
// in its broadcast frames while participant ids and REST responses stay
// numeric, so the codec accepts both encodings.
type wireID int64

func (w *wireID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*w = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("message id %s: %w", data, err)
	}
	*w = wireID(n)
	return nil
}

// inboundFrame is the wire envelope for server frames. All fields beyond the
// discriminator are optional; which ones are set depends on the type tag.
type inboundFrame struct {
	Type       string      `json:"type"`
	ID         wireID      `json:"id,omitempty"`
	SenderID   int64       `json:"sender_id,omitempty"`
	ReceiverID int64       `json:"receiver_id,omitempty"`
	Text       string      `json:"message_text,omitempty"`
	Media      *Attachment `json:"media,omitempty"`
	CreatedAt  string      `json:"created_at,omitempty"`
	UserID     int64       `json:"user_id,omitempty"`
	Status     string      `json:"status,omitempty"`
	MessageID  wireID      `json:"message_id,omitempty"`
}

// outboundFrame is the wire envelope for client events.
type outboundFrame struct {
	Event      string `json:"event"`
	ReceiverID int64  `json:"receiver_id,omitempty"`
	Text       string `json:"message_text,omitempty"`
	MediaID    int64  `json:"media_id,omitempty"`
	MessageID  int64  `json:"message_id,omitempty"`
}

const (
	eventMessage     = "message"
	eventTypingStart = "typing_start"
	eventTypingStop  = "typing_stop"
	eventSeen        = "seen"
)

// DecodeFrame decodes one inbound frame into an Event. Unknown frame types
// are not an error; they decode to (nil, nil) and the caller skips them.
// A payload that is not valid JSON is an error; the caller logs and drops it.
func DecodeFrame(data []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case "message":
		return MessageEvent{Message: Message{
			ID:         int64(frame.ID),
			SenderID:   frame.SenderID,
			ReceiverID: frame.ReceiverID,
			Text:       frame.Text,
			Attachment: frame.Media,
			CreatedAt:  frame.CreatedAt,
			// Live messages start as delivered; only the server's seen
			// frame moves them further.
			Status: StatusDelivered,
		}}, nil

	case "typing":
		switch frame.Status {
		case "start":
			return TypingEvent{UserID: frame.UserID, Start: true}, nil
		case "stop":
			return TypingEvent{UserID: frame.UserID, Start: false}, nil
		default:
			return nil, nil
		}

	case "delivered":
		return StatusEvent{MessageID: int64(frame.MessageID), Status: StatusDelivered}, nil

	case "seen":
		return StatusEvent{MessageID: int64(frame.MessageID), Status: StatusSeen}, nil

	default:
		return nil, nil
	}
}
