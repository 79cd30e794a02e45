// Package chat implements the client side of the couple chat protocol: the
// session bootstrap over REST, the live socket channel, and the in-memory
// conversation state the rendering layer reads from.
package chat

// Status is the delivery state of a message. It only ever moves forward:
// sent -> delivered -> seen.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// rank orders statuses so patches can be rejected when they would regress.
func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusSeen:
		return 2
	default:
		return -1
	}
}

// Attachment references a media object stored externally, addressed by an
// id/key pair assigned by the backend.
type Attachment struct {
	ID          int64  `json:"id"`
	StorageKey  string `json:"key"`
	DisplayName string `json:"file_name"`
	MimeType    string `json:"file_type"`
	SizeBytes   int64  `json:"file_size"`
}

// Message is one entry in a conversation. The id and timestamp are always
// assigned by the server, never by this client. A message carries text, an
// attachment, or both.
type Message struct {
	ID         int64       `json:"id"`
	SenderID   int64       `json:"sender_id"`
	ReceiverID int64       `json:"receiver_id"`
	Text       string      `json:"message_text,omitempty"`
	Attachment *Attachment `json:"media,omitempty"`
	// CreatedAt is displayed as given. The server's list order is
	// authoritative, so the timestamp is never parsed or used for sorting.
	CreatedAt string `json:"created_at"`
	Status    Status `json:"status,omitempty"`
}
