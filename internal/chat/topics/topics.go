// Package topics names the bus topics the chat session publishes on.
package topics

const (
	// MessageNew carries a message appended to the conversation log.
	MessageNew = "chat.message.new"

	// MessageStatus carries a delivery-status patch for one message.
	MessageStatus = "chat.message.status"

	// Typing carries the current typing indicator state.
	Typing = "chat.typing"

	// SessionClosed signals that the live connection ended. The session is
	// terminal at that point; a new one must be started to reconnect.
	SessionClosed = "chat.session.closed"
)
