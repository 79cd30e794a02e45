package chat

import "sync"

// State is the in-memory conversation log plus ephemeral typing state. It is
// append/patch-only: a message id that entered the log is never removed, and
// insertion order is arrival order (history load, then live appends), never
// re-sorted.
//
// State is owned by a single Session; the mutex exists so renderers can take
// snapshots while the session loop writes.
type State struct {
	mu sync.RWMutex

	selfID   int64
	messages []Message
	index    map[int64]int // message id -> position in messages

	// typingPeer is the participant currently typing, 0 when nobody is.
	typingPeer int64
}

// NewState creates an empty State for the given local participant.
func NewState(selfID int64) *State {
	return &State{
		selfID: selfID,
		index:  make(map[int64]int),
	}
}

// Seed installs the history load. Messages are appended in the order given;
// the server's list order is authoritative.
func (s *State) Seed(history []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range history {
		s.append(m)
	}
}

// Apply merges one live event into the state. Status patches are idempotent
// and forward-only, so replaying them is harmless; message appends are not
// commutative and must arrive in order.
func (s *State) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := ev.(type) {
	case MessageEvent:
		s.append(ev.Message)

	case TypingEvent:
		if ev.Start {
			// A participant never sees their own typing indicator.
			if ev.UserID != s.selfID {
				s.typingPeer = ev.UserID
			}
		} else {
			s.typingPeer = 0
		}

	case StatusEvent:
		s.patch(ev.MessageID, ev.Status)
	}
}

// append adds a message to the log. Duplicate ids are dropped so a message
// can never appear twice.
func (s *State) append(m Message) {
	if _, ok := s.index[m.ID]; ok {
		return
	}
	s.index[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
}

// patch moves a message's status forward. A patch for an unknown id is a
// no-op (the event raced the history load, or the message was deleted
// server-side). A patch that would regress the status is rejected so a late
// delivered frame can never downgrade seen.
func (s *State) patch(messageID int64, status Status) {
	i, ok := s.index[messageID]
	if !ok {
		return
	}
	if status.rank() <= s.messages[i].Status.rank() {
		return
	}
	s.messages[i].Status = status
}

// Messages returns a snapshot of the log in insertion order.
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len reports the number of messages in the log.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the newest message, if any.
func (s *State) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// TypingPeer reports which participant is currently typing, if any.
func (s *State) TypingPeer() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typingPeer, s.typingPeer != 0
}
