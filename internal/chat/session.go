package chat

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/duetapp/duetchat/internal/chat/topics"
	"github.com/duetapp/duetchat/internal/pubsub"
)

// Dependencies holds the services a Session requires. The session credential
// and participant ids are injected here rather than read from any global, so
// the chat core can run against fakes.
type Dependencies struct {
	API       BootstrapAPI
	Publisher pubsub.Publisher
	WSBaseURL string
	Token     string
	UserID    int64
	PartnerID int64

	// ChannelOptions are applied to the live channel, e.g. a shorter typing
	// timeout in tests.
	ChannelOptions []ChannelOption
}

// Session is one chat view instance: it bootstraps the conversation, owns
// the live channel and the conversation state for its lifetime, and fans
// decoded events out on the bus for renderers. The state and connection are
// not shared across sessions; tearing the session down tears both down.
type Session struct {
	selfID    int64
	partnerID int64
	wsBaseURL string
	token     string

	bootstrap   *Bootstrap
	publisher   pubsub.Publisher
	channelOpts []ChannelOption

	conversationID int64
	channel        *Channel
	state          *State

	// lastSeenMarked guards the auto-seen trigger: each message id is
	// acknowledged at most once, no matter how many events replay the
	// newest-unseen condition.
	lastSeenMarked int64

	logger *slog.Logger
	done   chan struct{}
}

// NewSession creates a Session, injecting its dependencies.
func NewSession(deps Dependencies) *Session {
	return &Session{
		selfID:      deps.UserID,
		partnerID:   deps.PartnerID,
		wsBaseURL:   deps.WSBaseURL,
		token:       deps.Token,
		bootstrap:   NewBootstrap(deps.API),
		publisher:   deps.Publisher,
		channelOpts: deps.ChannelOptions,
		state:       NewState(deps.UserID),
		logger:      slog.Default(),
		done:        make(chan struct{}),
	}
}

// Start resolves the conversation, loads history, opens the live channel and
// starts the event loop. A failed history load is downgraded to an empty
// log; a failed conversation lookup or dial is returned to the caller.
func (s *Session) Start(ctx context.Context) error {
	conversationID, err := s.bootstrap.Conversation(ctx)
	if err != nil {
		return err
	}
	s.conversationID = conversationID
	s.logger = s.logger.With("conversation_id", conversationID)

	history, err := s.bootstrap.History(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, ErrHistoryUnavailable) {
			return err
		}
		s.logger.Warn("History unavailable, starting with an empty log", "error", err)
	} else {
		s.state.Seed(history)
	}

	s.channel = NewChannel(s.wsBaseURL, s.token, conversationID, s.partnerID, s.channelOpts...)
	if err := s.channel.Open(ctx); err != nil {
		return err
	}

	// The history load alone can leave the newest message partner-authored
	// and unseen; acknowledge it now that the channel is open.
	s.maybeMarkSeen()

	go s.run(ctx)
	return nil
}

// run is the single consumer of the live channel. All state mutation happens
// here, in frame arrival order.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.channel.Close()
			// Discard whatever the read loop still pushes so it can exit.
			for range s.channel.Events() {
			}
			s.publishClosed()
			return

		case ev, ok := <-s.channel.Events():
			if !ok {
				s.publishClosed()
				return
			}
			s.state.Apply(ev)
			s.publishEvent(ev)
			s.maybeMarkSeen()
		}
	}
}

// maybeMarkSeen issues a seen acknowledgment when the newest message is
// partner-authored and not yet seen, exactly once per message id. Replays of
// the same condition (status patches, typing events) do not re-fire it.
func (s *Session) maybeMarkSeen() {
	last, ok := s.state.Last()
	if !ok {
		return
	}
	if last.SenderID == s.selfID || last.Status == StatusSeen {
		return
	}
	if last.ID == s.lastSeenMarked {
		return
	}
	s.channel.SendSeen(last.ID)
	s.lastSeenMarked = last.ID
}

func (s *Session) publishEvent(ev Event) {
	switch ev := ev.(type) {
	case MessageEvent:
		s.publish(topics.MessageNew, ev.Message)

	case TypingEvent:
		peer, typing := s.state.TypingPeer()
		s.publish(topics.Typing, TypingNotice{UserID: peer, Typing: typing})

	case StatusEvent:
		s.publish(topics.MessageStatus, StatusNotice{MessageID: ev.MessageID, Status: ev.Status})
	}
}

func (s *Session) publishClosed() {
	s.publish(topics.SessionClosed, struct{}{})
}

func (s *Session) publish(topic string, payload any) {
	if s.publisher == nil {
		return
	}
	msg := pubsub.Message{
		Topic:          topic,
		ConversationID: strconv.FormatInt(s.conversationID, 10),
		Payload:        payload,
	}
	if err := s.publisher.Publish(context.Background(), msg); err != nil {
		s.logger.Error("Publishing bus message", "topic", topic, "error", err)
	}
}

// TypingNotice is the bus payload for topics.Typing.
type TypingNotice struct {
	UserID int64 `json:"user_id"`
	Typing bool  `json:"typing"`
}

// StatusNotice is the bus payload for topics.MessageStatus.
type StatusNotice struct {
	MessageID int64  `json:"message_id"`
	Status    Status `json:"status"`
}

// SendText sends a plain text message.
func (s *Session) SendText(text string) {
	s.channel.SendMessage(text, 0)
}

// SendWithAttachment sends a message carrying an uploaded attachment and,
// optionally, text.
func (s *Session) SendWithAttachment(text string, attachmentID int64) {
	s.channel.SendMessage(text, attachmentID)
}

// Typing reports local keyboard activity to the partner.
func (s *Session) Typing() {
	s.channel.SendTypingStart()
}

// State exposes the conversation state for rendering.
func (s *Session) State() *State {
	return s.state
}

// ConversationID returns the resolved conversation id, 0 before Start.
func (s *Session) ConversationID() int64 {
	return s.conversationID
}

// Done is closed once the event loop has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears down the live connection. The event loop drains and exits.
func (s *Session) Close() {
	if s.channel != nil {
		s.channel.Close()
	}
}
