package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/duetchat/internal/api"
	"github.com/duetapp/duetchat/internal/chat/topics"
	"github.com/duetapp/duetchat/internal/pubsub"
)

// mockPublisher implements pubsub.Publisher for testing.
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) byTopic(topic string) []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pubsub.Message
	for _, msg := range m.messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func startTestSession(t *testing.T, apiMock *mockAPI, publisher *mockPublisher) (*Session, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	session := NewSession(Dependencies{
		API:       apiMock,
		Publisher: publisher,
		WSBaseURL: "ws://chat.test/ws/chat",
		Token:     "secret",
		UserID:    selfID,
		PartnerID: partnerID,
		ChannelOptions: []ChannelOption{func(c *Channel) {
			c.dial = func(ctx context.Context) (frameConn, error) { return fc, nil }
		}},
	})
	require.NoError(t, session.Start(context.Background()))
	t.Cleanup(session.Close)
	return session, fc
}

func countSeenFrames(fc *fakeConn) int {
	count := 0
	for _, frame := range fc.frames() {
		if frame.Event == eventSeen {
			count++
		}
	}
	return count
}

func TestSession_StartSeedsHistory(t *testing.T) {
	session, _ := startTestSession(t, &mockAPI{
		conversationID: 12,
		messages: []api.HistoryMessage{
			{ID: 1, SenderID: selfID, IsRead: true},
			{ID: 2, SenderID: partnerID, IsRead: true},
		},
	}, &mockPublisher{})

	assert.Equal(t, int64(12), session.ConversationID())
	assert.Equal(t, 2, session.State().Len())
}

func TestSession_StartsEmptyWhenHistoryUnavailable(t *testing.T) {
	// A failed history load is not fatal: the session starts with an empty
	// log instead of hanging or erroring out.
	session, _ := startTestSession(t, &mockAPI{
		conversationID: 12,
		messagesErr:    errors.New("boom"),
	}, &mockPublisher{})

	assert.Equal(t, 0, session.State().Len())
}

func TestSession_StartFailsWithoutConversation(t *testing.T) {
	session := NewSession(Dependencies{
		API:       &mockAPI{conversationErr: errors.New("boom")},
		Publisher: &mockPublisher{},
		UserID:    selfID,
		PartnerID: partnerID,
	})

	assert.Error(t, session.Start(context.Background()))
}

func TestSession_AutoSeenFiresOnceForHistoryTail(t *testing.T) {
	_, fc := startTestSession(t, &mockAPI{
		conversationID: 12,
		messages: []api.HistoryMessage{
			{ID: 1, SenderID: partnerID, IsRead: false},
		},
	}, &mockPublisher{})

	assert.Eventually(t, func() bool {
		return countSeenFrames(fc) == 1
	}, time.Second, 5*time.Millisecond)

	frames := fc.frames()
	assert.Equal(t, outboundFrame{Event: "seen", MessageID: 1}, frames[len(frames)-1])
}

func TestSession_AutoSeenDoesNotRefire(t *testing.T) {
	publisher := &mockPublisher{}
	_, fc := startTestSession(t, &mockAPI{
		conversationID: 12,
		messages: []api.HistoryMessage{
			{ID: 1, SenderID: partnerID, IsRead: false},
		},
	}, publisher)

	assert.Eventually(t, func() bool {
		return countSeenFrames(fc) == 1
	}, time.Second, 5*time.Millisecond)

	// Events that leave the newest message unchanged must not re-trigger
	// the acknowledgment for id 1.
	fc.push(t, `{"type": "typing", "status": "start", "user_id": 9}`)
	fc.push(t, `{"type": "seen", "message_id": 1}`)

	assert.Eventually(t, func() bool {
		return len(publisher.byTopic(topics.MessageStatus)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, countSeenFrames(fc))
}

func TestSession_AutoSeenFiresForEachNewPartnerMessage(t *testing.T) {
	publisher := &mockPublisher{}
	_, fc := startTestSession(t, &mockAPI{conversationID: 12}, publisher)

	fc.push(t, `{"type": "message", "id": 1, "sender_id": 9, "receiver_id": 7}`)
	assert.Eventually(t, func() bool {
		return countSeenFrames(fc) == 1
	}, time.Second, 5*time.Millisecond)

	fc.push(t, `{"type": "message", "id": 2, "sender_id": 9, "receiver_id": 7}`)
	assert.Eventually(t, func() bool {
		return countSeenFrames(fc) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSession_AutoSeenIgnoresOwnMessages(t *testing.T) {
	publisher := &mockPublisher{}
	_, fc := startTestSession(t, &mockAPI{conversationID: 12}, publisher)

	// The sender's own echo comes back as a message frame too; it must not
	// be acknowledged as seen.
	fc.push(t, `{"type": "message", "id": 1, "sender_id": 7, "receiver_id": 9}`)

	assert.Eventually(t, func() bool {
		return len(publisher.byTopic(topics.MessageNew)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, countSeenFrames(fc))
}

func TestSession_PublishesMessageEvents(t *testing.T) {
	publisher := &mockPublisher{}
	session, fc := startTestSession(t, &mockAPI{conversationID: 12}, publisher)

	fc.push(t, `{"type": "message", "id": 1, "sender_id": 9, "receiver_id": 7, "message_text": "hi"}`)

	assert.Eventually(t, func() bool {
		return len(publisher.byTopic(topics.MessageNew)) == 1
	}, time.Second, 5*time.Millisecond)

	published := publisher.byTopic(topics.MessageNew)[0]
	assert.Equal(t, "12", published.ConversationID)

	msg, ok := published.Payload.(Message)
	require.True(t, ok, "payload must be a Message, got %T", published.Payload)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, StatusDelivered, msg.Status)

	assert.Equal(t, 1, session.State().Len())
}

func TestSession_PublishesTypingNotices(t *testing.T) {
	publisher := &mockPublisher{}
	_, fc := startTestSession(t, &mockAPI{conversationID: 12}, publisher)

	fc.push(t, `{"type": "typing", "status": "start", "user_id": 9}`)

	assert.Eventually(t, func() bool {
		return len(publisher.byTopic(topics.Typing)) == 1
	}, time.Second, 5*time.Millisecond)

	notice, ok := publisher.byTopic(topics.Typing)[0].Payload.(TypingNotice)
	require.True(t, ok, "payload must be a TypingNotice, got %T", publisher.byTopic(topics.Typing)[0].Payload)
	assert.True(t, notice.Typing)
	assert.Equal(t, partnerID, notice.UserID)
}

func TestSession_TypingSendsStartFrame(t *testing.T) {
	session, fc := startTestSession(t, &mockAPI{conversationID: 12}, &mockPublisher{})

	session.Typing()

	frames := fc.frames()
	require.NotEmpty(t, frames)
	assert.Equal(t, eventTypingStart, frames[len(frames)-1].Event)
}

func TestSession_ConnectionCloseEndsSession(t *testing.T) {
	publisher := &mockPublisher{}
	session, fc := startTestSession(t, &mockAPI{conversationID: 12}, publisher)

	fc.Close()

	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not end after connection close")
	}
	assert.Len(t, publisher.byTopic(topics.SessionClosed), 1)
}
