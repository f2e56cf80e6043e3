// Package chat orders message creation and fan-out per conversation.
package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/metrics"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/Vasu1712/coachlink-backend/internal/storage"
	"github.com/charmbracelet/log"
)

// MaxContentLength bounds a message body, in runes.
const MaxContentLength = 4000

// Broadcaster delivers a payload to the live connections of a conversation.
type Broadcaster interface {
	Broadcast(conversationID string, payload []byte) int
}

// Channel persists and broadcasts messages and read receipts. For any one
// conversation, persist-then-broadcast runs under that conversation's lock,
// so live connections see messages in commit order. Different conversations
// proceed in parallel.
type Channel struct {
	store  storage.ConversationStore
	hub    Broadcaster
	locks  KeyedMutex
	now    func() time.Time
	logger *log.Logger
}

// NewChannel creates a Channel.
func NewChannel(store storage.ConversationStore, hub Broadcaster, logger *log.Logger) *Channel {
	if logger == nil {
		logger = log.Default()
	}
	return &Channel{
		store:  store,
		hub:    hub,
		now:    time.Now,
		logger: logger.With("component", "channel"),
	}
}

// Authorize returns the conversation if userID is one of its participants.
func (c *Channel) Authorize(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	conv, err := c.store.FindConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Store("find conversation", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, conversationID)
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: user is not a participant of conversation %s", apperr.ErrAccessDenied, conversationID)
	}
	return conv, nil
}

// AppendAndBroadcast persists a message from senderID and broadcasts it to
// the conversation's live connections. The message is authoritative once
// persisted; broadcast is best effort.
func (c *Channel) AppendAndBroadcast(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", apperr.ErrInvalid)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", apperr.ErrInvalid, MaxContentLength)
	}
	if _, err := c.Authorize(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(conversationID)
	defer unlock()

	msg, err := c.store.InsertMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, apperr.Store("insert message", err)
	}
	metrics.MessagesPersisted.Inc()

	delivered := c.hub.Broadcast(conversationID, Encode(MessageFrame(msg)))
	metrics.FramesBroadcast.WithLabelValues(FrameMessage).Add(float64(delivered))
	c.logger.Debug("Message appended",
		"conversationID", conversationID,
		"messageID", msg.ID,
		"senderID", senderID,
		"delivered", delivered,
	)
	return msg, nil
}

// MarkRead sets ReadAt on a message received by readerID and broadcasts a
// read receipt. Marking an already-read message is a no-op that returns the
// stored message.
func (c *Channel) MarkRead(ctx context.Context, conversationID, readerID, messageID string) (*models.Message, error) {
	if _, err := c.Authorize(ctx, conversationID, readerID); err != nil {
		return nil, err
	}
	msg, err := c.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.Store("find message", err)
	}
	if msg == nil || msg.ConversationID != conversationID {
		return nil, fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}
	if msg.SenderID == readerID {
		return nil, fmt.Errorf("%w: cannot mark own message as read", apperr.ErrForbidden)
	}
	if msg.ReadAt != nil {
		return msg, nil
	}

	unlock := c.locks.Lock(conversationID)
	defer unlock()

	readAt := c.now().UTC().Truncate(time.Microsecond)
	stored, updated, err := c.store.UpdateMessageReadAt(ctx, messageID, readAt)
	if err != nil {
		return nil, apperr.Store("update message read_at", err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
	}
	if !updated {
		// Someone else marked it first and already broadcast the receipt.
		return stored, nil
	}

	delivered := c.hub.Broadcast(conversationID, Encode(ReadFrame(messageID, readerID, stored.ReadAt)))
	metrics.FramesBroadcast.WithLabelValues(FrameRead).Add(float64(delivered))
	return stored, nil
}

// History returns the latest limit messages of a conversation to one of its
// participants, oldest first.
func (c *Channel) History(ctx context.Context, conversationID, userID string, limit int) ([]*models.Message, error) {
	if _, err := c.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := c.store.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	return msgs, nil
}

// StartConversation returns the conversation between callerID and peerID,
// creating it on first contact. Exactly one of them must be a coach and the
// other a client.
func (c *Channel) StartConversation(ctx context.Context, callerID, peerID string) (*models.Conversation, error) {
	if peerID == "" || peerID == callerID {
		return nil, fmt.Errorf("%w: a distinct peer is required", apperr.ErrInvalid)
	}
	caller, err := c.findProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	peer, err := c.findProfile(ctx, peerID)
	if err != nil {
		return nil, err
	}

	var coachID, clientID string
	switch {
	case caller.Role == models.RoleCoach && peer.Role == models.RoleClient:
		coachID, clientID = caller.ID, peer.ID
	case caller.Role == models.RoleClient && peer.Role == models.RoleCoach:
		coachID, clientID = peer.ID, caller.ID
	default:
		return nil, fmt.Errorf("%w: conversations pair one coach with one client", apperr.ErrInvalid)
	}

	conv, err := c.store.StartOrGetConversation(ctx, coachID, clientID)
	if err != nil {
		return nil, apperr.Store("start conversation", err)
	}
	return conv, nil
}

// Conversations lists the conversations userID participates in.
func (c *Channel) Conversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	convs, err := c.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, apperr.Store("list conversations", err)
	}
	return convs, nil
}

func (c *Channel) findProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := c.store.FindUser(ctx, userID)
	if err != nil {
		return nil, apperr.Store("find user", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	return p, nil
}
