// Package memory is an in-process implementation of the storage contracts.
// It backs the test suite and single-node development runs without a
// database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/google/uuid"
)

// Store keeps every table in maps guarded by one RWMutex. Values are
// copied on the way in and out so callers never share memory with the
// store.
type Store struct {
	mu sync.RWMutex

	profiles      map[string]models.Profile
	conversations map[string]models.Conversation // conversationID -> conversation
	pairIndex     map[[2]string]string           // (coachID, clientID) -> conversationID
	messages      map[string]models.Message      // messageID -> message
	thread        map[string][]string            // conversationID -> []messageID in commit order

	preferences map[string]models.NotificationPreference
	checkins    map[[2]string]models.Checkin // (userID, date)
	outbox      map[string]models.OutboxNotification
	outboxKeys  map[outboxKey]string
	devices     map[string]models.DeviceToken // token -> registration

	now func() time.Time
}

type outboxKey struct {
	userID    string
	typ       models.NotificationType
	dedupeKey string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		profiles:      make(map[string]models.Profile),
		conversations: make(map[string]models.Conversation),
		pairIndex:     make(map[[2]string]string),
		messages:      make(map[string]models.Message),
		thread:        make(map[string][]string),
		preferences:   make(map[string]models.NotificationPreference),
		checkins:      make(map[[2]string]models.Checkin),
		outbox:        make(map[string]models.OutboxNotification),
		outboxKeys:    make(map[outboxKey]string),
		devices:       make(map[string]models.DeviceToken),
		now:           time.Now,
	}
}

// SetClock replaces the time source used for CreatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutProfile stores or replaces a profile. Profiles are owned by the
// identity service; this exists for seeding.
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *Store) FindUser(_ context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) FindConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return &conv, nil
}

func (s *Store) StartOrGetConversation(_ context.Context, coachID, clientID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{coachID, clientID}
	if id, ok := s.pairIndex[key]; ok {
		conv := s.conversations[id]
		return &conv, nil
	}
	conv := models.Conversation{
		ID:        uuid.NewString(),
		CoachID:   coachID,
		ClientID:  clientID,
		CreatedAt: s.now().UTC(),
	}
	s.conversations[conv.ID] = conv
	s.pairIndex[key] = conv.ID
	return &conv, nil
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			c := conv
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) InsertMessage(_ context.Context, conversationID, senderID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.now().UTC()
	if ids := s.thread[conversationID]; len(ids) > 0 {
		last := s.messages[ids[len(ids)-1]].CreatedAt
		if !createdAt.After(last) {
			createdAt = last.Add(time.Microsecond)
		}
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      createdAt,
	}
	s.messages[msg.ID] = msg
	s.thread[conversationID] = append(s.thread[conversationID], msg.ID)
	return copyMessage(msg), nil
}

func (s *Store) FindMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(msg), nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.thread[conversationID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	msgs := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, copyMessage(s.messages[id]))
	}
	return msgs, nil
}

func (s *Store) UpdateMessageReadAt(_ context.Context, id string, at time.Time) (*models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, false, nil
	}
	if msg.ReadAt != nil {
		return copyMessage(msg), false, nil
	}
	readAt := at.UTC()
	msg.ReadAt = &readAt
	s.messages[id] = msg
	return copyMessage(msg), true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copyMessage(m models.Message) *models.Message {
	if m.ReadAt != nil {
		readAt := *m.ReadAt
		m.ReadAt = &readAt
	}
	return &m
}
