package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/google/uuid"
)

// PutPreference stores or replaces a notification preference row.
func (s *Store) PutPreference(p models.NotificationPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[p.UserID] = p
}

func (s *Store) ListUsersWithPushEnabled(_ context.Context) ([]models.NotificationPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var prefs []models.NotificationPreference
	for _, p := range s.preferences {
		if p.PushEnabled {
			prefs = append(prefs, p)
		}
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].UserID < prefs[j].UserID })
	return prefs, nil
}

func (s *Store) FindPreference(_ context.Context, userID string) (*models.NotificationPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preferences[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) FindTodayCheckin(_ context.Context, userID, date string) (*models.Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checkins[[2]string{userID, date}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) InsertCheckin(_ context.Context, userID, date string) (*models.Checkin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{userID, date}
	if c, ok := s.checkins[key]; ok {
		return &c, nil
	}
	c := models.Checkin{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      date,
		CreatedAt: s.now().UTC(),
	}
	s.checkins[key] = c
	return &c, nil
}

func (s *Store) FindExistingOutbox(_ context.Context, userID string, typ models.NotificationType, dedupeKey string) (*models.OutboxNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.outboxKeys[outboxKey{userID, typ, dedupeKey}]
	if !ok {
		return nil, nil
	}
	return copyOutbox(s.outbox[id]), nil
}

func (s *Store) InsertOutbox(_ context.Context, n *models.OutboxNotification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := outboxKey{n.UserID, n.Type, n.DedupeKey}
	if _, ok := s.outboxKeys[key]; ok {
		return false, nil
	}
	row := *n
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt = s.now().UTC()
	row.SentAt = nil
	s.outbox[row.ID] = row
	s.outboxKeys[key] = row.ID
	n.ID = row.ID
	n.CreatedAt = row.CreatedAt
	return true, nil
}

func (s *Store) FindOutbox(_ context.Context, id string) (*models.OutboxNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.outbox[id]
	if !ok {
		return nil, nil
	}
	return copyOutbox(n), nil
}

func (s *Store) ListPendingOutbox(_ context.Context, userID string, now time.Time) ([]*models.OutboxNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*models.OutboxNotification
	for _, n := range s.outbox {
		if n.UserID == userID && n.SentAt == nil && !n.SendAfter.After(now) {
			pending = append(pending, copyOutbox(n))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].SendAfter.Equal(pending[j].SendAfter) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].SendAfter.Before(pending[j].SendAfter)
	})
	return pending, nil
}

func (s *Store) UpdateOutboxSent(_ context.Context, id string, at time.Time) (*models.OutboxNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.outbox[id]
	if !ok {
		return nil, nil
	}
	if n.SentAt == nil {
		sentAt := at.UTC()
		n.SentAt = &sentAt
		s.outbox[id] = n
	}
	return copyOutbox(n), nil
}

func copyOutbox(n models.OutboxNotification) *models.OutboxNotification {
	if n.SentAt != nil {
		sentAt := *n.SentAt
		n.SentAt = &sentAt
	}
	return &n
}
