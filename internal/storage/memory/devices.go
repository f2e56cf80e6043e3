package memory

import (
	"context"
	"sort"

	"github.com/Vasu1712/coachlink-backend/internal/models"
)

func (s *Store) UpsertDeviceToken(_ context.Context, userID, token, platform string) (*models.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := models.DeviceToken{
		Token:     token,
		UserID:    userID,
		Platform:  platform,
		UpdatedAt: s.now().UTC(),
	}
	s.devices[token] = d
	return &d, nil
}

func (s *Store) DeleteDeviceToken(_ context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[token]
	if !ok || d.UserID != userID {
		return false, nil
	}
	delete(s.devices, token)
	return true, nil
}

func (s *Store) ListDeviceTokens(_ context.Context, userID string) ([]*models.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tokens []*models.DeviceToken
	for _, d := range s.devices {
		if d.UserID == userID {
			dd := d
			tokens = append(tokens, &dd)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Token < tokens[j].Token })
	return tokens, nil
}
