package postgres

import (
	"context"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/models"
)

// UpsertDeviceToken moves token to userID if another user held it.
func (s *Store) UpsertDeviceToken(ctx context.Context, userID, token, platform string) (*models.DeviceToken, error) {
	d := &models.DeviceToken{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (token) DO UPDATE
			SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, updated_at = now()
		RETURNING token, user_id, platform, updated_at
	`, token, userID, platform).Scan(&d.Token, &d.UserID, &d.Platform, &d.UpdatedAt)
	if err != nil {
		return nil, apperr.Store("upsert device token", err)
	}
	return d, nil
}

func (s *Store) DeleteDeviceToken(ctx context.Context, userID, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM device_tokens WHERE token = $1 AND user_id = $2`, token, userID)
	if err != nil {
		return false, apperr.Store("delete device token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store("delete device token", err)
	}
	return n > 0, nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID string) ([]*models.DeviceToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, user_id, platform, updated_at
		FROM device_tokens WHERE user_id = $1 ORDER BY token
	`, userID)
	if err != nil {
		return nil, apperr.Store("list device tokens", err)
	}
	defer rows.Close()

	var tokens []*models.DeviceToken
	for rows.Next() {
		d := &models.DeviceToken{}
		if err := rows.Scan(&d.Token, &d.UserID, &d.Platform, &d.UpdatedAt); err != nil {
			return nil, apperr.Store("scan device token", err)
		}
		tokens = append(tokens, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list device tokens", err)
	}
	return tokens, nil
}
