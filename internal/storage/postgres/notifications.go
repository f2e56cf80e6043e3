package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/google/uuid"
)

func (s *Store) ListUsersWithPushEnabled(ctx context.Context) ([]models.NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, push_enabled, COALESCE(daily_checkin_time, ''), COALESCE(timezone, '')
		FROM notification_preferences
		WHERE push_enabled
		ORDER BY user_id
	`)
	if err != nil {
		return nil, apperr.Store("list push-enabled users", err)
	}
	defer rows.Close()

	var prefs []models.NotificationPreference
	for rows.Next() {
		var p models.NotificationPreference
		if err := rows.Scan(&p.UserID, &p.PushEnabled, &p.DailyCheckinTime, &p.Timezone); err != nil {
			return nil, apperr.Store("scan preference", err)
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list push-enabled users", err)
	}
	return prefs, nil
}

func (s *Store) FindPreference(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	p := &models.NotificationPreference{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, push_enabled, COALESCE(daily_checkin_time, ''), COALESCE(timezone, '')
		FROM notification_preferences WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.PushEnabled, &p.DailyCheckinTime, &p.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find preference", err)
	}
	return p, nil
}

func (s *Store) FindTodayCheckin(ctx context.Context, userID, date string) (*models.Checkin, error) {
	c := &models.Checkin{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, to_char(checkin_date, 'YYYY-MM-DD'), created_at
		FROM checkins WHERE user_id = $1 AND checkin_date = $2::date
	`, userID, date).Scan(&c.ID, &c.UserID, &c.Date, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find checkin", err)
	}
	return c, nil
}

func (s *Store) InsertCheckin(ctx context.Context, userID, date string) (*models.Checkin, error) {
	c := &models.Checkin{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO checkins (id, user_id, checkin_date)
		VALUES ($1, $2, $3::date)
		ON CONFLICT (user_id, checkin_date) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, to_char(checkin_date, 'YYYY-MM-DD'), created_at
	`, uuid.NewString(), userID, date).Scan(&c.ID, &c.UserID, &c.Date, &c.CreatedAt)
	if err != nil {
		return nil, apperr.Store("insert checkin", err)
	}
	return c, nil
}

const outboxColumns = `id, user_id, type, title, body, dedupe_key, send_after, sent_at, created_at`

func scanOutbox(row interface{ Scan(...any) error }) (*models.OutboxNotification, error) {
	n := &models.OutboxNotification{}
	var sentAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.DedupeKey, &n.SendAfter, &sentAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return n, nil
}

func (s *Store) FindExistingOutbox(ctx context.Context, userID string, typ models.NotificationType, dedupeKey string) (*models.OutboxNotification, error) {
	n, err := scanOutbox(s.db.QueryRowContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox_notifications
		WHERE user_id = $1 AND type = $2 AND dedupe_key = $3
	`, userID, string(typ), dedupeKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find outbox", err)
	}
	return n, nil
}

func (s *Store) InsertOutbox(ctx context.Context, n *models.OutboxNotification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO outbox_notifications (id, user_id, type, title, body, dedupe_key, send_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, type, dedupe_key) DO NOTHING
		RETURNING created_at
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Body, n.DedupeKey, n.SendAfter).Scan(&n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Store("insert outbox", err)
	}
	return true, nil
}

func (s *Store) FindOutbox(ctx context.Context, id string) (*models.OutboxNotification, error) {
	n, err := scanOutbox(s.db.QueryRowContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox_notifications WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find outbox", err)
	}
	return n, nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, userID string, now time.Time) ([]*models.OutboxNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox_notifications
		WHERE user_id = $1 AND sent_at IS NULL AND send_after <= $2
		ORDER BY send_after ASC, created_at ASC
	`, userID, now)
	if err != nil {
		return nil, apperr.Store("list pending outbox", err)
	}
	defer rows.Close()

	var pending []*models.OutboxNotification
	for rows.Next() {
		n, err := scanOutbox(rows)
		if err != nil {
			return nil, apperr.Store("scan outbox", err)
		}
		pending = append(pending, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list pending outbox", err)
	}
	return pending, nil
}

func (s *Store) UpdateOutboxSent(ctx context.Context, id string, at time.Time) (*models.OutboxNotification, error) {
	n, err := scanOutbox(s.db.QueryRowContext(ctx, `
		UPDATE outbox_notifications SET sent_at = COALESCE(sent_at, $2)
		WHERE id = $1
		RETURNING `+outboxColumns,
		id, at,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("update outbox sent_at", err)
	}
	return n, nil
}
