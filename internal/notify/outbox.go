// Package notify produces reminder notifications and serves them to their
// recipients through a pull and acknowledge outbox.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/Vasu1712/coachlink-backend/internal/storage"
	"github.com/charmbracelet/log"
)

// Outbox is the delivery side of the notification queue.
type Outbox struct {
	store  storage.NotificationStore
	now    func() time.Time
	logger *log.Logger
}

func NewOutbox(store storage.NotificationStore, logger *log.Logger) *Outbox {
	if logger == nil {
		logger = log.Default()
	}
	return &Outbox{store: store, now: time.Now, logger: logger.With("component", "outbox")}
}

// ListPending returns the caller's unsent notifications that are due, in
// SendAfter order.
func (o *Outbox) ListPending(ctx context.Context, userID string) ([]*models.OutboxNotification, error) {
	pending, err := o.store.ListPendingOutbox(ctx, userID, o.now().UTC())
	if err != nil {
		return nil, apperr.Store("list pending outbox", err)
	}
	if pending == nil {
		pending = []*models.OutboxNotification{}
	}
	return pending, nil
}

// Acknowledge marks a notification as sent. Acknowledging it again returns
// the stored row unchanged.
func (o *Outbox) Acknowledge(ctx context.Context, notificationID, callerID string) (*models.OutboxNotification, error) {
	n, err := o.store.FindOutbox(ctx, notificationID)
	if err != nil {
		return nil, apperr.Store("find outbox", err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: notification %s", apperr.ErrNotFound, notificationID)
	}
	if n.UserID != callerID {
		return nil, fmt.Errorf("%w: notification belongs to another user", apperr.ErrForbidden)
	}
	if n.SentAt != nil {
		return n, nil
	}

	updated, err := o.store.UpdateOutboxSent(ctx, notificationID, o.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return nil, apperr.Store("update outbox sent_at", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: notification %s", apperr.ErrNotFound, notificationID)
	}
	o.logger.Debug("Notification acknowledged", "notificationID", notificationID, "userID", callerID)
	return updated, nil
}

// RecordCheckin stores today's check-in for userID, where today is taken in
// the user's preferred timezone.
func (o *Outbox) RecordCheckin(ctx context.Context, userID string) (*models.Checkin, error) {
	pref, err := o.store.FindPreference(ctx, userID)
	if err != nil {
		return nil, apperr.Store("find preference", err)
	}
	tz := ""
	if pref != nil {
		tz = pref.Timezone
	}
	c, err := o.store.InsertCheckin(ctx, userID, LocalDate(o.now(), tz))
	if err != nil {
		return nil, apperr.Store("insert checkin", err)
	}
	return c, nil
}

// LocalDate formats the calendar date of t in the named timezone. Unknown or
// empty names fall back to UTC.
func LocalDate(t time.Time, timezone string) string {
	return t.In(location(timezone)).Format(dateLayout)
}

const dateLayout = "2006-01-02"

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
