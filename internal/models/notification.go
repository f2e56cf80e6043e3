package models

import "time"

// NotificationType identifies the producer condition of an outbox row.
type NotificationType string

// NotificationDailyCheckin is produced by the reminder scheduler.
const NotificationDailyCheckin NotificationType = "daily_checkin"

// NotificationPreference is owned by the preferences API; the core only
// reads it. DailyCheckinTime is "HH:MM" in the user's timezone, empty when
// unset.
type NotificationPreference struct {
	UserID           string `json:"userId"`
	PushEnabled      bool   `json:"pushEnabled"`
	DailyCheckinTime string `json:"dailyCheckinTime,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
}

// Checkin records that a user checked in on a local calendar date
// (formatted "2006-01-02").
type Checkin struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// OutboxNotification is a pending notification. At most one row exists per
// (UserID, Type, DedupeKey). SentAt is terminal once set.
type OutboxNotification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	DedupeKey string           `json:"-"`
	SendAfter time.Time        `json:"sendAfter"`
	SentAt    *time.Time       `json:"sentAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DeviceToken is a push registration. Token is unique across all users.
type DeviceToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Platform  string    `json:"platform,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
