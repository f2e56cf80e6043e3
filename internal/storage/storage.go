// Package storage declares the persistence contracts consumed by the
// messaging and notification core. Implementations live in the memory and
// postgres subpackages.
//
// Lookups that find nothing return (nil, nil); errors are reserved for
// backing-store failures.
package storage

import (
	"context"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/models"
)

// ConversationStore persists conversations, messages and read state.
type ConversationStore interface {
	FindConversation(ctx context.Context, id string) (*models.Conversation, error)
	// StartOrGetConversation returns the conversation between coachID and
	// clientID, creating it on first contact.
	StartOrGetConversation(ctx context.Context, coachID, clientID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
	// InsertMessage assigns ID and CreatedAt. CreatedAt is strictly
	// increasing within a conversation.
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	FindMessage(ctx context.Context, id string) (*models.Message, error)
	// ListMessages returns the newest limit messages in ascending CreatedAt
	// order. limit <= 0 means all.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
	// UpdateMessageReadAt sets ReadAt only if it is unset and returns the
	// message as stored afterwards; updated reports whether this call set it.
	UpdateMessageReadAt(ctx context.Context, id string, at time.Time) (msg *models.Message, updated bool, err error)
	FindUser(ctx context.Context, id string) (*models.Profile, error)
}

// NotificationStore backs the scheduler and the outbox delivery API.
type NotificationStore interface {
	ListUsersWithPushEnabled(ctx context.Context) ([]models.NotificationPreference, error)
	FindPreference(ctx context.Context, userID string) (*models.NotificationPreference, error)
	FindTodayCheckin(ctx context.Context, userID, date string) (*models.Checkin, error)
	// InsertCheckin is idempotent per (userID, date).
	InsertCheckin(ctx context.Context, userID, date string) (*models.Checkin, error)
	// FindExistingOutbox returns the row for (userID, type, dedupeKey),
	// sent or not.
	FindExistingOutbox(ctx context.Context, userID string, typ models.NotificationType, dedupeKey string) (*models.OutboxNotification, error)
	// InsertOutbox inserts n unless a row with the same (UserID, Type,
	// DedupeKey) exists; created reports which happened.
	InsertOutbox(ctx context.Context, n *models.OutboxNotification) (created bool, err error)
	FindOutbox(ctx context.Context, id string) (*models.OutboxNotification, error)
	// ListPendingOutbox returns unsent rows with SendAfter <= now ordered by
	// SendAfter.
	ListPendingOutbox(ctx context.Context, userID string, now time.Time) ([]*models.OutboxNotification, error)
	// UpdateOutboxSent sets SentAt only if it is unset and returns the row
	// as stored afterwards.
	UpdateOutboxSent(ctx context.Context, id string, at time.Time) (*models.OutboxNotification, error)
}

// DeviceStore keeps push registrations.
type DeviceStore interface {
	// UpsertDeviceToken registers token for userID, taking it over from any
	// previous owner.
	UpsertDeviceToken(ctx context.Context, userID, token, platform string) (*models.DeviceToken, error)
	// DeleteDeviceToken removes token if userID owns it and reports whether
	// a row was removed.
	DeleteDeviceToken(ctx context.Context, userID, token string) (bool, error)
	ListDeviceTokens(ctx context.Context, userID string) ([]*models.DeviceToken, error)
}

// Store bundles every contract; both backends implement it.
type Store interface {
	ConversationStore
	NotificationStore
	DeviceStore
	Close() error
}
