package models

import "time"

// Role distinguishes the two kinds of participants in a conversation.
type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)

// Profile is the subset of a user profile the messaging core reads.
type Profile struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
}

// Conversation is the immutable edge between one coach and one client.
type Conversation struct {
	ID        string    `json:"id"`
	CoachID   string    `json:"coachId"`
	ClientID  string    `json:"clientId"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.CoachID || userID == c.ClientID)
}

// Message is one chat message. CreatedAt is assigned by the store and
// defines the order within a conversation. ReadAt is set at most once.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}
