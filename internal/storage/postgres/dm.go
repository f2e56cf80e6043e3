// Package postgres implements the storage contracts on PostgreSQL through
// database/sql and the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/models"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to dataSourceName, checks the connection and applies the
// schema.
func Open(ctx context.Context, dataSourceName string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("pgx", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Connected to PostgreSQL")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*models.Profile, error) {
	p := &models.Profile{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role, display_name FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Role, &p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find user", err)
	}
	return p, nil
}

func (s *Store) FindConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, coach_id, client_id, created_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.CoachID, &conv.ClientID, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find conversation", err)
	}
	return conv, nil
}

func (s *Store) StartOrGetConversation(ctx context.Context, coachID, clientID string) (*models.Conversation, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id, coach_id, client_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (coach_id, client_id) DO UPDATE SET coach_id = EXCLUDED.coach_id
		RETURNING id, coach_id, client_id, created_at
	`, uuid.NewString(), coachID, clientID).Scan(&conv.ID, &conv.CoachID, &conv.ClientID, &conv.CreatedAt)
	if err != nil {
		return nil, apperr.Store("start conversation", err)
	}
	return conv, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, coach_id, client_id, created_at
		FROM conversations
		WHERE coach_id = $1 OR client_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, apperr.Store("list conversations", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		if err := rows.Scan(&conv.ID, &conv.CoachID, &conv.ClientID, &conv.CreatedAt); err != nil {
			return nil, apperr.Store("scan conversation", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list conversations", err)
	}
	return convs, nil
}

const messageColumns = `id, conversation_id, sender_id, content, created_at, read_at`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	msg := &models.Message{}
	var readAt sql.NullTime
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &readAt); err != nil {
		return nil, err
	}
	if readAt.Valid {
		t := readAt.Time
		msg.ReadAt = &t
	}
	return msg, nil
}

func (s *Store) InsertMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageColumns,
		uuid.NewString(), conversationID, senderID, content,
	))
	if err != nil {
		return nil, apperr.Store("insert message", err)
	}
	s.logger.Debug("Inserted message", "messageID", msg.ID, "conversationID", conversationID)
	return msg, nil
}

func (s *Store) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("find message", err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	// Newest page first, then flipped back to ascending order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC, id ASC
	`, conversationID, limitArg)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperr.Store("scan message", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list messages", err)
	}
	return msgs, nil
}

func (s *Store) UpdateMessageReadAt(ctx context.Context, id string, at time.Time) (*models.Message, bool, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, `
		UPDATE messages SET read_at = $2
		WHERE id = $1 AND read_at IS NULL
		RETURNING `+messageColumns,
		id, at,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// Already read, or no such message.
		msg, err := s.FindMessage(ctx, id)
		return msg, false, err
	}
	if err != nil {
		return nil, false, apperr.Store("update message read_at", err)
	}
	return msg, true, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
