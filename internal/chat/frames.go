package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/models"
)

// Frame types on the live channel.
const (
	FrameAuth        = "auth"
	FrameSendMessage = "send-message"
	FrameMarkRead    = "mark-read"
	FrameRead        = "read"
	FrameConnected   = "connected"
	FrameMessage     = "message"
	FrameError       = "error"
)

// InboundFrame is a client to server frame. "read" and "mark-read" are
// accepted as the same request.
type InboundFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Token     string `json:"token,omitempty"`
}

// OutboundFrame is a server to client frame.
type OutboundFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	MessageID      string          `json:"messageId,omitempty"`
	ReadAt         *time.Time      `json:"readAt,omitempty"`
	Data           *models.Message `json:"data,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// DecodeInbound parses a client frame. Every failure wraps
// apperr.ErrProtocol.
func DecodeInbound(raw []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%w: malformed frame", apperr.ErrProtocol)
	}
	switch f.Type {
	case FrameSendMessage:
		if f.Content == "" {
			return f, fmt.Errorf("%w: send-message requires content", apperr.ErrProtocol)
		}
	case FrameRead, FrameMarkRead:
		if f.MessageID == "" {
			return f, fmt.Errorf("%w: %s requires messageId", apperr.ErrProtocol, f.Type)
		}
	case FrameAuth:
		if f.Token == "" {
			return f, fmt.Errorf("%w: auth requires token", apperr.ErrProtocol)
		}
	case "":
		return f, fmt.Errorf("%w: missing frame type", apperr.ErrProtocol)
	default:
		return f, fmt.Errorf("%w: unknown frame type %q", apperr.ErrProtocol, f.Type)
	}
	return f, nil
}

// Encode marshals f. OutboundFrame only holds marshalable fields.
func Encode(f OutboundFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		panic(fmt.Sprintf("chat: encode %s frame: %v", f.Type, err))
	}
	return b
}

func ConnectedFrame(conversationID, userID string) OutboundFrame {
	return OutboundFrame{Type: FrameConnected, ConversationID: conversationID, UserID: userID}
}

func MessageFrame(msg *models.Message) OutboundFrame {
	return OutboundFrame{Type: FrameMessage, Data: msg}
}

func ReadFrame(messageID, readerID string, readAt *time.Time) OutboundFrame {
	return OutboundFrame{Type: FrameRead, MessageID: messageID, UserID: readerID, ReadAt: readAt}
}

func ErrorFrame(message string) OutboundFrame {
	return OutboundFrame{Type: FrameError, Message: message}
}
