// Package ws tracks live connections per conversation and fans frames out
// to them.
package ws

import (
	"errors"
	"sync"

	"github.com/Vasu1712/coachlink-backend/internal/metrics"
	"github.com/charmbracelet/log"
)

// ErrConnClosed is returned by Conn.Send once the connection is closed.
var ErrConnClosed = errors.New("connection closed")

// Conn is the send capability of one live connection. Send must be safe for
// concurrent use and must not block on a slow peer.
type Conn interface {
	ID() string
	UserID() string
	Send(payload []byte) error
}

// room is the connection set of one conversation. A dead room has been
// unlinked from the hub and must not receive new registrations.
type room struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
	dead  bool
}

// Hub maps conversation IDs to their registered connections. Each
// conversation has its own lock; there is no hub-wide lock.
type Hub struct {
	rooms  sync.Map // conversationID -> *room
	logger *log.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{logger: logger.With("component", "hub")}
}

// Register adds c to the set of conversationID, creating the set if absent.
func (h *Hub) Register(conversationID string, c Conn) {
	for {
		v, ok := h.rooms.Load(conversationID)
		if !ok {
			v, _ = h.rooms.LoadOrStore(conversationID, &room{conns: make(map[Conn]struct{})})
		}
		r := v.(*room)

		r.mu.Lock()
		if r.dead {
			// Lost a race with the last Unregister; the room is gone.
			r.mu.Unlock()
			continue
		}
		_, exists := r.conns[c]
		if !exists {
			r.conns[c] = struct{}{}
			metrics.ActiveConnections.Inc()
		}
		n := len(r.conns)
		r.mu.Unlock()

		if !exists {
			h.logger.Info("Client registered",
				"conversationID", conversationID,
				"userID", c.UserID(),
				"connectionID", c.ID(),
				"conversationConnections", n,
			)
		}
		return
	}
}

// Unregister removes c and drops the conversation entry once it is empty.
// It reports whether c was registered; repeated calls are no-ops.
func (h *Hub) Unregister(conversationID string, c Conn) bool {
	v, ok := h.rooms.Load(conversationID)
	if !ok {
		return false
	}
	r := v.(*room)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return false
	}
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	metrics.ActiveConnections.Dec()
	remaining := len(r.conns)
	if remaining == 0 {
		r.dead = true
		h.rooms.CompareAndDelete(conversationID, r)
	}

	h.logger.Info("Client unregistered",
		"conversationID", conversationID,
		"userID", c.UserID(),
		"connectionID", c.ID(),
		"remainingConnections", remaining,
	)
	return true
}

// Broadcast sends payload to every connection registered for
// conversationID when the call starts. A failed send is logged and does not
// stop delivery to the others. It returns the number of successful sends.
func (h *Hub) Broadcast(conversationID string, payload []byte) int {
	targets := h.snapshot(conversationID)
	if len(targets) == 0 {
		h.logger.Debug("No live connections for conversation", "conversationID", conversationID)
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			metrics.BroadcastFailures.Inc()
			h.logger.Warn("Broadcast send failed",
				"conversationID", conversationID,
				"connectionID", c.ID(),
				"userID", c.UserID(),
				"err", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) snapshot(conversationID string) []Conn {
	v, ok := h.rooms.Load(conversationID)
	if !ok {
		return nil
	}
	r := v.(*room)
	r.mu.Lock()
	defer r.mu.Unlock()
	targets := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		targets = append(targets, c)
	}
	return targets
}

// ConnectionCount returns the number of connections registered for
// conversationID.
func (h *Hub) ConnectionCount(conversationID string) int {
	return len(h.snapshot(conversationID))
}

// ConversationCount returns the number of conversations with at least one
// registered connection.
func (h *Hub) ConversationCount() int {
	n := 0
	h.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
