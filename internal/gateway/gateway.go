// Package gateway terminates live websocket connections: it authenticates
// the handshake, checks conversation membership, and dispatches inbound
// frames to the conversation channel.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/Vasu1712/coachlink-backend/internal/auth"
	"github.com/Vasu1712/coachlink-backend/internal/chat"
	"github.com/Vasu1712/coachlink-backend/internal/ws"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	closeWait               = time.Second
)

// Options tunes a Gateway. Zero values select the defaults.
type Options struct {
	HandshakeTimeout time.Duration
	SendBuffer       int
	// CheckOrigin is passed to the upgrader; nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// Gateway serves GET /ws/conversations/{id}.
type Gateway struct {
	channel  *chat.Channel
	hub      *ws.Hub
	resolver auth.Resolver
	upgrader websocket.Upgrader
	opts     Options
	logger   *log.Logger
}

func New(channel *chat.Channel, hub *ws.Hub, resolver auth.Resolver, opts Options, logger *log.Logger) *Gateway {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = ws.DefaultSendBuffer
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		channel:  channel,
		hub:      hub,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		opts:   opts,
		logger: logger.With("component", "gateway"),
	}
}

// ServeWS upgrades the request and runs the connection until either side
// closes it.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	if conversationID == "" {
		http.Error(w, "conversation id is required", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		g.logger.Debug("Upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(ws.MaxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	userID, err := g.handshake(ctx, conn, r, conversationID)
	if err != nil {
		g.logger.Info("Handshake rejected",
			"conversationID", conversationID,
			"remoteAddr", r.RemoteAddr,
			"err", err,
		)
		reject(conn, err)
		return
	}

	client := ws.NewClient(conn, conversationID, userID, g.opts.SendBuffer, g.logger)
	client.Start()
	// Queued before registration so it is the first frame the peer sees.
	if err := client.Send(chat.Encode(chat.ConnectedFrame(conversationID, userID))); err != nil {
		client.Close()
		return
	}
	g.hub.Register(conversationID, client)
	defer func() {
		g.hub.Unregister(conversationID, client)
		client.Close()
	}()

	g.readLoop(ctx, conn, client)
}

// handshake resolves the caller and checks membership. The credential comes
// from the request, or else from a first "auth" frame that must arrive
// within the handshake timeout.
func (g *Gateway) handshake(ctx context.Context, conn *websocket.Conn, r *http.Request, conversationID string) (string, error) {
	deadline := time.Now().Add(g.opts.HandshakeTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	credential := auth.BearerToken(r)
	if credential == "" {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return "", fmt.Errorf("%w: handshake timed out", apperr.ErrAuth)
			}
			return "", fmt.Errorf("%w: connection closed before auth", apperr.ErrAuth)
		}
		frame, err := chat.DecodeInbound(raw)
		if err != nil || frame.Type != chat.FrameAuth {
			return "", fmt.Errorf("%w: first frame must be auth", apperr.ErrAuth)
		}
		credential = frame.Token
	}

	userID, err := g.resolver.Resolve(ctx, credential)
	if err != nil {
		return "", err
	}
	if _, err := g.channel.Authorize(ctx, conversationID, userID); err != nil {
		return "", err
	}
	conn.SetReadDeadline(time.Time{})
	return userID, nil
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, client *ws.Client) {
	conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ws.PongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warn("Connection closed unexpectedly", "connectionID", client.ID(), "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(ws.PongWait))
		g.dispatch(ctx, client, raw)
	}
}

// dispatch handles one inbound frame. Failures are reported to the sender
// as error frames; the connection stays open.
func (g *Gateway) dispatch(ctx context.Context, client *ws.Client, raw []byte) {
	frame, err := chat.DecodeInbound(raw)
	if err == nil {
		switch frame.Type {
		case chat.FrameSendMessage:
			_, err = g.channel.AppendAndBroadcast(ctx, client.ConversationID(), client.UserID(), frame.Content)
		case chat.FrameRead, chat.FrameMarkRead:
			_, err = g.channel.MarkRead(ctx, client.ConversationID(), client.UserID(), frame.MessageID)
		case chat.FrameAuth:
			err = fmt.Errorf("%w: already authenticated", apperr.ErrProtocol)
		}
	}
	if err == nil {
		return
	}

	logFn := g.logger.Debug
	if apperr.IsStore(err) {
		logFn = g.logger.Error
	}
	logFn("Frame rejected",
		"conversationID", client.ConversationID(),
		"connectionID", client.ID(),
		"type", frame.Type,
		"err", err,
	)
	_ = client.Send(chat.Encode(chat.ErrorFrame(apperr.Public(err))))
}

// reject reports err to a connection that never registered and closes it.
func reject(conn *websocket.Conn, err error) {
	deadline := time.Now().Add(closeWait)
	conn.SetWriteDeadline(deadline)
	_ = conn.WriteMessage(websocket.TextMessage, chat.Encode(chat.ErrorFrame(apperr.Public(err))))
	code := websocket.ClosePolicyViolation
	if apperr.IsStore(err) {
		code = websocket.CloseTryAgainLater
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	conn.Close()
}
