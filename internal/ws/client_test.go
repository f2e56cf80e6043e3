package ws

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverConn returns the server side of a live websocket and the dialed
// peer.
func serverConn(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	select {
	case conn := <-accepted:
		return conn, peer
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade did not complete")
		return nil, nil
	}
}

func TestClientDeliversInOrder(t *testing.T) {
	conn, peer := serverConn(t)
	c := NewClient(conn, "conv-1", "user-1", 8, log.New(io.Discard))
	c.Start()
	t.Cleanup(c.Close)

	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, c.Send([]byte(m)))
	}
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"one", "two", "three"} {
		_, got, err := peer.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	conn, _ := serverConn(t)
	c := NewClient(conn, "conv-1", "user-1", 4, log.New(io.Discard))
	c.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	assert.ErrorIs(t, c.Send([]byte("late")), ErrConnClosed)
}

func TestClientFullQueueClosesConnection(t *testing.T) {
	conn, _ := serverConn(t)
	// No write pump, so nothing drains the queue.
	c := NewClient(conn, "conv-1", "user-1", 2, log.New(io.Discard))

	require.NoError(t, c.Send([]byte("a")))
	require.NoError(t, c.Send([]byte("b")))
	assert.ErrorIs(t, c.Send([]byte("c")), ErrSlowConsumer)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow client was not closed")
	}
	assert.ErrorIs(t, c.Send([]byte("d")), ErrConnClosed)
	c.Close()
}

func TestEvictedClientUnregistersOnce(t *testing.T) {
	conn, _ := serverConn(t)
	hub := NewHub(log.New(io.Discard))
	c := NewClient(conn, "conv-1", "user-1", 1, log.New(io.Discard))
	hub.Register("conv-1", c)

	require.NoError(t, c.Send([]byte("a")))
	assert.Zero(t, hub.Broadcast("conv-1", []byte("b")))
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow client was not closed")
	}

	assert.True(t, hub.Unregister("conv-1", c))
	assert.Equal(t, 0, hub.ConversationCount())
	assert.False(t, hub.Unregister("conv-1", c), "second unregister is a no-op")
}
