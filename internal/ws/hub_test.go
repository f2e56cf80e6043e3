package ws

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	id     string
	userID string
	fail   bool

	mu       sync.Mutex
	received [][]byte
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id, userID: "user-" + id} }

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return f.userID }

func (f *fakeConn) Send(payload []byte) error {
	if f.fail {
		return ErrConnClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeConn) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, p := range f.received {
		out[i] = string(p)
	}
	return out
}

func newTestHub() *Hub { return NewHub(log.New(io.Discard)) }

func TestBroadcastReachesAllRegistered(t *testing.T) {
	h := newTestHub()
	a, b, other := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	h.Register("conv-1", a)
	h.Register("conv-1", b)
	h.Register("conv-2", other)

	delivered := h.Broadcast("conv-1", []byte("hello"))
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"hello"}, a.frames())
	assert.Equal(t, []string{"hello"}, b.frames())
	assert.Empty(t, other.frames())
}

func TestRegisterTwiceKeepsOneEntry(t *testing.T) {
	h := newTestHub()
	a := newFakeConn("a")
	h.Register("conv-1", a)
	h.Register("conv-1", a)
	assert.Equal(t, 1, h.ConnectionCount("conv-1"))
	assert.Equal(t, 1, h.Broadcast("conv-1", []byte("x")))
}

func TestUnregisterRemovesEmptyConversation(t *testing.T) {
	h := newTestHub()
	a := newFakeConn("a")
	h.Register("conv-1", a)

	assert.True(t, h.Unregister("conv-1", a))
	assert.False(t, h.Unregister("conv-1", a), "second unregister must be a no-op")
	assert.Equal(t, 0, h.ConversationCount())

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, h.Broadcast("conv-1", []byte("late")))
	})
	assert.Empty(t, a.frames())
	assert.Equal(t, 0, h.ConversationCount())
}

func TestUnregisterUnknownConversation(t *testing.T) {
	h := newTestHub()
	assert.False(t, h.Unregister("nope", newFakeConn("a")))
}

func TestBroadcastIsolatesSendFailures(t *testing.T) {
	h := newTestHub()
	broken := newFakeConn("broken")
	broken.fail = true
	healthy := newFakeConn("healthy")
	h.Register("conv-1", broken)
	h.Register("conv-1", healthy)

	delivered := h.Broadcast("conv-1", []byte("hi"))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"hi"}, healthy.frames())
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	h := newTestHub()
	stable := newFakeConn("stable")
	h.Register("conv-1", stable)

	const workers = 16
	const rounds = 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				conv := fmt.Sprintf("conv-%d", i%3)
				c := newFakeConn(fmt.Sprintf("w%d-%d", w, i))
				h.Register(conv, c)
				h.Broadcast(conv, []byte("tick"))
				assert.True(t, h.Unregister(conv, c))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 1, h.ConnectionCount("conv-1"))
	assert.Equal(t, 1, h.ConversationCount(), "only the stable connection's conversation remains")
	assert.NotEmpty(t, stable.frames())
}
