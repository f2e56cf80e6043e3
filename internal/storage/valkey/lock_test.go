package valkey

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/testutil/testvalkey"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock(t *testing.T) {
	addr := testvalkey.StartValkey(t)

	openLock := func(t *testing.T) *RunLock {
		t.Helper()
		l, err := Open(context.Background(), addr, "", log.New(io.Discard))
		require.NoError(t, err)
		l.key = "coachlink:test:" + uuid.NewString()
		t.Cleanup(l.Close)
		return l
	}

	t.Run("ExcludesSecondHolder", func(t *testing.T) {
		testExcludesSecondHolder(t, openLock(t))
	})
	t.Run("Expires", func(t *testing.T) {
		testExpires(t, openLock(t))
	})
	t.Run("SharedAcrossClients", func(t *testing.T) {
		a := openLock(t)
		b := openLock(t)
		b.key = a.key
		testSharedAcrossClients(t, a, b)
	})
}

func testExcludesSecondHolder(t *testing.T, l *RunLock) {
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	unlock2, ok, err := l.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}

func testExpires(t *testing.T, l *RunLock) {
	ctx := context.Background()

	stale, ok, err := l.TryLock(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok, err := l.TryLock(ctx, time.Minute)
		return err == nil && ok
	}, 2*time.Second, 20*time.Millisecond)

	// The expired holder must not release the new lease.
	stale()
	_, ok, err = l.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSharedAcrossClients(t *testing.T, a, b *RunLock) {
	ctx := context.Background()

	unlock, ok, err := a.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a second replica must not take a held lease")

	unlock()
	unlockB, ok, err := b.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	unlockB()
}
