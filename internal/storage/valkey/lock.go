// Package valkey holds the scheduler run lock shared by every replica.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const DefaultLockKey = "coachlink:scheduler:run"

// Release only if the key still holds our token, so an expired lock taken
// over by another replica is left alone.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a lease held in valkey with SET NX PX.
type RunLock struct {
	client valkey.Client
	key    string
	logger *log.Logger
}

// Open connects to addr and verifies the connection.
func Open(ctx context.Context, addr, password string, logger *log.Logger) (*RunLock, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return NewRunLock(client, DefaultLockKey, logger), nil
}

func NewRunLock(client valkey.Client, key string, logger *log.Logger) *RunLock {
	if logger == nil {
		logger = log.Default()
	}
	return &RunLock{client: client, key: key, logger: logger.With("component", "runlock")}
}

// TryLock takes the lease for ttl. acquired is false when another holder
// has it.
func (l *RunLock) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	cmd := l.client.B().Set().Key(l.key).Value(token).Nx().
		PxMilliseconds(ttl.Milliseconds()).
		Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Exec(ctx, l.client, []string{l.key}, []string{token}).Error(); err != nil {
			l.logger.Warn("Release failed; lease will expire", "key", l.key, "err", err)
		}
	}
	return unlock, true, nil
}

func (l *RunLock) Close() {
	l.client.Close()
}
