package chat

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// KeyedMutex hands out one mutex per key. Entries are reference counted and
// removed when no goroutine holds or waits for them, so idle keys cost
// nothing. Bookkeeping is sharded; holding one key never blocks another.
type KeyedMutex struct {
	shards [shardCount]keyShard
}

type keyShard struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	s := k.shard(key)

	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*keyLock)
	}
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (k *KeyedMutex) Len() int {
	n := 0
	for i := range k.shards {
		s := &k.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}

func (k *KeyedMutex) shard(key string) *keyShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &k.shards[h.Sum32()%shardCount]
}
