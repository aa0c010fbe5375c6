package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/dormitory/internal/clock"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is the single-process Locker used when Redis is not configured.
type LocalLocker struct {
	mu     sync.Mutex
	clock  clock.Clock
	leases map[string]lease
}

func NewLocalLocker(clk clock.Clock) *LocalLocker {
	return &LocalLocker{
		clock:  clk,
		leases: make(map[string]lease),
	}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if current, held := l.leases[key]; held && now.Before(current.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, held := l.leases[key]; held && current.token == token {
		delete(l.leases, key)
	}
	return nil
}
