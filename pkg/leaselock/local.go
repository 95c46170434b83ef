package leaselock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Local keeps leases in memory. It serves single-process deployments such as
// the CLI, where no shared database is available.
type Local struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{
		held:  make(map[string]localEntry),
		clock: time.Now,
	}
}

func (l *Local) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.withDefaults()

	token, err := opts.newToken()
	if err != nil {
		return nil, err
	}

	err = acquireLoop(ctx, opts, func(context.Context) (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.clock()
		if cur, ok := l.held[key]; ok && cur.expires.After(now) && cur.token != token {
			return false, nil
		}
		l.held[key] = localEntry{token: token, expires: now.Add(opts.TTL)}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	lease := newLease(ctx, key, token, func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
		return nil
	})
	go l.renewLoop(lease, opts)
	return lease, nil
}

func (l *Local) renewLoop(lease *Lease, opts Options) {
	t := time.NewTicker(opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-lease.stopCh:
			return
		case <-lease.Context.Done():
			return
		case <-t.C:
			l.mu.Lock()
			cur, ok := l.held[lease.Key]
			if ok && cur.token == lease.Token {
				l.held[lease.Key] = localEntry{token: cur.token, expires: l.clock().Add(opts.TTL)}
			}
			l.mu.Unlock()
			if !ok || cur.token != lease.Token {
				lease.cancel(ErrLost)
				return
			}
		}
	}
}
