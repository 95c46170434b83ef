// Package leaselock hands out exclusive leases on string keys. A lease
// stays valid until it is released, its TTL runs out without renewal, or
// the context it was acquired with ends.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

// Locker is implemented by Client (Postgres) and Local (in-process).
type Locker interface {
	Acquire(ctx context.Context, key string, opts Options) (*Lease, error)
}

type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait keeps retrying a busy key until ctx ends instead of returning ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	TokenPrefix string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = 250 * time.Millisecond
	}
	if o.WaitJitter < 0 {
		o.WaitJitter = 0
	}
	return o
}

func (o Options) newToken() (string, error) {
	tok, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	return o.TokenPrefix + tok, nil
}

// Lease is a held lock. Context is canceled once the lease is released or lost.
type Lease struct {
	Key   string
	Token string

	Context context.Context

	cancel  context.CancelCauseFunc
	release func(ctx context.Context) error

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newLease(ctx context.Context, key, token string, release func(ctx context.Context) error) *Lease {
	leaseCtx, cancel := context.WithCancelCause(ctx)
	return &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		cancel:  cancel,
		release: release,
		stopCh:  make(chan struct{}),
	}
}

// Release gives the key up. It is safe to call more than once.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})
	return l.release(ctx)
}

// Err returns ErrLost if the lease expired underneath its holder, the
// acquiring context's error if that ended, and nil while the lease is held.
func (l *Lease) Err() error {
	if l.Context.Err() == nil {
		return nil
	}
	return context.Cause(l.Context)
}

// WithLease runs fn while holding key. fn receives the lease context.
func WithLease(ctx context.Context, locker Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := locker.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()
	return fn(lease.Context)
}

// acquireLoop calls try until it takes the key, honoring opts.Wait.
func acquireLoop(ctx context.Context, opts Options, try func(ctx context.Context) (bool, error)) error {
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !opts.Wait {
			return ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return err
		}
	}
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
