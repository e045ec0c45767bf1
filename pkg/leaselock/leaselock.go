// Package leaselock serializes graph writes per data room. Every worker
// replica takes a lease on the data room key before running the storage
// stage, so versioned attribute updates for one room never interleave.
// Leases live in the app_locks table and expire on their own if a holder
// dies, which keeps a crashed worker from blocking a room forever.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrBusy is returned by a non-waiting Acquire when another holder
	// has a live lease on the key.
	ErrBusy = errors.New("lease busy")
	// ErrLost cancels the lease context when a renewal finds the row
	// gone or owned by someone else.
	ErrLost = errors.New("lease lost")
)

const (
	defaultTTL          = 2 * time.Minute
	defaultWaitInterval = 250 * time.Millisecond
	renewAttempts       = 3
	renewTimeout        = 15 * time.Second
	renewRetryDelay     = 200 * time.Millisecond
)

// querier is the slice of a pgx pool the lock needs.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client acquires leases against a single database.
type Client struct {
	db querier
}

// New wraps a pool in a lease client.
func New(pool *pgxpool.Pool) *Client {
	return &Client{db: pool}
}

// Options tune one acquisition. The zero value gives a 2 minute TTL,
// renewal at half the TTL, and a fail-fast Acquire.
type Options struct {
	// TTL is how long the lease survives without renewal.
	TTL time.Duration
	// RenewEvery is the renewal period. Must stay below TTL.
	RenewEvery time.Duration

	// Wait makes Acquire poll until the key frees up instead of
	// returning ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	// TokenPrefix is prepended to the generated holder token, useful
	// for telling replicas apart in app_locks.
	TokenPrefix string
}

func (o *Options) normalize() {
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = defaultWaitInterval
	}
	if o.WaitJitter < 0 {
		o.WaitJitter = 0
	}
}

// Lease is a held lock. Context is derived from the acquiring context
// and is cancelled with ErrLost if a renewal fails, so work running
// under the lease stops before a second holder can take the key.
type Lease struct {
	Key   string
	Token string

	Context context.Context

	client *Client
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

// WithLease runs fn while holding the key, releasing on return. fn
// receives the lease context and should abandon its work when that
// context is cancelled.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	return fn(lease.Context)
}

// Acquire takes the lease on key, polling if opts.Wait is set. The
// returned lease renews itself in the background until released.
func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	opts.normalize()
	ttlMs := opts.TTL.Milliseconds()

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := opts.TokenPrefix + tok

	for {
		ok, err := c.tryAcquire(ctx, key, token, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
	go l.renewLoop(opts.RenewEvery, ttlMs)

	return l, nil
}

// tryAcquire upserts the lock row. The upsert only wins when the row is
// expired or already carries our token, so a live foreign lease makes
// the RETURNING clause come back empty.
func (c *Client) tryAcquire(ctx context.Context, key, token string, ttlMs int64) (bool, error) {
	var gotKey string
	err := c.db.QueryRow(ctx, acquireSQL, key, token, ttlMs).Scan(&gotKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return gotKey == key, nil
}

// Release stops renewal and deletes the row. Token fencing means a
// release after ErrLost is a no-op rather than deleting the next
// holder's lease.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) renewLoop(every time.Duration, ttlMs int64) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ttlMs); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renewOnce(ttlMs int64) error {
	for attempt := range renewAttempts {
		renewCtx, cancel := context.WithTimeout(l.Context, renewTimeout)
		var gotKey string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.Key, l.Token, ttlMs).Scan(&gotKey)
		cancel()
		if err == nil {
			return nil
		}
		// No row under our token: the lease expired and may already
		// belong to another holder.
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == renewAttempts-1 {
			return err
		}
		if err := sleepWithJitter(l.Context, renewRetryDelay, 0); err != nil {
			return err
		}
	}
	return ErrLost
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

const acquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
