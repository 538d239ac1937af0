// Package memdb is an in-process transactional backend used when no
// PostgreSQL database is configured, and by unit tests.
//
// Repositories keep their own maps and guard them with the DB's RWMutex.
// Inside a transaction, writes are staged on the *Tx carried by the context
// and applied under the write lock only when the transaction commits, so
// readers outside the transaction never observe uncommitted state. Exclusive
// per-key locks give the row-lock semantics of SELECT ... FOR UPDATE and fail
// with TRANSACTION_TIMEOUT after the configured wait.
package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

type contextKey string

const txKey contextKey = "memdb_tx"

type DB struct {
	mu          sync.RWMutex
	locks       *keyLocks
	lockTimeout time.Duration
}

func New(lockTimeout time.Duration) *DB {
	return &DB{locks: newKeyLocks(), lockTimeout: lockTimeout}
}

// Ping always succeeds; it lets *DB stand in for a pool in health checks.
func (db *DB) Ping(context.Context) error { return nil }

// View runs fn with the committed state read-locked.
func (db *DB) View(fn func()) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn()
}

// Apply runs fn against the committed state. Inside a transaction fn is
// deferred until commit; otherwise it runs immediately under the write lock.
func (db *DB) Apply(ctx context.Context, fn func()) {
	if tx := TxFromContext(ctx); tx != nil {
		tx.OnCommit(fn)
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	fn()
}

// WithinTx runs fn in a transaction. Staged writes are applied atomically when
// fn returns nil and discarded otherwise. Locks taken by the transaction are
// released in both cases. Nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx := &Tx{db: db, held: make(map[string]struct{}), staged: make(map[string]any)}
	defer tx.release()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.CodeTransactionTimeout, err, "transaction abandoned before commit")
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, apply := range tx.commits {
		apply()
	}
	return nil
}

// TxFromContext returns the transaction carried by ctx, or nil.
func TxFromContext(ctx context.Context) *Tx {
	tx, _ := ctx.Value(txKey).(*Tx)
	return tx
}

// Tx is a unit of work against a DB. It is confined to the goroutine that
// runs the WithinTx callback.
type Tx struct {
	db      *DB
	held    map[string]struct{}
	staged  map[string]any
	commits []func()
}

// Lock takes the exclusive lock for key, waiting at most the DB's lock
// timeout. Locks are reentrant within a transaction.
func (tx *Tx) Lock(ctx context.Context, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	if err := tx.db.locks.acquire(ctx, key, tx.db.lockTimeout); err != nil {
		return err
	}
	tx.held[key] = struct{}{}
	return nil
}

func (tx *Tx) Holds(key string) bool {
	_, ok := tx.held[key]
	return ok
}

// Stage records a value visible to later reads in the same transaction.
func (tx *Tx) Stage(key string, v any) { tx.staged[key] = v }

// Staged returns the value staged for key, if any.
func (tx *Tx) Staged(key string) (any, bool) {
	v, ok := tx.staged[key]
	return v, ok
}

// OnCommit queues fn to run under the DB write lock at commit.
func (tx *Tx) OnCommit(fn func()) { tx.commits = append(tx.commits, fn) }

func (tx *Tx) release() {
	for key := range tx.held {
		tx.db.locks.release(key)
	}
	tx.held = nil
}

type keyLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{slots: make(map[string]chan struct{})}
}

func (l *keyLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *keyLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case ch <- struct{}{}:
		return nil
	case <-expired:
		return apperr.New(apperr.CodeTransactionTimeout, "lock %s not acquired within %s", key, timeout)
	case <-ctx.Done():
		return apperr.Wrap(apperr.CodeTransactionTimeout, ctx.Err(), "lock %s", key)
	}
}

func (l *keyLocks) release(key string) {
	<-l.slot(key)
}
