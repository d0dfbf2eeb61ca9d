package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/sirupsen/logrus"
)

// WriterLeaseKey is the redis key of the single-writer lease.
const WriterLeaseKey = "ledger:writer"

var ErrLeaseNotHeld = errors.New("writer lease is not held by this instance")

// LeaseKeeper holds the redis lease that makes one process the ledger
// writer. The ledger serializes mutations in memory, so two processes
// mutating the same store would diverge.
type LeaseKeeper struct {
	Locker *redislock.Client
	Key    string
	TTL    time.Duration
	Logger *logrus.Logger

	// RetryInterval paces Acquire while another instance holds the lease.
	RetryInterval time.Duration

	mu   sync.Mutex
	lock *redislock.Lock
}

func NewLeaseKeeper(locker *redislock.Client, ttl time.Duration, logger *logrus.Logger) *LeaseKeeper {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaseKeeper{
		Locker:        locker,
		Key:           WriterLeaseKey,
		TTL:           ttl,
		Logger:        logger,
		RetryInterval: time.Second,
	}
}

// TryAcquire obtains the lease once. It returns redislock.ErrNotObtained
// when another instance holds it.
func (k *LeaseKeeper) TryAcquire(ctx context.Context) error {
	if k.Locker == nil {
		return errors.New("service not ready (redis lock not initialized)")
	}
	lock, err := k.Locker.Obtain(ctx, k.Key, k.TTL, nil)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.lock = lock
	k.mu.Unlock()
	return nil
}

// Acquire blocks until the lease is obtained or ctx is done.
func (k *LeaseKeeper) Acquire(ctx context.Context) error {
	for {
		err := k.TryAcquire(ctx)
		if err == nil {
			if k.Logger != nil {
				k.Logger.WithFields(logrus.Fields{
					"field": "LeaseKeeper",
					"key":   k.Key,
					"ttl":   k.TTL.String(),
				}).Info("writer lease acquired")
			}
			return nil
		}
		if !errors.Is(err, redislock.ErrNotObtained) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(k.RetryInterval):
		}
	}
}

// Held reports whether this instance holds an unexpired lease.
func (k *LeaseKeeper) Held(ctx context.Context) bool {
	if k == nil {
		return false
	}
	k.mu.Lock()
	lock := k.lock
	k.mu.Unlock()
	if lock == nil {
		return false
	}
	ttl, err := lock.TTL(ctx)
	return err == nil && ttl > 0
}

// FenceStore claims a new writer fence epoch for store under the held lease.
// Commits from a store fenced by an earlier holder fail from then on.
func (k *LeaseKeeper) FenceStore(ctx context.Context, store *models.GormLedgerStore) error {
	k.mu.Lock()
	lock := k.lock
	k.mu.Unlock()
	if lock == nil || !k.Held(ctx) {
		return ErrLeaseNotHeld
	}
	epoch, err := models.ClaimWriterFence(ctx, store.DB, lock.Token())
	if err != nil {
		return err
	}
	store.Epoch = epoch
	if k.Logger != nil {
		k.Logger.WithFields(logrus.Fields{
			"field": "LeaseKeeper",
			"key":   k.Key,
			"epoch": epoch,
		}).Info("writer fence claimed")
	}
	return nil
}

// Refresh extends the lease by TTL.
func (k *LeaseKeeper) Refresh(ctx context.Context) error {
	k.mu.Lock()
	lock := k.lock
	k.mu.Unlock()
	if lock == nil {
		return ErrLeaseNotHeld
	}
	if err := lock.Refresh(ctx, k.TTL, nil); err != nil {
		k.mu.Lock()
		if k.lock == lock {
			k.lock = nil
		}
		k.mu.Unlock()
		return err
	}
	return nil
}

// Keep refreshes the lease every TTL/3 until ctx is done. onLost is called
// once if a refresh fails.
func (k *LeaseKeeper) Keep(ctx context.Context, onLost func(error)) {
	interval := k.TTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				config.LogError(k.Logger, "LeaseKeeper", "Keep", "refresh writer lease", k.Key, err)
				if onLost != nil {
					onLost(err)
				}
				return
			}
		}
	}
}

// Release gives the lease up. Releasing an unheld lease is a no-op.
func (k *LeaseKeeper) Release(ctx context.Context) error {
	k.mu.Lock()
	lock := k.lock
	k.lock = nil
	k.mu.Unlock()
	if lock == nil {
		return nil
	}
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}
