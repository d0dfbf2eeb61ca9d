package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T) (*miniredis.Miniredis, *redislock.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redislock.New(client)
}

func TestLeaseKeeper_SingleWriter(t *testing.T) {
	ctx := context.Background()
	_, locker := newTestLocker(t)

	first := NewLeaseKeeper(locker, 10*time.Second, nil)
	second := NewLeaseKeeper(locker, 10*time.Second, nil)

	if err := first.TryAcquire(ctx); err != nil {
		t.Fatalf("first TryAcquire error: %v", err)
	}
	if !first.Held(ctx) {
		t.Fatalf("first keeper should hold the lease")
	}
	if err := second.TryAcquire(ctx); !errors.Is(err, redislock.ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained, got %v", err)
	}
	if second.Held(ctx) {
		t.Fatalf("second keeper must not hold the lease")
	}
	if err := EnforcePostingGate(ctx, second); !IsPostingGateError(err) {
		t.Fatalf("expected posting gate to refuse the second keeper, got %v", err)
	}
	if err := EnforcePostingGate(ctx, first); err != nil {
		t.Fatalf("expected posting gate to admit the holder, got %v", err)
	}

	if err := first.Refresh(ctx); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("second Release must be a no-op, got %v", err)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	second.RetryInterval = 10 * time.Millisecond
	if err := second.Acquire(acquireCtx); err != nil {
		t.Fatalf("second Acquire error: %v", err)
	}
	if !second.Held(ctx) {
		t.Fatalf("second keeper should hold the lease after release")
	}
}

func TestLeaseKeeper_ExpiredLeaseIsLost(t *testing.T) {
	ctx := context.Background()
	mr, locker := newTestLocker(t)

	k := NewLeaseKeeper(locker, 2*time.Second, nil)
	if err := k.TryAcquire(ctx); err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}
	mr.FastForward(3 * time.Second)

	if k.Held(ctx) {
		t.Fatalf("expired lease must not be held")
	}
	if err := k.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh of an expired lease to fail")
	}
	if err := k.Refresh(ctx); !errors.Is(err, ErrLeaseNotHeld) {
		t.Fatalf("expected ErrLeaseNotHeld after losing the lease, got %v", err)
	}
}

func TestLeaseKeeper_AcquireHonoursContext(t *testing.T) {
	_, locker := newTestLocker(t)
	holder := NewLeaseKeeper(locker, 10*time.Second, nil)
	if err := holder.TryAcquire(context.Background()); err != nil {
		t.Fatalf("TryAcquire error: %v", err)
	}

	waiter := NewLeaseKeeper(locker, 10*time.Second, nil)
	waiter.RetryInterval = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := waiter.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEnforcePostingGate_NoLeaseConfigured(t *testing.T) {
	if err := EnforcePostingGate(context.Background(), nil); err != nil {
		t.Fatalf("expected nil lease to admit writes, got %v", err)
	}
}

func TestLeaseKeeper_FenceStoreRequiresLease(t *testing.T) {
	ctx := context.Background()
	_, locker := newTestLocker(t)

	keeper := NewLeaseKeeper(locker, 10*time.Second, nil)
	store := models.NewGormLedgerStore(nil)
	if err := keeper.FenceStore(ctx, store); !errors.Is(err, ErrLeaseNotHeld) {
		t.Fatalf("expected ErrLeaseNotHeld without the lease, got %v", err)
	}
	if store.Epoch != 0 {
		t.Fatalf("store must stay unfenced, got epoch %d", store.Epoch)
	}
}

func TestIsPostingGateError_WriterFenced(t *testing.T) {
	err := fmt.Errorf("AllocateFunds: commit: %w", fmt.Errorf("%w: store epoch 1, current 2", models.ErrWriterFenced))
	if !IsPostingGateError(err) {
		t.Fatalf("expected fenced commit to map to the posting gate")
	}
	if IsPostingGateError(errors.New("deadlock found")) {
		t.Fatalf("unrelated commit errors are not posting gate errors")
	}
}
