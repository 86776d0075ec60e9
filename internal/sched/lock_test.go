package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

func TestLockAcquireRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	locks := NewLockTable(st, time.Minute, logx.Nop())
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	ok, err := locks.Acquire(ctx, "backup", now)
	if err != nil || !ok {
		t.Fatalf("first Acquire = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = locks.Acquire(ctx, "backup", now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("second Acquire error: %v", err)
	}
	if ok {
		t.Fatal("second Acquire succeeded while lock was live")
	}

	// Other jobs are unaffected.
	ok, err = locks.Acquire(ctx, "daily-summary", now)
	if err != nil || !ok {
		t.Fatalf("Acquire for other job = (%v, %v), want (true, nil)", ok, err)
	}

	locks.Release(ctx, "backup")
	ok, err = locks.Acquire(ctx, "backup", now.Add(10*time.Second))
	if err != nil || !ok {
		t.Fatalf("Acquire after Release = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestLockStaleReclaim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	locks := NewLockTable(st, time.Minute, logx.Nop())
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	if ok, _ := locks.Acquire(ctx, "backup", now); !ok {
		t.Fatal("initial acquire failed")
	}

	// Within TTL the lock holds.
	if held, _ := locks.Held(ctx, "backup", now.Add(30*time.Second)); !held {
		t.Fatal("lock should be held within TTL")
	}

	// Past TTL the abandoned lock is reclaimed.
	later := now.Add(2 * time.Minute)
	ok, err := locks.Acquire(ctx, "backup", later)
	if err != nil || !ok {
		t.Fatalf("Acquire past TTL = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestLockCorruptRowReclaimed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.AppendRow(ctx, "Run_Locks", store.Row{
		"Job": "backup", "Acquired At": "garbage", "TTL": "1m",
	}); err != nil {
		t.Fatal(err)
	}

	locks := NewLockTable(st, time.Minute, logx.Nop())
	ok, err := locks.Acquire(ctx, "backup", time.Now())
	if err != nil || !ok {
		t.Fatalf("Acquire over corrupt row = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestLockAcquireConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	for iter := 0; iter < 50; iter++ {
		locks := NewLockTable(store.NewMemory(), time.Minute, logx.Nop())

		const callers = 16
		start := make(chan struct{})
		won := make(chan bool, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				ok, err := locks.Acquire(ctx, "gen", now)
				if err != nil {
					t.Errorf("Acquire error: %v", err)
					return
				}
				won <- ok
			}()
		}
		close(start)
		wg.Wait()
		close(won)

		winners := 0
		for ok := range won {
			if ok {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("iter %d: lock acquired by %d concurrent callers, want exactly 1", iter, winners)
		}
	}
}
