package pool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clowdy-dev/clowdy/driver"
)

// fakeDriver is a minimal driver.Driver that only tracks Destroy calls;
// Create/Inject/Exec are unused by the pool.
type fakeDriver struct {
	mu        sync.Mutex
	destroyed []driver.Handle
}

func (f *fakeDriver) Create(context.Context, driver.SandboxConfig) (driver.Handle, error) {
	return "", nil
}
func (f *fakeDriver) Inject(context.Context, driver.Handle, string, string, []byte) error {
	return nil
}
func (f *fakeDriver) Exec(context.Context, driver.Handle, []string, map[string]string, time.Duration) (int, []byte, []byte, error) {
	return 0, nil, nil, nil
}
func (f *fakeDriver) Destroy(_ context.Context, h driver.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, h)
}
func (f *fakeDriver) EngineReachable(context.Context) bool { return true }
func (f *fakeDriver) Close() error                         { return nil }

func (f *fakeDriver) destroyedHandles() []driver.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]driver.Handle, len(f.destroyed))
	copy(out, f.destroyed)
	return out
}

func testConfig() Config {
	return Config{MaxPoolSize: 2, IdleTimeout: time.Hour, ReapInterval: time.Hour}
}

func TestAcquireMissOnEmptyPool(t *testing.T) {
	p := New(&fakeDriver{}, testConfig(), nil)
	_, ok := p.Acquire(Key{Image: "img"})
	assert.False(t, ok)
}

func TestReleaseThenAcquireRoundTrips(t *testing.T) {
	p := New(&fakeDriver{}, testConfig(), nil)
	key := Key{Image: "img"}

	p.Release(context.Background(), "box-1", key)
	h, ok := p.Acquire(key)
	require.True(t, ok)
	assert.Equal(t, driver.Handle("box-1"), h)

	_, ok = p.Acquire(key)
	assert.False(t, ok, "pool should be empty after the single entry was acquired")
}

func TestAcquireIsLIFO(t *testing.T) {
	p := New(&fakeDriver{}, testConfig(), nil)
	key := Key{Image: "img"}

	p.Release(context.Background(), "first", key)
	p.Release(context.Background(), "second", key)

	h, ok := p.Acquire(key)
	require.True(t, ok)
	assert.Equal(t, driver.Handle("second"), h, "most recently released entry should be acquired first")
}

func TestReleaseEvictsGlobalLRUWhenFull(t *testing.T) {
	fd := &fakeDriver{}
	p := New(fd, testConfig(), nil) // MaxPoolSize = 2
	keyA := Key{Image: "a"}
	keyB := Key{Image: "b"}

	p.Release(context.Background(), "a-old", keyA)
	time.Sleep(2 * time.Millisecond)
	p.Release(context.Background(), "b-new", keyB)

	// Pool is now at capacity (2). The next release must evict the
	// globally oldest entry (a-old), even though it's a different key
	// than the one being released into.
	p.Release(context.Background(), "b-newest", keyB)

	destroyed := fd.destroyedHandles()
	require.Len(t, destroyed, 1)
	assert.Equal(t, driver.Handle("a-old"), destroyed[0])

	stats := p.Stats()
	assert.Equal(t, 2, stats.Total)
}

func TestReapDestroysOnlyExpiredEntries(t *testing.T) {
	fd := &fakeDriver{}
	p := New(fd, Config{MaxPoolSize: 10, IdleTimeout: 10 * time.Millisecond, ReapInterval: time.Hour}, nil)
	key := Key{Image: "img"}

	p.Release(context.Background(), "stale", key)
	time.Sleep(20 * time.Millisecond)
	p.Release(context.Background(), "fresh", key)

	p.Reap(context.Background())

	destroyed := fd.destroyedHandles()
	require.Len(t, destroyed, 1)
	assert.Equal(t, driver.Handle("stale"), destroyed[0])
	assert.Equal(t, 1, p.Stats().Total)
}

func TestShutdownDrainsEverything(t *testing.T) {
	fd := &fakeDriver{}
	p := New(fd, testConfig(), nil)
	key := Key{Image: "img"}

	p.Release(context.Background(), "one", key)
	p.Release(context.Background(), "two", Key{Image: "other"})

	p.Shutdown(context.Background())

	assert.Len(t, fd.destroyedHandles(), 2)
	assert.Equal(t, 0, p.Stats().Total)

	// Idempotent: calling Shutdown again must not panic or double-destroy.
	p.Shutdown(context.Background())
	assert.Len(t, fd.destroyedHandles(), 2)
}

// TestConcurrentRandomizedInterleavingRespectsMaxPoolSize runs a
// randomized mix of Acquire/Release/Reap across many goroutines and
// checks, after every single operation, that total_count <=
// max_pool_size — the invariant a sequential test can only show holds
// for one chosen ordering, not for every interleaving the mutex allows.
func TestConcurrentRandomizedInterleavingRespectsMaxPoolSize(t *testing.T) {
	fd := &fakeDriver{}
	cfg := Config{MaxPoolSize: 5, IdleTimeout: time.Hour, ReapInterval: time.Hour}
	p := New(fd, cfg, nil)
	keys := []Key{{Image: "a"}, {Image: "b"}, {Image: "c"}}

	var violations int64
	checkInvariant := func() {
		if p.Stats().Total > cfg.MaxPoolSize {
			atomic.AddInt64(&violations, 1)
		}
	}

	stop := make(chan struct{})
	var monitor sync.WaitGroup
	monitor.Add(1)
	go func() {
		defer monitor.Done()
		for {
			select {
			case <-stop:
				return
			default:
				checkInvariant()
			}
		}
	}()

	var wg sync.WaitGroup
	var counter int64
	const goroutines = 20
	const opsPerGoroutine = 200
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for j := 0; j < opsPerGoroutine; j++ {
				key := keys[r.Intn(len(keys))]
				switch r.Intn(3) {
				case 0:
					id := atomic.AddInt64(&counter, 1)
					p.Release(context.Background(), driver.Handle(fmt.Sprintf("h-%d", id)), key)
				case 1:
					p.Acquire(key)
				default:
					p.Reap(context.Background())
				}
				checkInvariant()
			}
		}(int64(i))
	}
	wg.Wait()
	close(stop)
	monitor.Wait()

	assert.Equal(t, int64(0), violations, "total_count must never exceed max_pool_size under any interleaving")

	p.Shutdown(context.Background())
	assert.Equal(t, 0, p.Stats().Total, "shutdown after a randomized run must still drain everything")
}
