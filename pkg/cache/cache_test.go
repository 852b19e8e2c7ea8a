package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

type fakeEntry struct {
	value     []byte
	expiresAt time.Time
}

// fakeStore enforces expiry lazily on read, same as the Redis backend.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
	now     func() time.Time
	getErr  error
	setErr  error
	sets    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[string]fakeEntry),
		now:     time.Now,
	}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *fakeStore) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.entries[key] = fakeEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *fakeStore) Ping(context.Context) error {
	return s.getErr
}

func TestGetOrComputeComputesOncePerKey(t *testing.T) {
	store := newFakeStore()
	c := New(store, zap.NewNop())

	computes := 0
	compute := func() ([]byte, error) {
		computes++
		return []byte(`{"purity":90}`), nil
	}

	first, err := c.GetOrCompute(context.Background(), "k1", time.Minute, compute)
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "k1", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, computes)
	assert.Equal(t, 1, store.sets)
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.now = func() time.Time { return now }
	c := New(store, zap.NewNop())

	computes := 0
	compute := func() ([]byte, error) {
		computes++
		return []byte("v"), nil
	}

	_, err := c.GetOrCompute(context.Background(), "k1", time.Minute, compute)
	require.NoError(t, err)

	now = now.Add(61 * time.Second)

	_, err = c.GetOrCompute(context.Background(), "k1", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computes)
}

// Two concurrent misses on one key may both compute (last write wins), but
// never more than two for two callers.
func TestGetOrComputeConcurrentMiss(t *testing.T) {
	store := newFakeStore()
	c := New(store, zap.NewNop())

	var computes atomic.Int32
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(2)

	for i := 0; i < 2; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			v, err := c.GetOrCompute(context.Background(), "shared", time.Minute, func() ([]byte, error) {
				computes.Add(1)
				return []byte("v"), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
		}()
	}
	start.Done()
	done.Wait()

	got := computes.Load()
	assert.GreaterOrEqual(t, got, int32(1))
	assert.LessOrEqual(t, got, int32(2))
}

func TestGetOrComputeDoesNotCacheFailures(t *testing.T) {
	store := newFakeStore()
	c := New(store, zap.NewNop())

	boom := errors.New("oracle down")
	_, err := c.GetOrCompute(context.Background(), "k1", time.Minute, func() ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.sets)

	// A later successful compute is stored normally.
	v, err := c.GetOrCompute(context.Background(), "k1", time.Minute, func() ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), v)
	assert.Equal(t, 1, store.sets)
}

func TestGetOrComputeSurfacesBackendFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := New(store, zap.NewNop())

	computes := 0
	_, err := c.GetOrCompute(context.Background(), "k1", time.Minute, func() ([]byte, error) {
		computes++
		return []byte("v"), nil
	})
	require.ErrorIs(t, err, apperrors.ErrCacheUnavailable)
	assert.Equal(t, 0, computes)
}

func TestGetOrComputeReturnsValueWhenWriteFails(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("connection reset")
	c := New(store, zap.NewNop())

	v, err := c.GetOrCompute(context.Background(), "k1", time.Minute, func() ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), v)
}

func TestGetOrComputeAppliesDefaultTTL(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.now = func() time.Time { return now }
	c := New(store, zap.NewNop())

	_, err := c.GetOrCompute(context.Background(), "k1", 0, func() ([]byte, error) {
		return []byte("v"), nil
	})
	require.NoError(t, err)

	entry := store.entries["k1"]
	assert.Equal(t, now.Add(DefaultTTL), entry.expiresAt)
}
