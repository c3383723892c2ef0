package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"r:a", "r:b", "r:c"}, Keys("r:", []string{"c", "a", "b", "a"}))
	assert.Empty(t, Keys("r:", nil))
}

func TestKeyedLockerExcludes(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, []string{"hall", "bus"})
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
	assert.Empty(t, l.keys, "idle keys are dropped")
}

func TestKeyedLockerHonorsContext(t *testing.T) {
	l := NewKeyedLocker()
	release, err := l.Lock(context.Background(), []string{"hall"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, []string{"bus", "hall"})
	assert.ErrorIs(t, err, ErrBusy)

	// bus was released when the second attempt gave up.
	other, err := l.Lock(context.Background(), []string{"bus"})
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Lock(context.Background(), []string{"hall"})
	require.NoError(t, err)
	again()
}

func TestKeyedLockerDisjointKeysDoNotBlock(t *testing.T) {
	l := NewKeyedLocker()
	first, err := l.Lock(context.Background(), []string{"hall"})
	require.NoError(t, err)
	defer first()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	second, err := l.Lock(ctx, []string{"bus"})
	require.NoError(t, err)
	second()
}

type fakeRedis struct {
	mu       sync.Mutex
	values   map[string]string
	renewals map[string]int
	failSet  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), renewals: make(map[string]int)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(int64(n), nil)
}

func (f *fakeRedis) PExpire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	f.renewals[key]++
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) renewed(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewals[key]
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	store := newFakeRedis()
	l, err := NewRedisLocker(store, "lock:", time.Second)
	require.NoError(t, err)

	release, err := l.Lock(context.Background(), []string{"b", "a"})
	require.NoError(t, err)
	assert.Len(t, store.values, 2)
	assert.Equal(t, store.values["lock:a"], store.values["lock:b"])

	release()
	assert.Empty(t, store.values)
}

func TestRedisLockerWaitsForHolder(t *testing.T) {
	store := newFakeRedis()
	l, err := NewRedisLocker(store, "lock:", time.Second)
	require.NoError(t, err)

	first, err := l.Lock(context.Background(), []string{"a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, []string{"a", "z"})
	assert.ErrorIs(t, err, ErrBusy)

	go func() {
		time.Sleep(30 * time.Millisecond)
		first()
	}()
	second, err := l.Lock(context.Background(), []string{"a"})
	require.NoError(t, err)
	second()
}

func TestRedisLockerKeepsForeignOwner(t *testing.T) {
	store := newFakeRedis()
	l, err := NewRedisLocker(store, "lock:", time.Second)
	require.NoError(t, err)

	release, err := l.Lock(context.Background(), []string{"a"})
	require.NoError(t, err)

	// The key expired and another replica took it.
	store.mu.Lock()
	store.values["lock:a"] = "someone-else"
	store.mu.Unlock()
	release()
	assert.Equal(t, "someone-else", store.values["lock:a"])
}

func TestRedisLockerSurfacesStoreErrors(t *testing.T) {
	store := newFakeRedis()
	store.failSet = true
	l, err := NewRedisLocker(store, "lock:", 0)
	require.NoError(t, err)

	_, err = l.Lock(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)

	_, err = NewRedisLocker(nil, "", 0)
	assert.Error(t, err)
}

func TestRedisLockerRenewsUntilRelease(t *testing.T) {
	store := newFakeRedis()
	l, err := NewRedisLocker(store, "lock:", 30*time.Millisecond)
	require.NoError(t, err)

	release, err := l.Lock(context.Background(), []string{"a"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.renewed("lock:a") >= 2 },
		time.Second, 5*time.Millisecond, "held key is renewed past its ttl")

	release()
	after := store.renewed("lock:a")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, store.renewed("lock:a"), "renewal stops once released")

	_, err = store.Get(context.Background(), "lock:a").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisLockerDoesNotRenewForeignOwner(t *testing.T) {
	store := newFakeRedis()
	l, err := NewRedisLocker(store, "lock:", 30*time.Millisecond)
	require.NoError(t, err)

	release, err := l.Lock(context.Background(), []string{"a"})
	require.NoError(t, err)
	defer release()

	// Simulate expiry followed by another replica taking the key.
	store.mu.Lock()
	store.values["lock:a"] = "other-owner"
	store.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, store.renewed("lock:a"))
}
