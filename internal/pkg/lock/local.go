package lock

import (
	"context"
	"sync"
)

type keyState struct {
	sem  chan struct{}
	refs int
}

// KeyedLocker is an in-process Locker. Waiting honors context cancellation.
type KeyedLocker struct {
	mu   sync.Mutex
	keys map[string]*keyState
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{keys: make(map[string]*keyState)}
}

func (l *KeyedLocker) Lock(ctx context.Context, keys []string) (Release, error) {
	keys = Keys("", keys)
	held := make([]string, 0, len(keys))

	for _, k := range keys {
		st := l.ref(k)
		select {
		case st.sem <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.unref(k)
			l.release(held)
			return nil, ErrBusy.WithCause(ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(held) })
	}, nil
}

func (l *KeyedLocker) ref(k string) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.keys[k]
	if !ok {
		st = &keyState{sem: make(chan struct{}, 1)}
		l.keys[k] = st
	}
	st.refs++
	return st
}

func (l *KeyedLocker) unref(k string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.keys[k]
	st.refs--
	if st.refs == 0 {
		delete(l.keys, k)
	}
}

func (l *KeyedLocker) release(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		k := held[i]
		l.mu.Lock()
		st := l.keys[k]
		l.mu.Unlock()
		<-st.sem
		l.unref(k)
	}
}
