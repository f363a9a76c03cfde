// Package lock provides keyed try-locks used as non-reentrancy guards.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when the key is already held, whether by another caller or
// by a nested call on the same path.
var ErrHeld = errors.New("lock: key already held")

// Guard acquires a key without waiting. release must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Keyed is an in-process Guard.
type Keyed struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyed() *Keyed { return &Keyed{held: make(map[string]struct{})} }

func (k *Keyed) Acquire(_ context.Context, key string) (func(), error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return nil, ErrHeld
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently acquired.
func (k *Keyed) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}
