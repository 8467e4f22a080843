package scaling

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// KeyedMutex serializes work per key while letting different keys run in parallel.
// Mutexes are created on first use and kept for the lifetime of the process.
type KeyedMutex struct {
	locks *xsync.Map[string, *sync.Mutex]
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: xsync.NewMap[string, *sync.Mutex]()}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// Len returns the number of keys seen so far.
func (k *KeyedMutex) Len() int {
	return k.locks.Size()
}
