package blackboard

import (
	"sync"
)

// Blackboard is the single owned object through which all run state —
// calibration history, the Q-table, baselines and run metadata — is
// read and mutated. It holds no in-memory cache of its own: every read
// and write goes straight to the pluggable BackingStore
// (MapBackingStore is the in-memory option).
type Blackboard struct {
	store     BackingStore
	envPrefix string

	keyLocks sync.Map // scope key (string) -> *sync.Mutex
}

// New constructs a Blackboard over the given backing store. envPrefix
// scopes every persisted key.
func New(store BackingStore, envPrefix string) *Blackboard {
	return &Blackboard{store: store, envPrefix: envPrefix}
}

// lockFor returns the striped mutex for a scope key, creating it on
// first use. Read-modify-write on a history ring must be atomic per
// metric key; the striping keeps unrelated keys independent.
func (b *Blackboard) lockFor(key string) *sync.Mutex {
	actual, _ := b.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (b *Blackboard) key(scope string) string {
	return scopedKey(b.envPrefix, scope)
}
