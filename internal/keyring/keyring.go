package keyring

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"binancex/pkg/core"
)

type KeyRing struct {
	mu       sync.RWMutex
	keys     []*APIKey
	current  int
	strategy RotationStrategy
	logger   zerolog.Logger
	now      func() time.Time
}

type APIKey struct {
	ID         string
	Key        string
	Secret     string
	Disabled   bool
	LastUsed   time.Time
	ErrorCount int
}

type RotationStrategy int

const (
	// RotationRoundRobin hands out the next enabled key on every call.
	RotationRoundRobin RotationStrategy = iota
	// RotationOnError keeps the current key until the exchange rejects it.
	RotationOnError
)

// ParseRotationStrategy maps the config value to a strategy. Empty means round robin.
func ParseRotationStrategy(s string) (RotationStrategy, error) {
	switch s {
	case "", "round_robin":
		return RotationRoundRobin, nil
	case "on_error":
		return RotationOnError, nil
	}
	return RotationRoundRobin, fmt.Errorf("unknown rotation strategy %q", s)
}

func NewKeyRing(keys []*APIKey, strategy RotationStrategy) *KeyRing {
	keysCopy := make([]*APIKey, 0, len(keys))
	for _, k := range keys {
		keysCopy = append(keysCopy, &APIKey{
			ID:         k.ID,
			Key:        k.Key,
			Secret:     k.Secret,
			Disabled:   k.Disabled,
			LastUsed:   k.LastUsed,
			ErrorCount: k.ErrorCount,
		})
	}

	return &KeyRing{
		keys:     keysCopy,
		strategy: strategy,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// FromCredentials builds a ring from configured credentials. Keys without an ID get their index.
func FromCredentials(creds []core.Credentials, strategy RotationStrategy) *KeyRing {
	keys := make([]*APIKey, 0, len(creds))
	for i, c := range creds {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("key-%d", i)
		}
		keys = append(keys, &APIKey{ID: id, Key: c.APIKey, Secret: c.SecretKey})
	}
	return NewKeyRing(keys, strategy)
}

func (k *KeyRing) SetLogger(logger zerolog.Logger) {
	k.logger = logger
}

func (k *KeyRing) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

func (k *KeyRing) Current() *APIKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	idx, ok := k.currentLocked()
	if !ok {
		return nil
	}
	return k.keys[idx]
}

// Credential returns the key to use for the next request and marks it used.
// Under round robin the ring advances afterwards.
func (k *KeyRing) Credential() (core.Credentials, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	idx, ok := k.currentLocked()
	if !ok {
		return core.Credentials{}, false
	}
	key := k.keys[idx]
	key.LastUsed = k.now()
	k.current = idx

	if k.strategy == RotationRoundRobin {
		k.rotateLocked()
	}
	return core.Credentials{ID: key.ID, APIKey: key.Key, SecretKey: key.Secret}, true
}

func (k *KeyRing) currentLocked() (int, bool) {
	for i := 0; i < len(k.keys); i++ {
		idx := (k.current + i) % len(k.keys)
		if !k.keys[idx].Disabled {
			return idx, true
		}
	}
	return 0, false
}

func (k *KeyRing) Rotate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rotateLocked()
}

func (k *KeyRing) rotateLocked() {
	if len(k.keys) == 0 {
		return
	}

	start := k.current
	for {
		k.current = (k.current + 1) % len(k.keys)
		if !k.keys[k.current].Disabled {
			return
		}
		if k.current == start {
			return
		}
	}
}

// OnError records a rejection of the key identified by id.
// Under RotationOnError the ring moves away from that key.
func (k *KeyRing) OnError(id string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, key := range k.keys {
		if key.ID != id {
			continue
		}
		key.ErrorCount++
		k.logger.Warn().
			Str("key", key.String()).
			Int("errors", key.ErrorCount).
			Err(err).
			Msg("api key rejected")

		if k.strategy == RotationOnError && i == k.current {
			k.rotateLocked()
		}
		return
	}
}

func (k *KeyRing) Disable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = true
			return
		}
	}
}

func (k *KeyRing) Enable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = false
			key.ErrorCount = 0
			return
		}
	}
}

func (k *KeyRing) Add(key *APIKey) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, existing := range k.keys {
		if existing.ID == key.ID {
			return
		}
	}

	k.keys = append(k.keys, &APIKey{
		ID:     key.ID,
		Key:    key.Key,
		Secret: key.Secret,
	})
}

func (k *KeyRing) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, key := range k.keys {
		if key.ID == id {
			k.keys = append(k.keys[:i], k.keys[i+1:]...)
			if k.current >= len(k.keys) {
				k.current = 0
			}
			return
		}
	}
}

func (k *APIKey) String() string {
	return fmt.Sprintf("APIKey{ID:%s, Key:%s}", k.ID, core.MaskKey(k.Key))
}
