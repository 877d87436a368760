package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"
)

// MemoryRootKeyRepository keeps root key records in process memory. Plaintext
// material is never stored; records carry the same fields a SQL row would.
type MemoryRootKeyRepository struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*keysDomain.RootKey
}

// NewMemoryRootKeyRepository creates an empty in-memory repository.
func NewMemoryRootKeyRepository() *MemoryRootKeyRepository {
	return &MemoryRootKeyRepository{keys: make(map[uuid.UUID]*keysDomain.RootKey)}
}

// Create stores a copy of key without its plaintext material.
func (r *MemoryRootKeyRepository) Create(_ context.Context, key *keysDomain.RootKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key.ID]; ok {
		return keysDomain.ErrStaleEpoch
	}
	for _, existing := range r.keys {
		if existing.Epoch == key.Epoch {
			return keysDomain.ErrStaleEpoch
		}
	}
	stored := *key
	stored.Key = nil
	stored.EncryptedKey = append([]byte(nil), key.EncryptedKey...)
	r.keys[key.ID] = &stored
	return nil
}

// MarkDeprecated records the demotion of a key.
func (r *MemoryRootKeyRepository) MarkDeprecated(
	_ context.Context,
	id uuid.UUID,
	deprecatedAt, overlapEndsAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok || key.IsPurged() {
		return keysDomain.ErrRootKeyNotFound
	}
	key.DeprecatedAt = &deprecatedAt
	key.OverlapEndsAt = &overlapEndsAt
	return nil
}

// MarkPurged records the purge and discards the stored ciphertext.
func (r *MemoryRootKeyRepository) MarkPurged(_ context.Context, id uuid.UUID, purgedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok {
		return keysDomain.ErrRootKeyNotFound
	}
	keysDomain.Zero(key.EncryptedKey)
	key.EncryptedKey = nil
	key.PurgedAt = &purgedAt
	return nil
}

// List returns copies of every stored key ordered by epoch ascending.
func (r *MemoryRootKeyRepository) List(_ context.Context) ([]*keysDomain.RootKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]*keysDomain.RootKey, 0, len(r.keys))
	for _, k := range r.keys {
		c := *k
		c.EncryptedKey = append([]byte(nil), k.EncryptedKey...)
		keys = append(keys, &c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Epoch < keys[j].Epoch })
	return keys, nil
}
