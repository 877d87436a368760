package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// maxRetiredWindows bounds the retired epoch history kept in memory.
const maxRetiredWindows = 32

// KeyRing is the versioned register of root keys: an epoch counter and a key map
// guarded by one reader-writer lock. Rotation swaps current and deprecated in a
// single write-locked step so readers always see at least one valid key.
type KeyRing struct {
	mu         sync.RWMutex
	lastEpoch  uint64
	keys       map[uint64]*RootKey
	current    uint64
	deprecated uint64
	retired    []EpochWindow
}

// NewKeyRing creates an empty key ring.
func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[uint64]*RootKey)}
}

// Restore rebuilds the ring from stored keys. Exactly one non-deprecated, non-purged
// key must be present; purged keys only contribute their retired windows.
func (r *KeyRing) Restore(keys []*RootKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := make([]*RootKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Epoch < sorted[j].Epoch })

	r.keys = make(map[uint64]*RootKey)
	r.current, r.deprecated, r.lastEpoch = 0, 0, 0
	r.retired = nil

	for _, k := range sorted {
		r.lastEpoch = max(r.lastEpoch, k.Epoch)
		switch {
		case k.IsPurged():
			r.retire(k)
		case k.IsDeprecated():
			if r.deprecated != 0 {
				// an older deprecated key left behind by a crash is treated as retired
				r.retire(r.keys[r.deprecated])
				delete(r.keys, r.deprecated)
			}
			r.keys[k.Epoch] = k
			r.deprecated = k.Epoch
		default:
			if r.current != 0 {
				return fmt.Errorf("%w: epochs %d and %d are both current", ErrStaleEpoch, r.current, k.Epoch)
			}
			r.keys[k.Epoch] = k
			r.current = k.Epoch
		}
	}

	if r.current == 0 {
		return ErrNoCurrentKey
	}
	return nil
}

// Activate installs the first key of an empty ring.
func (r *KeyRing) Activate(key *RootKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != 0 {
		return fmt.Errorf("%w: ring already has epoch %d", ErrStaleEpoch, r.current)
	}
	if key.Epoch <= r.lastEpoch {
		return ErrStaleEpoch
	}
	r.keys[key.Epoch] = key
	r.current = key.Epoch
	r.lastEpoch = key.Epoch
	return nil
}

// NextEpoch returns the epoch the next installed key must carry.
func (r *KeyRing) NextEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastEpoch + 1
}

// CanRotate returns ErrRotationInProgress while a deprecated key is still inside its overlap window.
func (r *KeyRing) CanRotate(now time.Time) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canRotate(now)
}

func (r *KeyRing) canRotate(now time.Time) error {
	if r.current == 0 {
		return ErrNoCurrentKey
	}
	if r.deprecated != 0 && r.keys[r.deprecated].ValidatesAt(now) {
		return ErrRotationInProgress
	}
	return nil
}

// Rotate makes key current and demotes the previous current key to deprecated until
// now+overlap. An overdue deprecated key is purged first. Returns the demoted key.
func (r *KeyRing) Rotate(key *RootKey, now time.Time, overlap time.Duration) (*RootKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.canRotate(now); err != nil {
		return nil, err
	}
	if key.Epoch <= r.lastEpoch {
		return nil, ErrStaleEpoch
	}
	if r.deprecated != 0 {
		r.purgeDeprecated(now)
	}

	previous := r.keys[r.current]
	deprecatedAt := now
	overlapEndsAt := now.Add(overlap)
	previous.DeprecatedAt = &deprecatedAt
	previous.OverlapEndsAt = &overlapEndsAt

	r.keys[key.Epoch] = key
	r.deprecated = previous.Epoch
	r.current = key.Epoch
	r.lastEpoch = key.Epoch

	return previous, nil
}

// PurgeExpired zeroes and drops the deprecated key once its overlap window has closed.
// Returns the purged key (without material) or nil when nothing was due.
func (r *KeyRing) PurgeExpired(now time.Time) *RootKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deprecated == 0 || r.keys[r.deprecated].ValidatesAt(now) {
		return nil
	}
	return r.purgeDeprecated(now)
}

func (r *KeyRing) purgeDeprecated(now time.Time) *RootKey {
	key := r.keys[r.deprecated]
	Zero(key.Key)
	key.Key = nil
	purgedAt := now
	key.PurgedAt = &purgedAt

	r.retire(key)
	delete(r.keys, r.deprecated)
	r.deprecated = 0
	return key
}

func (r *KeyRing) retire(key *RootKey) {
	retiredAt := key.CreatedAt
	if key.DeprecatedAt != nil {
		retiredAt = *key.DeprecatedAt
	}
	r.retired = append(r.retired, EpochWindow{
		Epoch:       key.Epoch,
		ActivatedAt: key.CreatedAt,
		RetiredAt:   retiredAt,
	})
	if len(r.retired) > maxRetiredWindows {
		r.retired = r.retired[len(r.retired)-maxRetiredWindows:]
	}
}

// View runs fn under the read lock with the current key and the deprecated key, if
// any. fn must not retain the key slices.
func (r *KeyRing) View(fn func(current, deprecated *RootKey) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == 0 {
		return ErrNoCurrentKey
	}
	var deprecated *RootKey
	if r.deprecated != 0 {
		deprecated = r.keys[r.deprecated]
	}
	return fn(r.keys[r.current], deprecated)
}

// RetiredEpochAt returns the retired epoch whose activity window contains issuedAt.
// A deprecated key whose overlap window has closed but is not yet purged counts as retired.
func (r *KeyRing) RetiredEpochAt(issuedAt, now time.Time) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.deprecated != 0 {
		k := r.keys[r.deprecated]
		if !k.ValidatesAt(now) {
			w := EpochWindow{Epoch: k.Epoch, ActivatedAt: k.CreatedAt, RetiredAt: *k.DeprecatedAt}
			if w.Contains(issuedAt) {
				return k.Epoch, true
			}
		}
	}
	for i := len(r.retired) - 1; i >= 0; i-- {
		if r.retired[i].Contains(issuedAt) {
			return r.retired[i].Epoch, true
		}
	}
	return 0, false
}

// Status describes the ring without exposing key material.
type Status struct {
	CurrentEpoch          uint64        `json:"current_epoch"`
	CurrentFingerprint    string        `json:"current_fingerprint"`
	CurrentCreatedAt      time.Time     `json:"current_created_at"`
	DeprecatedEpoch       *uint64       `json:"deprecated_epoch,omitempty"`
	DeprecatedFingerprint string        `json:"deprecated_fingerprint,omitempty"`
	OverlapEndsAt         *time.Time    `json:"overlap_ends_at,omitempty"`
	Retired               []EpochWindow `json:"retired"`
}

// Status returns a snapshot of the ring.
func (r *KeyRing) Status() (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == 0 {
		return Status{}, ErrNoCurrentKey
	}
	current := r.keys[r.current]
	status := Status{
		CurrentEpoch:       current.Epoch,
		CurrentFingerprint: current.Fingerprint(),
		CurrentCreatedAt:   current.CreatedAt,
		Retired:            append([]EpochWindow{}, r.retired...),
	}
	if r.deprecated != 0 {
		deprecated := r.keys[r.deprecated]
		epoch := deprecated.Epoch
		status.DeprecatedEpoch = &epoch
		status.DeprecatedFingerprint = deprecated.Fingerprint()
		status.OverlapEndsAt = deprecated.OverlapEndsAt
	}
	return status, nil
}

// Close zeroes every key held by the ring.
func (r *KeyRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.keys {
		Zero(k.Key)
		k.Key = nil
	}
	r.keys = make(map[uint64]*RootKey)
	r.current, r.deprecated = 0, 0
}
