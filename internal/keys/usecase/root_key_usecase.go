// Package usecase implements the root key lifecycle: bootstrap, rotation and purge.
//
// Keys are persisted through a RootKeyRepository (wrapped by KMS when a keeper is
// configured) and served to the signing path through KeyMaterial's ring. Persistence
// always happens before the in-memory swap so a crash never leaves the ring ahead of
// the store.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/allisson/dominion/internal/database"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	keysService "github.com/allisson/dominion/internal/keys/service"
)

// Config holds root key lifecycle settings.
type Config struct {
	// Overlap is how long a deprecated key keeps validating tokens.
	Overlap time.Duration
	// ImportedKey is optional operator-supplied material used when the store is empty.
	ImportedKey string
}

type rootKeyUseCase struct {
	txManager database.TxManager
	repo      RootKeyRepository
	codec     *keysService.RootKeyCodec
	material  *keysService.KeyMaterial
	clock     clockwork.Clock
	logger    *slog.Logger
	cfg       Config
}

// NewRootKeyUseCase creates the root key use case. txManager may be nil for stores
// without transactions.
func NewRootKeyUseCase(
	txManager database.TxManager,
	repo RootKeyRepository,
	codec *keysService.RootKeyCodec,
	material *keysService.KeyMaterial,
	clock clockwork.Clock,
	logger *slog.Logger,
	cfg Config,
) RootKeyUseCase {
	return &rootKeyUseCase{
		txManager: txManager,
		repo:      repo,
		codec:     codec,
		material:  material,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

func (u *rootKeyUseCase) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u.txManager == nil {
		return fn(ctx)
	}
	return u.txManager.WithTx(ctx, fn)
}

// Bootstrap loads or creates the root key set.
func (u *rootKeyUseCase) Bootstrap(ctx context.Context) error {
	keys, err := u.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list root keys: %w", err)
	}

	if len(keys) == 0 {
		return u.createInitialKey(ctx)
	}

	for _, k := range keys {
		if k.IsPurged() || len(k.Key) > 0 {
			continue
		}
		k.Key, err = u.codec.Unwrap(ctx, k.EncryptedKey)
		if err != nil {
			for _, loaded := range keys {
				keysDomain.Zero(loaded.Key)
			}
			return fmt.Errorf("failed to unwrap root key epoch %d: %w", k.Epoch, err)
		}
	}

	if err := u.material.Ring().Restore(keys); err != nil {
		return fmt.Errorf("failed to restore key ring: %w", err)
	}
	if u.cfg.ImportedKey != "" {
		u.logger.Warn("root key store is not empty, ignoring imported root key")
	}

	status, err := u.material.Ring().Status()
	if err != nil {
		return err
	}
	u.logger.Info("root keys loaded",
		slog.Uint64("current_epoch", status.CurrentEpoch),
		slog.String("fingerprint", status.CurrentFingerprint),
		slog.Int("retired_epochs", len(status.Retired)),
	)

	// purge anything whose overlap window closed while the process was down
	_, err = u.PurgeExpired(ctx)
	return err
}

func (u *rootKeyUseCase) createInitialKey(ctx context.Context) error {
	source := "generated"
	var (
		material []byte
		err      error
	)
	if u.cfg.ImportedKey != "" {
		source = "imported"
		material, err = u.codec.Import(ctx, u.cfg.ImportedKey)
	} else {
		material, err = u.codec.Generate()
	}
	if err != nil {
		return err
	}

	encrypted, err := u.codec.Wrap(ctx, material)
	if err != nil {
		keysDomain.Zero(material)
		return err
	}

	key := &keysDomain.RootKey{
		ID:           uuid.Must(uuid.NewV7()),
		Epoch:        u.material.Ring().NextEpoch(),
		Key:          material,
		EncryptedKey: encrypted,
		CreatedAt:    u.clock.Now().UTC(),
	}
	if err := u.repo.Create(ctx, key); err != nil {
		keysDomain.Zero(material)
		return fmt.Errorf("failed to store root key: %w", err)
	}
	if err := u.material.Ring().Activate(key); err != nil {
		return err
	}

	u.logger.Info("root key created",
		slog.Uint64("epoch", key.Epoch),
		slog.String("fingerprint", key.Fingerprint()),
		slog.String("source", source),
	)
	return nil
}

// Rotate generates a new key, persists the swap, then makes it current.
func (u *rootKeyUseCase) Rotate(ctx context.Context) (*keysDomain.Rotation, error) {
	if _, err := u.PurgeExpired(ctx); err != nil {
		return nil, err
	}

	now := u.clock.Now().UTC()
	ring := u.material.Ring()
	if err := ring.CanRotate(now); err != nil {
		return nil, err
	}

	previousEpoch, previousID, err := u.material.CurrentRootID()
	if err != nil {
		return nil, err
	}

	material, err := u.codec.Generate()
	if err != nil {
		return nil, err
	}
	encrypted, err := u.codec.Wrap(ctx, material)
	if err != nil {
		keysDomain.Zero(material)
		return nil, err
	}

	key := &keysDomain.RootKey{
		ID:           uuid.Must(uuid.NewV7()),
		Epoch:        ring.NextEpoch(),
		Key:          material,
		EncryptedKey: encrypted,
		CreatedAt:    now,
	}
	overlapEndsAt := now.Add(u.cfg.Overlap)

	err = u.withTx(ctx, func(ctx context.Context) error {
		if err := u.repo.Create(ctx, key); err != nil {
			return err
		}
		return u.repo.MarkDeprecated(ctx, previousID, now, overlapEndsAt)
	})
	if err != nil {
		keysDomain.Zero(material)
		return nil, fmt.Errorf("failed to persist rotation: %w", err)
	}

	if _, err := u.material.Rotate(key, now, u.cfg.Overlap); err != nil {
		return nil, err
	}

	u.logger.Info("root key rotated",
		slog.Uint64("previous_epoch", previousEpoch),
		slog.Uint64("new_epoch", key.Epoch),
		slog.String("fingerprint", key.Fingerprint()),
		slog.Time("overlap_ends_at", overlapEndsAt),
	)

	return &keysDomain.Rotation{
		PreviousEpoch:  previousEpoch,
		PreviousID:     previousID,
		NewEpoch:       key.Epoch,
		NewID:          key.ID,
		NewFingerprint: key.Fingerprint(),
		RotatedAt:      now,
		OverlapEndsAt:  overlapEndsAt,
	}, nil
}

// PurgeExpired destroys an overdue deprecated key and records the purge.
func (u *rootKeyUseCase) PurgeExpired(ctx context.Context) (*keysDomain.RootKey, error) {
	purged := u.material.Ring().PurgeExpired(u.clock.Now().UTC())
	if purged == nil {
		return nil, nil
	}

	if err := u.repo.MarkPurged(ctx, purged.ID, *purged.PurgedAt); err != nil {
		return purged, fmt.Errorf("failed to record purge of epoch %d: %w", purged.Epoch, err)
	}

	u.logger.Info("deprecated root key purged", slog.Uint64("epoch", purged.Epoch))
	return purged, nil
}

// Status returns the ring status.
func (u *rootKeyUseCase) Status(ctx context.Context) (keysDomain.Status, error) {
	return u.material.Ring().Status()
}
