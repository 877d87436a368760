package app

import (
	"context"
	"fmt"

	"github.com/allisson/dominion/internal/database"
	"github.com/allisson/dominion/internal/entropy"
	forgeDomain "github.com/allisson/dominion/internal/forge/domain"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	keysRepository "github.com/allisson/dominion/internal/keys/repository"
	keysService "github.com/allisson/dominion/internal/keys/service"
	keysUseCase "github.com/allisson/dominion/internal/keys/usecase"
)

// Key store drivers.
const (
	KeyStoreMemory   = "memory"
	KeyStorePostgres = "postgres"
	KeyStoreMySQL    = "mysql"
)

// KMSService returns the service opening KMS keepers.
func (c *Container) KMSService() keysService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = keysService.NewKMSService()
	})
	return c.kmsService
}

// KMSKeeper returns the keeper for KMS_KEY_URI, or nil when no URI is configured.
func (c *Container) KMSKeeper(ctx context.Context) (keysDomain.KMSKeeper, error) {
	c.kmsKeeperInit.Do(func() {
		if c.config.KMSKeyURI == "" {
			return
		}
		keeper, err := c.KMSService().OpenKeeper(ctx, c.config.KMSKeyURI)
		if err != nil {
			c.storeErr("kmsKeeper", err)
			return
		}
		c.kmsKeeper = keeper
		c.onShutdown("kms keeper", keeper.Close)
	})
	return c.kmsKeeper, c.loadErr("kmsKeeper")
}

// ProviderRegistry returns the provider allow-list loaded from FORGE_PROVIDERS.
func (c *Container) ProviderRegistry() (*keysDomain.ProviderRegistry, error) {
	c.providerRegistryInit.Do(func() {
		set, err := keysDomain.NewProviderSet(c.config.Providers)
		if err != nil {
			c.storeErr("providerRegistry", fmt.Errorf("invalid provider allow-list: %w", err))
			return
		}
		c.providerRegistry = keysDomain.NewProviderRegistry(set)
	})
	return c.providerRegistry, c.loadErr("providerRegistry")
}

// KeyMaterial returns the key material serving derivation. Its ring is empty until
// RootKeyUseCase.Bootstrap runs.
func (c *Container) KeyMaterial() (*keysService.KeyMaterial, error) {
	c.keyMaterialInit.Do(func() {
		registry, err := c.ProviderRegistry()
		if err != nil {
			c.storeErr("keyMaterial", err)
			return
		}
		version := c.config.ProtocolVersion
		if version == "" {
			version = forgeDomain.ProtocolVersion
		}
		c.keyMaterial = keysService.NewKeyMaterial(
			keysDomain.NewKeyRing(),
			registry,
			keysService.NewKeyDerivationService(),
			version,
		)
	})
	return c.keyMaterial, c.loadErr("keyMaterial")
}

// RootKeyRepository returns the root key store selected by KEY_STORE.
func (c *Container) RootKeyRepository() (keysUseCase.RootKeyRepository, error) {
	c.rootKeyRepoInit.Do(func() {
		repo, err := c.initRootKeyRepository()
		if err != nil {
			c.storeErr("rootKeyRepo", err)
			return
		}
		c.rootKeyRepo = repo
	})
	return c.rootKeyRepo, c.loadErr("rootKeyRepo")
}

// RootKeyUseCase returns the root key lifecycle use case.
func (c *Container) RootKeyUseCase(ctx context.Context) (keysUseCase.RootKeyUseCase, error) {
	c.rootKeyUseCaseInit.Do(func() {
		useCase, err := c.initRootKeyUseCase(ctx)
		if err != nil {
			c.storeErr("rootKeyUseCase", err)
			return
		}
		c.rootKeyUseCase = useCase
	})
	return c.rootKeyUseCase, c.loadErr("rootKeyUseCase")
}

func (c *Container) initRootKeyRepository() (keysUseCase.RootKeyRepository, error) {
	switch c.config.KeyStore {
	case KeyStoreMemory, "":
		c.Logger().Warn("root keys are kept in memory only, tokens will not survive a restart")
		return keysRepository.NewMemoryRootKeyRepository(), nil
	case KeyStorePostgres, KeyStoreMySQL:
		if c.config.KeyStore != c.config.DBDriver {
			return nil, fmt.Errorf("key store %q does not match database driver %q",
				c.config.KeyStore, c.config.DBDriver)
		}
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for root key repository: %w", err)
		}
		if c.config.KeyStore == KeyStoreMySQL {
			return keysRepository.NewMySQLRootKeyRepository(db), nil
		}
		return keysRepository.NewPostgreSQLRootKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported key store: %s", c.config.KeyStore)
	}
}

func (c *Container) initRootKeyUseCase(ctx context.Context) (keysUseCase.RootKeyUseCase, error) {
	keeper, err := c.KMSKeeper(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper for root keys: %w", err)
	}
	persistent := c.config.KeyStore == KeyStorePostgres || c.config.KeyStore == KeyStoreMySQL
	if keeper == nil && persistent {
		return nil, fmt.Errorf("%w: KMS_KEY_URI is required for key store %q",
			keysDomain.ErrInvalidRootKey, c.config.KeyStore)
	}
	repo, err := c.RootKeyRepository()
	if err != nil {
		return nil, err
	}
	material, err := c.KeyMaterial()
	if err != nil {
		return nil, err
	}

	var txManager database.TxManager
	if persistent {
		txm, err := c.TxManager()
		if err != nil {
			return nil, err
		}
		txManager = txm
	}

	return keysUseCase.NewRootKeyUseCase(
		txManager,
		repo,
		keysService.NewRootKeyCodec(keeper, entropy.NewValidator()),
		material,
		c.Clock(),
		c.Logger(),
		keysUseCase.Config{
			Overlap:     c.config.RotationOverlap,
			ImportedKey: c.config.RootKey,
		},
	), nil
}
