package service

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"

	keysDomain "github.com/allisson/dominion/internal/keys/domain"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSService opens keepers that wrap root key material.
type KMSService interface {
	// OpenKeeper opens a keeper for the KMS key at keyURI.
	// Returns an error if the KMS provider URI is invalid or connection fails.
	OpenKeeper(ctx context.Context, keyURI string) (keysDomain.KMSKeeper, error)
}

// kmsService implements KMSService using gocloud.dev/secrets.
type kmsService struct{}

// NewKMSService creates a new KMS service instance.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a secrets.Keeper for keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (keysDomain.KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
