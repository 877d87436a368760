package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/dominion/internal/entropy"
	keysDomain "github.com/allisson/dominion/internal/keys/domain"
	keysService "github.com/allisson/dominion/internal/keys/service"
)

// RunCreateRootKey generates a 32-byte root key for ROOT_KEY. With kmsKeyURI the key
// is encrypted by the KMS key and printed as base64 ciphertext, otherwise it is printed
// as unpadded base64url plaintext. Key material is zeroed after encoding.
//
// For local development use kmsKeyURI="base64key://<32-byte-base64-key>". Never use
// base64key:// in production.
func RunCreateRootKey(
	ctx context.Context,
	kmsService keysService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	kmsKeyURI string,
) error {
	var keeper keysDomain.KMSKeeper
	if kmsKeyURI != "" {
		var err error
		keeper, err = kmsService.OpenKeeper(ctx, kmsKeyURI)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
			}
		}()
	}

	codec := keysService.NewRootKeyCodec(keeper, entropy.NewValidator())
	rootKey, err := codec.Generate()
	if err != nil {
		return err
	}
	defer keysDomain.Zero(rootKey)

	fingerprint := (&keysDomain.RootKey{Key: rootKey}).Fingerprint()

	if keeper == nil {
		logger.Warn("root key printed in plaintext, pass --kms-key-uri to wrap it")
		_, _ = fmt.Fprintln(writer, "# Root Key (plaintext)")
		_, _ = fmt.Fprintln(writer, "# Copy this to your .env file or secrets manager")
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintf(writer, "ROOT_KEY=\"%s\"\n", keysService.EncodeRootKey(rootKey))
		_, _ = fmt.Fprintf(writer, "# fingerprint: %s\n", fingerprint)
		return nil
	}

	ciphertext, err := codec.Wrap(ctx, rootKey)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(writer, "# Root Key (KMS mode)")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	_, _ = fmt.Fprintf(writer, "ROOT_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(ciphertext))
	_, _ = fmt.Fprintf(writer, "# fingerprint: %s\n", fingerprint)

	logger.Info("root key generated", slog.String("fingerprint", fingerprint))
	return nil
}
