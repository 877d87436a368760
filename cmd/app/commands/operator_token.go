package commands

import (
	"fmt"
	"io"
	"log/slog"
)

// OperatorTokenGenerator issues operator bearer tokens with their stored hash.
type OperatorTokenGenerator interface {
	Generate() (plain string, hash string, err error)
}

// RunCreateOperatorToken prints a new operator token once together with the
// OPERATOR_TOKEN_HASH value the server compares it against.
func RunCreateOperatorToken(
	tokens OperatorTokenGenerator,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	plain, hash, err := tokens.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate operator token: %w", err)
	}

	if format == FormatJSON {
		if err := writeJSON(writer, map[string]string{
			"operator_token":      plain,
			"operator_token_hash": hash,
		}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(writer, "# Operator token, shown once. Send it as: Authorization: Bearer <token>")
		_, _ = fmt.Fprintf(writer, "OPERATOR_TOKEN=%s\n", plain)
		_, _ = fmt.Fprintln(writer)
		_, _ = fmt.Fprintln(writer, "# Server configuration")
		_, _ = fmt.Fprintf(writer, "OPERATOR_TOKEN_HASH='%s'\n", hash)
	}

	logger.Info("operator token created")
	return nil
}
