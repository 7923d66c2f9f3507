package command

import (
	"fmt"
	"os"

	"github.com/chapool/wallet-core/internal/config"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

var ErrNoTerminal = errors.New("stdin is not a terminal")

// PromptSecret prompts for a secret on stderr and reads it from the terminal
// without echo.
func PromptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return "", errors.Wrapf(ErrNoTerminal, "cannot prompt for %q", prompt)
	}

	fmt.Fprint(os.Stderr, prompt)

	secret, err := term.ReadPassword(fd)
	if err != nil {
		return "", errors.Wrap(err, "failed to read secret from terminal")
	}

	fmt.Fprintln(os.Stderr)

	return string(secret), nil
}

// PromptNewSecret prompts twice and requires both entries to match.
func PromptNewSecret(prompt string, minLength int) (string, error) {
	secret, err := PromptSecret(prompt)
	if err != nil {
		return "", err
	}

	if len(secret) < minLength {
		return "", errors.Errorf("must be at least %d characters", minLength)
	}

	confirm, err := PromptSecret("Confirm: ")
	if err != nil {
		return "", err
	}

	if secret != confirm {
		return "", errors.New("entries do not match")
	}

	return secret, nil
}

// VaultPassword returns the configured vault password, prompting when none
// is configured.
func VaultPassword(cfg config.Vault) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	return PromptSecret("Vault password: ")
}
