package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain.
	KeyringService = "codegraph"
)

// KeyringManager handles secure credential storage in the OS keychain.
// Unlike a single-item store, it addresses secrets by name so the same
// manager can hold the GitHub token and each LLM provider's key.
type KeyringManager struct {
	logger *slog.Logger
}

func NewKeyringManager() *KeyringManager {
	return &KeyringManager{logger: slog.Default().With("component", "keyring")}
}

// SetSecret stores a named secret (e.g. "openai_api_key", "github_token")
// in the OS keychain: Keychain Access on macOS, Credential Manager on
// Windows, Secret Service (libsecret) on Linux.
func (km *KeyringManager) SetSecret(name, value string) error {
	if value == "" {
		return fmt.Errorf("secret %q cannot be empty", name)
	}
	if err := keyring.Set(KeyringService, name, value); err != nil {
		km.logger.Error("failed to save secret to keychain", "name", name, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("secret saved to keychain", "name", name)
	return nil
}

// GetSecret retrieves a named secret. A missing secret is not an error; it
// returns an empty string so callers can fall through to the next source.
func (km *KeyringManager) GetSecret(name string) (string, error) {
	value, err := keyring.Get(KeyringService, name)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to read secret from keychain", "name", name, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return value, nil
}

// DeleteSecret removes a named secret.
func (km *KeyringManager) DeleteSecret(name string) error {
	err := keyring.Delete(KeyringService, name)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable reports whether the OS keychain backend can be reached at
// all (it is absent on headless CI runners).
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "codegraph-availability-probe")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// KeySourceInfo describes where a credential value came from.
type KeySourceInfo struct {
	Source      string // "keychain", "config", "env", "env_file", "none"
	Secure      bool
	Recommended string
}

// SourceForEnv reports the precedence source for a credential given its
// environment variable name and keychain item name.
func (km *KeyringManager) SourceForEnv(envVar, keyringName string) KeySourceInfo {
	if os.Getenv(envVar) != "" {
		return KeySourceInfo{Source: "env", Secure: true, Recommended: "using environment variable"}
	}
	if v, _ := km.GetSecret(keyringName); v != "" {
		return KeySourceInfo{Source: "keychain", Secure: true, Recommended: "stored in OS keychain"}
	}
	if _, err := os.Stat(".env"); err == nil {
		return KeySourceInfo{Source: "env_file", Secure: false, Recommended: "using .env file"}
	}
	return KeySourceInfo{Source: "none", Secure: false, Recommended: "no credential configured"}
}

// MaskSecret masks a secret for display, keeping the first 7 and last 4
// characters visible.
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:7], secret[len(secret)-4:])
}
