package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/service/backend"
)

const (
	serviceName = "prreminder"

	// TokenKey is the keyring item holding the bearer token.
	TokenKey = "auth_token"
)

// Keyring is a backend.TokenStore kept in the OS keyring. It is used by the
// CLI commands, which have no browser session.
type Keyring struct {
	mu   sync.Mutex
	ring keyring.Keyring
}

var _ backend.TokenStore = &Keyring{}

// Open opens the system keyring, falling back to an encrypted file under
// the user's config directory.
func Open() (*Keyring, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve config directory")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, serviceName, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open keyring")
	}

	return New(ring), nil
}

// New wraps an opened keyring.
func New(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// Token returns the stored token, or "" when none is stored.
func (k *Keyring) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	item, err := k.ring.Get(TokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", goerr.Wrap(err, "failed to get token from keyring")
	}

	return string(item.Data), nil
}

func (k *Keyring) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return k.ClearToken(ctx)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ring.Set(keyring.Item{
		Key:   TokenKey,
		Data:  []byte(token),
		Label: "PR Reminder API token",
	}); err != nil {
		return goerr.Wrap(err, "failed to set token in keyring")
	}

	return nil
}

// ClearToken removes the stored token. Clearing an absent token is not an
// error.
func (k *Keyring) ClearToken(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ring.Remove(TokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return goerr.Wrap(err, "failed to remove token from keyring")
	}

	return nil
}
