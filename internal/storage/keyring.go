package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "lavacar-cli"

// Keyring stores secrets in the OS keychain/credential manager.
// Keys are namespaced per environment so development and production
// sessions never overwrite each other.
type Keyring struct {
	namespace string
}

// NewKeyring creates a keyring-backed store for the given namespace
func NewKeyring(namespace string) *Keyring {
	return &Keyring{namespace: namespace}
}

func (k *Keyring) key(name string) string {
	return fmt.Sprintf("%s-%s", k.namespace, name)
}

func (k *Keyring) Get(_ context.Context, key string) (string, error) {
	v, err := keyring.Get(keyringService, k.key(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return v, nil
}

func (k *Keyring) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(keyringService, k.key(key), value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

func (k *Keyring) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := keyring.Delete(keyringService, k.key(key)); err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				continue // Already deleted
			}
			return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
		}
	}
	return nil
}
