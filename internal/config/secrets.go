package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const keyringService = "hitlchat"

// Keyring entry names for the two API keys.
const (
	SecretOpenAI = "openai"
	SecretArcade = "arcade"
)

// SecretNames lists the names accepted by the auth commands.
var SecretNames = []string{SecretOpenAI, SecretArcade}

// ResolveSecrets fills API keys that are still empty after file and env
// from the OS keyring. A missing keyring entry is not an error.
func (c *Config) ResolveSecrets() {
	fill := func(name string, dst *string) {
		if *dst != "" {
			return
		}
		v, err := GetSecret(name)
		if err != nil {
			slog.Debug("keyring lookup skipped", "secret", name, "error", err)
			return
		}
		*dst = v
	}
	fill(SecretOpenAI, &c.Provider.APIKey)
	fill(SecretArcade, &c.Arcade.APIKey)
}

func checkName(name string) error {
	for _, n := range SecretNames {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("unknown secret %q (want one of %v)", name, SecretNames)
}

// GetSecret reads a stored API key.
func GetSecret(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return keyring.Get(keyringService, name)
}

// SetSecret stores an API key in the OS keyring.
func SetSecret(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("empty value for secret %q", name)
	}
	if err := keyring.Set(keyringService, name, value); err != nil {
		return fmt.Errorf("store %s key: %w", name, err)
	}
	return nil
}

// DeleteSecret removes a stored API key. Deleting a missing key succeeds.
func DeleteSecret(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := keyring.Delete(keyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete %s key: %w", name, err)
	}
	return nil
}
