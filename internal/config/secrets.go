package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name passwords are stored under.
const KeyringService = "pgbrowse"

// Secrets looks up profile passwords.
type Secrets interface {
	Password(profile string) (string, error)
}

// Keyring stores profile passwords in the OS keyring.
type Keyring struct{}

// Password returns the stored password, or "" if none is stored.
func (Keyring) Password(profile string) (string, error) {
	pw, err := keyring.Get(KeyringService, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return pw, err
}

// SetPassword stores the password for a profile.
func (Keyring) SetPassword(profile, password string) error {
	return keyring.Set(KeyringService, profile, password)
}

// DeletePassword removes the password for a profile. Missing entries are not
// an error.
func (Keyring) DeletePassword(profile string) error {
	err := keyring.Delete(KeyringService, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
