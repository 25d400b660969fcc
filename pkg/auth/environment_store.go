package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads a single account from FAVTHANKER_USERNAME,
// FAVTHANKER_COOKIE_A and FAVTHANKER_COOKIE_B
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account when username matches it or is empty
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUser := os.Getenv("FAVTHANKER_USERNAME")
	cookieA := os.Getenv("FAVTHANKER_COOKIE_A")
	cookieB := os.Getenv("FAVTHANKER_COOKIE_B")

	if envUser == "" || cookieA == "" || cookieB == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && !strings.EqualFold(username, envUser) {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     envUser,
		CookieA:      cookieA,
		CookieB:      cookieB,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment carries one
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
