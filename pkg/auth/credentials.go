package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Account is a persisted login: the operator's username and the site's session cookie pair.
// Rotations counts how often the site has issued the operator a new pair.
type Account struct {
	Username     string    `json:"username"`
	CookieA      string    `json:"cookie_a"`
	CookieB      string    `json:"cookie_b"`
	LastModified time.Time `json:"last_modified"`
	RotatedAt    time.Time `json:"rotated_at"`
	Rotations    int       `json:"rotations"`
}

// Validate checks that the account can be used to resume a session
func (a *Account) Validate() error {
	if a == nil || a.Username == "" {
		return errors.New("username is required")
	}
	if a.CookieA == "" || a.CookieB == "" {
		return errors.New("both session cookies are required")
	}
	return nil
}

// SamePair reports whether both accounts hold the same cookie pair
func (a *Account) SamePair(other *Account) bool {
	return a != nil && other != nil && a.CookieA == other.CookieA && a.CookieB == other.CookieB
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keychain, the cookie vault
// and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	vault, err := NewCookieVault(filepath.Join(configDir, "cookies"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie vault: %w", err)
	}
	stores = append(stores, vault, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them. A pair
// that differs from the stored one counts as a rotation.
func (m *Manager) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	now := time.Now()
	account.LastModified = now
	if prev, err := m.Retrieve(account.Username); err == nil {
		account.Rotations = prev.Rotations
		account.RotatedAt = prev.RotatedAt
		if !account.SamePair(prev) {
			account.Rotations++
			account.RotatedAt = now
		}
	} else {
		account.Rotations = 0
		account.RotatedAt = now
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault returns the most recently stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return accounts[0], nil
}

// List returns all stored accounts, most recently modified first
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			key := strings.ToLower(account.Username)
			if existing, ok := byName[key]; !ok || account.LastModified.After(existing.LastModified) {
				byName[key] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastModified.After(result[j].LastModified)
	})
	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// ConfigDir returns the per-user configuration directory, creating it if needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "favthanker")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "favthanker")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "favthanker")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "favthanker")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount creates a copy of the account with the cookies masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		Username:     account.Username,
		CookieA:      maskString(account.CookieA),
		CookieB:      maskString(account.CookieB),
		LastModified: account.LastModified,
		RotatedAt:    account.RotatedAt,
		Rotations:    account.Rotations,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
