package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize     = 32
	keySize      = 32
	iterations   = 100000
	vaultExt     = ".enc"
	vaultVersion = 2
)

// CookieVault keeps each operator's cookie pair in its own AES-GCM sealed
// file under dir. Every write derives a fresh PBKDF2 key from a new salt.
type CookieVault struct {
	dir        string
	passphrase string
	mu         sync.RWMutex
}

// vaultFile is the on-disk envelope; only Sealed carries the cookies
type vaultFile struct {
	Version   int       `json:"version"`
	Salt      string    `json:"salt"`
	Sealed    string    `json:"sealed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCookieVault opens (creating if needed) the vault directory
func NewCookieVault(dir string) (*CookieVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	v := &CookieVault{dir: dir}
	passphrase, err := v.loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	v.passphrase = passphrase
	return v, nil
}

// Store seals the account's cookie pair, replacing the operator's previous pair
func (v *CookieVault) Store(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	path, err := v.pathFor(account.Username)
	if err != nil {
		return err
	}

	plain, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal cookie pair: %w", err)
	}
	salt, sealed, err := seal(v.passphrase, plain)
	if err != nil {
		return fmt.Errorf("failed to seal cookie pair: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Version:   vaultVersion,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Sealed:    base64.StdEncoding.EncodeToString(sealed),
		UpdatedAt: account.LastModified,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault file: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Retrieve opens the operator's sealed pair
func (v *CookieVault) Retrieve(username string) (*Account, error) {
	path, err := v.pathFor(username)
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.open(path)
}

// List opens every operator's pair in the vault
func (v *CookieVault) List() ([]*Account, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(v.dir, "*"+vaultExt))
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(paths))
	for _, path := range paths {
		account, err := v.open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes the operator's sealed pair
func (v *CookieVault) Delete(username string) error {
	path, err := v.pathFor(username)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return err
	}
	return nil
}

// Exists reports whether the operator's pair can be opened
func (v *CookieVault) Exists(username string) bool {
	account, err := v.Retrieve(username)
	return err == nil && account != nil
}

func (v *CookieVault) pathFor(username string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidCredentials
	}
	return filepath.Join(v.dir, name+vaultExt), nil
}

func (v *CookieVault) open(path string) (*Account, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}

	var file vaultFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vault file: %w", err)
	}
	if file.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported vault version %d", file.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed pair: %w", err)
	}

	plain, err := unseal(v.passphrase, salt, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal cookie pair: %w", err)
	}
	var account Account
	if err := json.Unmarshal(plain, &account); err != nil {
		return nil, fmt.Errorf("failed to parse cookie pair: %w", err)
	}
	return &account, nil
}

// loadPassphrase prefers FAVTHANKER_PASSPHRASE, then a generated passphrase
// kept beside the sealed files
func (v *CookieVault) loadPassphrase() (string, error) {
	if pass := os.Getenv("FAVTHANKER_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	file := filepath.Join(v.dir, ".passphrase")
	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(file, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func seal(passphrase string, plain []byte) (salt, sealed []byte, err error) {
	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	return salt, gcm.Seal(nonce, nonce, plain, nil), nil
}

func unseal(passphrase string, salt, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed data too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
