package remotedesktop

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/drblury/portalflow/internal/jsoncodec"
)

// TokenStore persists a remote desktop restore token between runs so a
// previously granted device selection can be restored without prompting
// the user again. Tokens are single-use: the portal hands a fresh one
// back on every successful Start.
type TokenStore struct {
	path string
}

// NewTokenStore returns a store backed by the JSON file at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the backing file path.
func (s *TokenStore) Path() string { return s.path }

type storedToken struct {
	RestoreToken string    `json:"restore_token"`
	SavedAt      time.Time `json:"saved_at"`
}

// Load reads the stored token. A missing file is not an error and yields
// an empty token.
func (s *TokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var stored storedToken
	if err := jsoncodec.Unmarshal(data, &stored); err != nil {
		return "", err
	}
	return stored.RestoreToken, nil
}

// Save writes token to the backing file, creating parent directories as
// needed. The file is user-readable only; the token grants input access.
func (s *TokenStore) Save(token string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := jsoncodec.MarshalIndent(storedToken{
		RestoreToken: token,
		SavedAt:      time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the stored token. Removing an absent file is not an error.
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
