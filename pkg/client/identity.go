package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Identity is the durable client-side identity: an opaque id generated on
// first run plus the last chosen display name. It survives reconnects and
// process restarts but not deletion of its file; a wipe produces a fresh
// identity indistinguishable from a new participant.
type Identity struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName,omitempty"`
}

// DefaultIdentityPath returns the per-user identity file location.
func DefaultIdentityPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve config dir: %w", err)
	}
	return filepath.Join(dir, "quizhub", "identity.json"), nil
}

// LoadOrCreateIdentity reads the identity at path, generating and
// persisting a new one if the file does not exist.
func LoadOrCreateIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var id Identity
		if err := json.Unmarshal(data, &id); err == nil && id.ClientID != "" {
			return &id, nil
		}
		// Corrupt file: fall through and mint a fresh identity.
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read identity file: %w", err)
	}

	id := &Identity{ClientID: uuid.New().String()}
	if err := id.Save(path); err != nil {
		return nil, err
	}
	return id, nil
}

// Save writes the identity to path, creating parent directories as
// needed.
func (id *Identity) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create identity dir: %w", err)
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write identity file: %w", err)
	}
	return nil
}
