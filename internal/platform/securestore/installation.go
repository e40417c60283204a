package securestore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	installationFile = "installation-id"
	saltFile         = "key-salt"
)

// InstallationID returns the id of this installation, creating it on first
// use. Sealers bind ciphertexts to it so a copied store does not open
// elsewhere with the same key.
func InstallationID(dir string) (string, error) {
	p := filepath.Join(dir, installationFile)

	data, err := os.ReadFile(p)
	if err == nil {
		id, perr := uuid.Parse(strings.TrimSpace(string(data)))
		if perr != nil {
			return "", fmt.Errorf("corrupt installation id: %w", perr)
		}
		return id.String(), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read installation id: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(p, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write installation id: %w", err)
	}
	return id, nil
}

// KeySalt returns the random salt used to derive the passphrase key,
// creating it on first use. Losing it makes existing sealed values unreadable.
func KeySalt(dir string) ([]byte, error) {
	p := filepath.Join(dir, saltFile)

	data, err := os.ReadFile(p)
	if err == nil {
		salt, derr := hex.DecodeString(strings.TrimSpace(string(data)))
		if derr != nil || len(salt) < MinSaltLength {
			return nil, errors.New("corrupt key salt")
		}
		return salt, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key salt: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	salt := make([]byte, MinSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate key salt: %w", err)
	}
	if err := os.WriteFile(p, []byte(hex.EncodeToString(salt)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key salt: %w", err)
	}
	return salt, nil
}
