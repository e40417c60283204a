package securestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

var testSalt = []byte("0123456789abcdef")

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "secure")
	sealer, err := NewChaChaSealer("passphrase", testSalt, "install-1")
	require.NoError(t, err)
	store, err := NewFileStore(dir, sealer)
	require.NoError(t, err)
	return store, dir
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		store, _ := newTestFileStore(t)

		require.NoError(t, store.Set(ctx, "backend_token", "tok-1"))
		v, ok, err := store.Get(ctx, "backend_token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tok-1", v)

		require.NoError(t, store.Set(ctx, "backend_token", "tok-2"))
		v, _, _ = store.Get(ctx, "backend_token")
		assert.Equal(t, "tok-2", v)

		require.NoError(t, store.Delete(ctx, "backend_token"))
		_, ok, err = store.Get(ctx, "backend_token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete missing key", func(t *testing.T) {
		store, _ := newTestFileStore(t)
		assert.NoError(t, store.Delete(ctx, "backend_token"))
		assert.NoError(t, store.Delete(ctx, "backend_token"))
	})

	t.Run("value is not stored in clear", func(t *testing.T) {
		store, dir := newTestFileStore(t)
		require.NoError(t, store.Set(ctx, "backend_token", "plain-secret"))

		raw, err := os.ReadFile(filepath.Join(dir, "backend_token.sealed"))
		require.NoError(t, err)
		assert.False(t, strings.Contains(string(raw), "plain-secret"))
	})

	t.Run("owner only permissions", func(t *testing.T) {
		store, dir := newTestFileStore(t)
		require.NoError(t, store.Set(ctx, "backend_token", "tok"))

		info, err := os.Stat(filepath.Join(dir, "backend_token.sealed"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		dirInfo, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
	})

	t.Run("corrupt value is storage unavailable", func(t *testing.T) {
		store, dir := newTestFileStore(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "backend_token.sealed"), []byte("garbage"), 0o600))

		_, ok, err := store.Get(ctx, "backend_token")
		assert.False(t, ok)
		var appErr apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.CodeStorageUnavailable, appErr.Code)
	})

	t.Run("wrong passphrase cannot open", func(t *testing.T) {
		store, dir := newTestFileStore(t)
		require.NoError(t, store.Set(ctx, "backend_token", "tok"))

		other, err := NewChaChaSealer("different", testSalt, "install-1")
		require.NoError(t, err)
		reopened, err := NewFileStore(dir, other)
		require.NoError(t, err)

		_, _, err = reopened.Get(ctx, "backend_token")
		assert.Error(t, err)
	})

	t.Run("rejects path-like keys", func(t *testing.T) {
		store, _ := newTestFileStore(t)
		assert.Error(t, store.Set(ctx, "../escape", "x"))
		_, _, err := store.Get(ctx, "a/b")
		assert.Error(t, err)
	})

	t.Run("sealer failure is storage unavailable", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir(), failingSealer{})
		require.NoError(t, err)

		err = store.Set(ctx, "backend_token", "tok")
		var appErr apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.CodeStorageUnavailable, appErr.Code)
	})
}

type failingSealer struct{}

func (failingSealer) Seal(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("kms unreachable")
}

func (failingSealer) Open(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("kms unreachable")
}

func TestChaChaSealer(t *testing.T) {
	ctx := context.Background()
	sealer, err := NewChaChaSealer("key", testSalt, "install-1")
	require.NoError(t, err)

	a, err := sealer.Seal(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := sealer.Seal(ctx, []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonces should differ")

	plain, err := sealer.Open(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "same", string(plain))

	elsewhere, err := NewChaChaSealer("key", testSalt, "install-2")
	require.NoError(t, err)
	_, err = elsewhere.Open(ctx, a)
	assert.Error(t, err, "associated data must match")

	_, err = sealer.Open(ctx, []byte("short"))
	assert.Error(t, err)

	_, err = NewChaChaSealer("", testSalt, "x")
	assert.Error(t, err)
	_, err = NewChaChaSealer("key", []byte("short"), "x")
	assert.Error(t, err)
}

func TestChaChaSealer_KeyDerivation(t *testing.T) {
	ctx := context.Background()
	sealer, err := NewChaChaSealer("hunter2", testSalt, "install-1")
	require.NoError(t, err)
	sealed, err := sealer.Seal(ctx, []byte("backend-session"))
	require.NoError(t, err)

	t.Run("plain hash of the passphrase does not open", func(t *testing.T) {
		key := sha256.Sum256([]byte("hunter2"))
		aead, err := chacha20poly1305.NewX(key[:])
		require.NoError(t, err)
		n := aead.NonceSize()
		_, err = aead.Open(nil, sealed[:n], sealed[n:], []byte("install-1"))
		assert.Error(t, err)
	})

	t.Run("salt is part of the key", func(t *testing.T) {
		otherSalt := bytes.Repeat([]byte{0x42}, MinSaltLength)
		other, err := NewChaChaSealer("hunter2", otherSalt, "install-1")
		require.NoError(t, err)
		_, err = other.Open(ctx, sealed)
		assert.Error(t, err)
	})
}

func TestKeySalt(t *testing.T) {
	dir := t.TempDir()

	first, err := KeySalt(dir)
	require.NoError(t, err)
	assert.Len(t, first, MinSaltLength)

	second, err := KeySalt(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(filepath.Join(dir, saltFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	other, err := KeySalt(t.TempDir())
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	require.NoError(t, os.WriteFile(filepath.Join(dir, saltFile), []byte("zz"), 0o600))
	_, err = KeySalt(dir)
	assert.Error(t, err)
}

func TestInstallationID(t *testing.T) {
	dir := t.TempDir()

	first, err := InstallationID(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := InstallationID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, installationFile), []byte("nope"), 0o600))
	_, err = InstallationID(dir)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
}
