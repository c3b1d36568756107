package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := openKeyring
	openKeyring = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openKeyring = prev })
}

func TestCredentialLifecycle(t *testing.T) {
	useArrayKeyring(t)

	_, err := Get(APITokenKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Set(APITokenKey, "secret-token"))
	got, err := Get(APITokenKey)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", got)

	require.NoError(t, Delete(APITokenKey))
	require.NoError(t, Delete(APITokenKey))
	_, err = Get(APITokenKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenFailure(t *testing.T) {
	prev := openKeyring
	openKeyring = func() (keyring.Keyring, error) { return nil, errors.New("no backend") }
	defer func() { openKeyring = prev }()

	_, err := Get(APITokenKey)
	assert.Error(t, err)
	assert.Error(t, Set(APITokenKey, "x"))
	assert.Error(t, Delete(APITokenKey))
}
