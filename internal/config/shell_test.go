package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bongobongo2020/nexrift/internal/models"
)

func TestShellInfo(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	running, info, err := IsShellRunning()
	require.NoError(t, err)
	assert.False(t, running)
	assert.Nil(t, info)

	require.NoError(t, SaveShellInfo(models.NewShellInfo("127.0.0.1", 8080, os.Getpid(), "dev", true)))

	running, info, err = IsShellRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, 8080, info.Port)
	assert.True(t, info.Dev)

	require.NoError(t, RemoveShellInfo())
	info, err = LoadShellInfo()
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestInstanceLock(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	lock, err := AcquireInstanceLock()
	require.NoError(t, err)

	_, err = AcquireInstanceLock()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, lock.Release())

	again, err := AcquireInstanceLock()
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
