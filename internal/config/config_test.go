package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE", "memory")

	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5, c.TokenAttempts)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 12*time.Hour, c.TokenTTL)
}

func TestLoadFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE=memory\nAPP_PORT=9090\nTOKEN_MAX_ATTEMPTS=3\n"), 0o600))
	for _, k := range []string{"STORE", "APP_PORT", "TOKEN_MAX_ATTEMPTS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 3, c.TokenAttempts)
}

func TestValidate(t *testing.T) {
	c := &Config{Store: StorePostgres, TokenAttempts: 5}
	assert.Error(t, c.Validate())

	c.DatabaseURL = "postgres://localhost/garments"
	assert.NoError(t, c.Validate())

	c.Store = "redis"
	assert.Error(t, c.Validate())

	c = &Config{Store: StoreMemory, TokenAttempts: 0}
	assert.Error(t, c.Validate())
}
