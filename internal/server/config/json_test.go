package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_LoadsFromFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr":    "www.example:9000",
		"database_driver":  "sqlite",
		"database_dsn":     "catalog.db",
		"secret_key":       "my_secret_key",
		"shutdown_timeout": "30s",
	})

	os.Args = []string{"testbin", "-config", path}

	cfg := &Config{}
	parseJson(cfg)

	assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "catalog.db", cfg.DatabaseDSN)
	assert.Equal(t, "my_secret_key", cfg.SecretKey)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func Test_parseJson_NoFlagLeavesConfigUntouched(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddr)
}

func Test_parseJson_PanicsOnMissingFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-c", filepath.Join(t.TempDir(), "absent.json")}

	require.Panics(t, func() {
		parseJson(&Config{})
	})
}
