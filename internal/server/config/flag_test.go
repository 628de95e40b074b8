package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseFlags_Overrides(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin",
		"-a", ":9999",
		"-r", "sqlite",
		"-d", "file:test.db",
		"-s", "flagsecret",
		"-t", "25",
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:test.db", cfg.DatabaseDSN)
	assert.Equal(t, "flagsecret", cfg.SecretKey)
	assert.Equal(t, 25*time.Second, cfg.ShutdownTimeout)
}

func Test_parseFlags_KeepsDefaultsWhenAbsent(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}
