package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avelats/polycat/internal/flagx"
	"github.com/avelats/polycat/internal/timex"
)

// JsonConfig is the JSON-shaped counterpart of Config. It uses
// timex.Duration for interval fields, which parses both string values such
// as "5s" and integer nanoseconds, and is copied into the runtime Config
// after unmarshalling.
type JsonConfig struct {
	EndpointAddr    string         `json:"endpoint_addr"`
	DatabaseDriver  string         `json:"database_driver"`
	DatabaseDSN     string         `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. When no flag is given, nothing
// is loaded. An unreadable or invalid file panics: a config file that is
// present but broken should stop startup, not be skipped.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDriver = c.DatabaseDriver
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.ShutdownTimeout = time.Duration(c.ShutdownTimeout.Duration)
}
