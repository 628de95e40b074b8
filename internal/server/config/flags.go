package config

import (
	"flag"
	"os"
	"time"

	"github.com/avelats/polycat/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-r string   database driver ("pgx" or "sqlite")
//	-d string   database DSN
//	-s string   bearer token HMAC secret key
//	-t int      shutdown timeout, seconds
//
// os.Args is first filtered to the flags handled here (flagx.FilterArgs), so
// flags owned by other components do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-r", "-d", "-s", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "r", config.DatabaseDriver, "database driver (pgx or sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	shutdownTimeout := fs.Int("t", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}
