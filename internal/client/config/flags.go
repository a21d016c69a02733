package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/flagx"
)

var knownFlags = []string{"-a", "-f", "-l", "-n", "-k", "-i", "-t", "-s", "-p", "-y"}

// parseFlags populates selected Config fields from command-line flags.
//
// Interval flags take whole seconds. The function filters os.Args to only
// include the flags it knows about, using flagx.FilterArgs, so -c/-config and
// other components' flags do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DatabaseFile, "f", cfg.DatabaseFile, "local database file")
	fs.StringVar(&cfg.ControlAddr, "l", cfg.ControlAddr, "control API listen address (empty disables)")
	fs.StringVar(&cfg.DeviceID, "n", cfg.DeviceID, "device id used on first run")
	fs.StringVar(&cfg.DeviceSecret, "k", cfg.DeviceSecret, "device secret")
	fs.StringVar(&cfg.PolicyFile, "y", cfg.PolicyFile, "normalization policy file (YAML)")
	fs.IntVar(&cfg.MaxParallelTables, "p", cfg.MaxParallelTables, "tables reconciled in parallel")

	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	cacheTTL := fs.Int("t", int(cfg.CacheTTL.Seconds()), "pending-work cache TTL (in seconds)")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.CacheTTL = time.Duration(*cacheTTL) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
