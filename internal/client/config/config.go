package config

import (
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/reconciler"
	"github.com/dmitrijs2005/agencysync/internal/client/scheduler"
)

// DefaultTables lists the entities synchronized when the config file does
// not name its own.
var DefaultTables = []string{"customers", "bookings", "tours", "suppliers", "invoices"}

// Config holds runtime settings for the device agent.
//
// Units: all intervals are time.Duration. ControlAddr "" disables the
// control API; DeviceSecret "" makes the REPL prompt for it.
type Config struct {
	ServerEndpointAddr string
	DatabaseFile       string
	ControlAddr        string
	DeviceID           string
	DeviceSecret       string
	PolicyFile         string

	OnlineCheckInterval time.Duration
	CacheTTL            time.Duration
	SyncInterval        time.Duration
	StartupDelay        time.Duration

	MaxParallelTables int
	Tables            []string

	RetryBase   time.Duration
	RetryCap    time.Duration
	MaxAttempts int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	sched := scheduler.DefaultConfig()
	rec := reconciler.DefaultOptions()

	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabaseFile = "agency.db"
	c.ControlAddr = "127.0.0.1:8787"
	c.DeviceID = ""
	c.DeviceSecret = ""
	c.PolicyFile = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.CacheTTL = sched.CacheTTL
	c.SyncInterval = sched.Interval
	c.StartupDelay = sched.StartupDelay
	c.MaxParallelTables = 4
	c.Tables = append([]string(nil), DefaultTables...)
	c.RetryBase = rec.RetryBase
	c.RetryCap = rec.RetryCap
	c.MaxAttempts = rec.MaxAttempts
}

// SchedulerConfig returns the scheduler settings carried by c.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		CacheTTL:     c.CacheTTL,
		Interval:     c.SyncInterval,
		StartupDelay: c.StartupDelay,
	}
}

// ReconcilerOptions returns the retry settings carried by c.
func (c *Config) ReconcilerOptions() reconciler.Options {
	return reconciler.Options{
		RetryBase:   c.RetryBase,
		RetryCap:    c.RetryCap,
		MaxAttempts: c.MaxAttempts,
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
