// Package config loads runtime configuration for the device agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml/.yml are YAML, anything else is JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the remote store gRPC endpoint
//	-f string   local database file
//	-l string   control API listen address ("" disables the API)
//	-n string   device id used on first run
//	-k string   device secret
//	-y string   normalization policy file
//	-p int      tables reconciled in parallel
//	-i int      online status check interval (seconds)
//	-t int      pending-work cache TTL (seconds)
//	-s int      sync interval (seconds)
//
// # File schema
//
// Intervals use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds. Tables and the retry settings are file-only:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_file": "agency.db",
//	  "control_addr": "127.0.0.1:8787",
//	  "online_check_interval": "3s",
//	  "cache_ttl": "30s",
//	  "sync_interval": "5m",
//	  "tables": ["customers", "bookings"],
//	  "retry_base": "30s",
//	  "retry_cap": "1h",
//	  "max_attempts": 8
//	}
//
// Note: This package does not read environment variables directly.
package config
