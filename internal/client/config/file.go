package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/flagx"
	"github.com/dmitrijs2005/agencysync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for config file decoding. Every field
// is optional; absent fields keep the value set by earlier layers.
type FileConfig struct {
	ServerEndpointAddr *string `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	DatabaseFile       *string `json:"database_file" yaml:"database_file"`
	ControlAddr        *string `json:"control_addr" yaml:"control_addr"`
	DeviceID           *string `json:"device_id" yaml:"device_id"`
	DeviceSecret       *string `json:"device_secret" yaml:"device_secret"`
	PolicyFile         *string `json:"policy_file" yaml:"policy_file"`

	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	CacheTTL            *timex.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	SyncInterval        *timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	StartupDelay        *timex.Duration `json:"startup_delay" yaml:"startup_delay"`

	MaxParallelTables *int     `json:"max_parallel_tables" yaml:"max_parallel_tables"`
	Tables            []string `json:"tables" yaml:"tables"`

	RetryBase   *timex.Duration `json:"retry_base" yaml:"retry_base"`
	RetryCap    *timex.Duration `json:"retry_cap" yaml:"retry_cap"`
	MaxAttempts *int            `json:"max_attempts" yaml:"max_attempts"`
}

// parseFile overlays cfg with the file named by -c/-config. Files ending in
// .yaml or .yml are decoded as YAML, everything else as JSON. Read and decode
// errors panic.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setString(&cfg.DatabaseFile, fc.DatabaseFile)
	setString(&cfg.ControlAddr, fc.ControlAddr)
	setString(&cfg.DeviceID, fc.DeviceID)
	setString(&cfg.DeviceSecret, fc.DeviceSecret)
	setString(&cfg.PolicyFile, fc.PolicyFile)

	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setDuration(&cfg.CacheTTL, fc.CacheTTL)
	setDuration(&cfg.SyncInterval, fc.SyncInterval)
	setDuration(&cfg.StartupDelay, fc.StartupDelay)
	setDuration(&cfg.RetryBase, fc.RetryBase)
	setDuration(&cfg.RetryCap, fc.RetryCap)

	if fc.MaxParallelTables != nil {
		cfg.MaxParallelTables = *fc.MaxParallelTables
	}
	if fc.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.MaxAttempts
	}
	if len(fc.Tables) > 0 {
		cfg.Tables = append([]string(nil), fc.Tables...)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
