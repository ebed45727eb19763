package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", v))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Workspace   string            `json:"workspace" env:"GUILDMEM_WORKSPACE"`
	LogLevel    string            `json:"log_level" env:"GUILDMEM_LOG_LEVEL"`
	Channels    ChannelsConfig    `json:"channels"`
	Memory      MemoryConfig      `json:"memory"`
	Storage     StorageConfig     `json:"storage"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	mu          sync.RWMutex
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token      string              `json:"token" env:"GUILDMEM_CHANNELS_DISCORD_TOKEN"`
	AllowFrom  FlexibleStringSlice `json:"allow_from" env:"GUILDMEM_CHANNELS_DISCORD_ALLOW_FROM"`
	GuildsOnly bool                `json:"guilds_only" env:"GUILDMEM_CHANNELS_DISCORD_GUILDS_ONLY"`
}

// MemoryConfig carries every tunable of the tiered memory subsystem.
// Durations are expressed in the unit named by the field suffix.
type MemoryConfig struct {
	WorkingCapacity      int     `json:"working_capacity" env:"GUILDMEM_MEMORY_WORKING_CAPACITY"`
	WorkingTTLSeconds    int     `json:"working_ttl_seconds" env:"GUILDMEM_MEMORY_WORKING_TTL_SECONDS"`
	EpisodicCapacity     int     `json:"episodic_capacity" env:"GUILDMEM_MEMORY_EPISODIC_CAPACITY"`
	EpisodicBaseTTLHours int     `json:"episodic_base_ttl_hours" env:"GUILDMEM_MEMORY_EPISODIC_BASE_TTL_HOURS"`
	EpisodicThreshold    float64 `json:"episodic_threshold" env:"GUILDMEM_MEMORY_EPISODIC_THRESHOLD"`
	SimilarityThreshold  float64 `json:"similarity_threshold" env:"GUILDMEM_MEMORY_SIMILARITY_THRESHOLD"`
	ReinforcementBoost   float64 `json:"reinforcement_boost" env:"GUILDMEM_MEMORY_REINFORCEMENT_BOOST"`
	SummaryMaxChars      int     `json:"summary_max_chars" env:"GUILDMEM_MEMORY_SUMMARY_MAX_CHARS"`
	CleanupSeconds       int     `json:"cleanup_seconds" env:"GUILDMEM_MEMORY_CLEANUP_SECONDS"`
	RecallCacheEnabled   bool    `json:"recall_cache_enabled" env:"GUILDMEM_MEMORY_RECALL_CACHE_ENABLED"`
	RecallCacheTTLMS     int     `json:"recall_cache_ttl_ms" env:"GUILDMEM_MEMORY_RECALL_CACHE_TTL_MS"`
}

type StorageConfig struct {
	// Backend selects the durable store for the semantic tier:
	// "sqlite" or "file".
	Backend string `json:"backend" env:"GUILDMEM_STORAGE_BACKEND"`
	Path    string `json:"path" env:"GUILDMEM_STORAGE_PATH"`
}

type MaintenanceConfig struct {
	Enabled bool `json:"enabled" env:"GUILDMEM_MAINTENANCE_ENABLED"`
	// Schedule is a robfig/cron spec with a seconds field; defaults to nightly.
	Schedule     string `json:"schedule" env:"GUILDMEM_MAINTENANCE_SCHEDULE"`
	MaxAgeDays   int    `json:"max_age_days" env:"GUILDMEM_MAINTENANCE_MAX_AGE_DAYS"`
	StatsMinutes int    `json:"stats_minutes" env:"GUILDMEM_MAINTENANCE_STATS_MINUTES"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.guildmem/workspace",
		LogLevel:  "info",
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:      "",
				AllowFrom:  FlexibleStringSlice{},
				GuildsOnly: true,
			},
		},
		Memory: MemoryConfig{
			WorkingCapacity:      50,
			WorkingTTLSeconds:    300,
			EpisodicCapacity:     500,
			EpisodicBaseTTLHours: 30 * 24,
			EpisodicThreshold:    0.6,
			SimilarityThreshold:  0.7,
			ReinforcementBoost:   0.1,
			SummaryMaxChars:      200,
			CleanupSeconds:       300,
			RecallCacheEnabled:   true,
			RecallCacheTTLMS:     1000,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "", // derived from workspace when empty
		},
		Maintenance: MaintenanceConfig{
			Enabled:      true,
			Schedule:     "0 30 3 * * *",
			MaxAgeDays:   180,
			StatsMinutes: 15,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

// StoragePath resolves the configured storage location, falling back to
// <workspace>/state when unset.
func (c *Config) StoragePath() string {
	c.mu.RLock()
	path := c.Storage.Path
	c.mu.RUnlock()
	if path != "" {
		return expandHome(path)
	}
	return filepath.Join(c.WorkspacePath(), "state")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
