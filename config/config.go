package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type MCPConfig struct {
	ServerURL       string `toml:"server_url"`
	ProtocolVersion string `toml:"protocol_version"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

type CacheConfig struct {
	TTLSeconds     int    `toml:"ttl_seconds"`
	CacheableTools string `toml:"cacheable_tools"`
}

type ClaimConfig struct {
	Tool          string `toml:"tool"`
	SweepMinutes  int    `toml:"sweep_minutes"`
	ThresholdHour int    `toml:"threshold_hour"`
	Timezone      string `toml:"timezone"`
}

type StorageConfig struct {
	PassphraseFile string `toml:"passphrase_file"`
}

type UserConfig struct {
	MCP     MCPConfig     `toml:"mcp"`
	Cache   CacheConfig   `toml:"cache"`
	Claim   ClaimConfig   `toml:"claim"`
	Storage StorageConfig `toml:"storage"`
}

type Config struct {
	DataDirectory   string
	ServerURL       string
	ProtocolVersion string
	CallTimeout     time.Duration
	CacheTTL        time.Duration
	CacheableTools  []string
	ClaimTool       string
	SweepInterval   time.Duration
	ThresholdHour   int
	Timezone        string
	PassphraseFile  string
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("MAIMAI_SERVER_URL"); url != "" {
		c.ServerURL = url
	}
	if dataDir := os.Getenv("MAIMAI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("MAIMAI_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the debug log can contain tool arguments and user identifiers
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (MAIMAI_DEBUG=%s) ===", os.Getenv("MAIMAI_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// ParseToolList splits a comma-separated tool allow-list, dropping empty
// entries and surrounding whitespace.
func ParseToolList(raw string) []string {
	var tools []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			tools = append(tools, name)
		}
	}
	return tools
}

func Load() (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	cfg.ServerURL = userCfg.MCP.ServerURL
	cfg.ProtocolVersion = userCfg.MCP.ProtocolVersion
	cfg.CallTimeout = time.Duration(userCfg.MCP.TimeoutSeconds) * time.Second
	cfg.CacheTTL = time.Duration(userCfg.Cache.TTLSeconds) * time.Second
	cfg.CacheableTools = ParseToolList(userCfg.Cache.CacheableTools)
	cfg.ClaimTool = userCfg.Claim.Tool
	cfg.SweepInterval = time.Duration(userCfg.Claim.SweepMinutes) * time.Minute
	cfg.ThresholdHour = userCfg.Claim.ThresholdHour
	cfg.Timezone = userCfg.Claim.Timezone
	cfg.PassphraseFile = userCfg.Storage.PassphraseFile

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("mcp.server_url is required (or set MAIMAI_SERVER_URL)")
	}
	if c.ThresholdHour < 0 || c.ThresholdHour > 23 {
		return fmt.Errorf("claim.threshold_hour must be 0-23, got %d", c.ThresholdHour)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("claim.sweep_minutes must be positive")
	}
	if c.Timezone == "" {
		return fmt.Errorf("claim.timezone is required")
	}
	return nil
}
