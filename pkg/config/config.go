package config

import (
	"encoding/json"
	"os"
)

// Config holds the scanview runtime configuration
type Config struct {
	MaxInputBytes int64  `json:"max_input_bytes"` // Size ceiling for raw scan input
	VendorDBPath  string `json:"vendor_db_path"`  // Optional MAC vendor CSV (prefix,vendor per line)
	APIPort       string `json:"api_port"`        // Port for the read-only query API
	EnableCORS    bool   `json:"enable_cors"`     // Allow cross-origin API requests
	LogLevel      string `json:"log_level"`       // debug, info, warn, error
	Verbose       bool   `json:"verbose"`         // Enable verbose CLI output
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() Config {
	return Config{
		MaxInputBytes: 64 << 20,
		APIPort:       "8080",
		LogLevel:      "info",
	}
}

// LoadConfigFromFile loads configuration from a JSON file, layered over the
// defaults
func LoadConfigFromFile(filePath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return cfg, err
	}

	err = json.Unmarshal(data, &cfg)
	return cfg, err
}
