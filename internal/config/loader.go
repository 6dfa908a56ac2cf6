package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var (
	envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	hexTokenRe    = regexp.MustCompile(`^[0-9a-fA-F]{8,}$`)
)

// Load reads, interpolates, and validates configuration from a file. A
// directory path is resolved to config.yaml inside it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DiscoverConfigPath finds the configuration by checking standard locations.
// Priority order: $DEPOT_CONFIG_DIR, ~/.config/depot, /etc/depot, ./config.yaml.
func DiscoverConfigPath() (string, error) {
	if dir := os.Getenv("DEPOT_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "depot")
		if _, err := os.Stat(userConfigDir); err == nil {
			return userConfigDir, nil
		}
	}

	systemConfigDir := "/etc/depot"
	if _, err := os.Stat(systemConfigDir); err == nil {
		return systemConfigDir, nil
	}

	legacyConfigPath := "./config.yaml"
	if _, err := os.Stat(legacyConfigPath); err == nil {
		return legacyConfigPath, nil
	}

	return "", fmt.Errorf("no config found (checked: $DEPOT_CONFIG_DIR, ~/.config/depot, /etc/depot, ./config.yaml)")
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.PIDFile == "" {
		cfg.Service.PIDFile = defaults.Service.PIDFile
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.Store.PathsDir == "" {
		cfg.Store.PathsDir = defaults.Store.PathsDir
	}
	if cfg.Store.SimsDir == "" {
		cfg.Store.SimsDir = defaults.Store.SimsDir
	}
	if cfg.Store.LockTimeout == 0 {
		cfg.Store.LockTimeout = defaults.Store.LockTimeout
	}
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.Store.PathsDir == "" {
		return fmt.Errorf("store.paths_dir is required")
	}
	if cfg.Store.SimsDir == "" {
		return fmt.Errorf("store.sims_dir is required")
	}
	if cfg.Store.LockTimeout <= 0 {
		return fmt.Errorf("store.lock_timeout must be positive")
	}
	if envVarPattern.MatchString(cfg.Store.PathsDir) {
		return unresolvedEnvErr("store.paths_dir", cfg.Store.PathsDir)
	}
	if envVarPattern.MatchString(cfg.Store.SimsDir) {
		return unresolvedEnvErr("store.sims_dir", cfg.Store.SimsDir)
	}

	seen := make(map[string]bool, len(cfg.Credentials))
	for i, cred := range cfg.Credentials {
		if cred.User == "" {
			return fmt.Errorf("credentials[%d].user is required", i)
		}
		if seen[cred.User] {
			return fmt.Errorf("credentials[%d]: duplicate user %q", i, cred.User)
		}
		seen[cred.User] = true
		if cred.Token == "" {
			return fmt.Errorf("credentials[%d].token is required", i)
		}
		if envVarPattern.MatchString(cred.Token) {
			return unresolvedEnvErr(fmt.Sprintf("credentials[%d].token", i), cred.Token)
		}
		if !hexTokenRe.MatchString(cred.Token) {
			return fmt.Errorf("credentials[%d].token must be hex, at least 8 characters", i)
		}
	}
	return nil
}

func unresolvedEnvErr(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return fmt.Errorf("%s: unresolved environment variable", field)
}
