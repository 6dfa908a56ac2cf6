// Package config defines the depot service configuration and its YAML loader.
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Service     ServiceConfig      `yaml:"service"`
	API         APIConfig          `yaml:"api"`
	Store       StoreConfig        `yaml:"store"`
	Credentials []CredentialConfig `yaml:"credentials"`
}

// ServiceConfig holds daemon-wide settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	PIDFile  string `yaml:"pid_file"`
}

// APIConfig holds the HTTP listener settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// StoreConfig roots the registry and artifact trees.
type StoreConfig struct {
	PathsDir    string        `yaml:"paths_dir"`
	SimsDir     string        `yaml:"sims_dir"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// CredentialConfig provisions one user's API token.
type CredentialConfig struct {
	User  string `yaml:"user"`
	Token string `yaml:"token"`
	Admin bool   `yaml:"admin"`
}

// Defaults returns the configuration used when a field is not set.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "depot",
			LogLevel: "info",
			PIDFile:  "/var/run/depotd.pid",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8642",
		},
		Store: StoreConfig{
			PathsDir:    "/var/lib/depot/paths",
			SimsDir:     "/var/lib/depot/sims",
			LockTimeout: 10 * time.Second,
		},
	}
}
