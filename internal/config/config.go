package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds beluga configuration
type Config struct {
	// DataDir holds connections.json, selections.json and beluga.db
	DataDir string `yaml:"data_dir"`
	// Connection is the default connection name for run/databases commands
	Connection string `yaml:"connection"`
	// SSLMode is passed through to every Postgres DSN
	SSLMode string `yaml:"sslmode"`
	// MaintenanceDB is the database used to list a server's databases
	MaintenanceDB string `yaml:"maintenance_db"`
	// HistoryLimit caps the default history listing
	HistoryLimit int `yaml:"history_limit"`
	// SaveDir is the default directory for exported CSV results
	SaveDir string `yaml:"save_dir"`
}

type fileConfig struct {
	DataDir       string `yaml:"data_dir"`
	Connection    string `yaml:"connection"`
	SSLMode       string `yaml:"sslmode"`
	MaintenanceDB string `yaml:"maintenance_db"`
	HistoryLimit  *int   `yaml:"history_limit"`
	SaveDir       string `yaml:"save_dir"`
}

// configFile is the name of the config file
const configFile = "config.yaml"

// Load loads configuration with the following precedence (highest first):
// 1. Repo-local .beluga/config.yaml files (searched upward from cwd)
// 2. Environment variables
// 3. Global ~/.config/beluga/config.yaml
// Defaults fill whatever remains unset.
func Load() (*Config, error) {
	cfg := &Config{}

	globalPath := globalConfigPath()
	if globalPath != "" {
		if err := loadFromFile(globalPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(cfg)

	repoPaths, err := findRepoConfigs()
	if err != nil {
		return nil, err
	}
	for _, repoPath := range repoPaths {
		if err := loadFromFile(repoPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment without overriding variables already set. This is how a
// project-local PGPASSWORD reaches the Postgres driver when a connection
// stores no password.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StorePath returns the history/snippet database location
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "beluga.db")
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, ".local", "share", "beluga")
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaintenanceDB == "" {
		c.MaintenanceDB = "postgres"
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 50
	}
}

// RepoConfigDir returns the path to the .beluga directory if found, empty string otherwise
func RepoConfigDir() string {
	paths, err := findRepoConfigs()
	if err != nil || len(paths) == 0 {
		return ""
	}
	return filepath.Dir(paths[len(paths)-1])
}

// findRepoConfigs searches upward from cwd for .beluga/config.yaml files.
// Returned paths are ordered from furthest ancestor to closest (highest
// precedence last).
func findRepoConfigs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := cwd
	var paths []string
	for {
		configPath := filepath.Join(dir, ".beluga", configFile)
		if _, err := os.Stat(configPath); err == nil {
			paths = append(paths, configPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}

	return paths, nil
}

// globalConfigPath returns the path to the global config
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "beluga", configFile)
}

// loadFromFile loads config from a YAML file, merging non-empty values into
// cfg. Relative data_dir/save_dir are resolved against the config file's
// repo root (the parent of .beluga) or its own directory for the global file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileCfg fileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	baseDir := configDir
	if filepath.Base(configDir) == ".beluga" {
		baseDir = filepath.Dir(configDir)
	}

	if fileCfg.DataDir != "" {
		cfg.DataDir = resolvePathFromConfig(fileCfg.DataDir, baseDir)
	}
	if fileCfg.Connection != "" {
		cfg.Connection = fileCfg.Connection
	}
	if fileCfg.SSLMode != "" {
		cfg.SSLMode = fileCfg.SSLMode
	}
	if fileCfg.MaintenanceDB != "" {
		cfg.MaintenanceDB = fileCfg.MaintenanceDB
	}
	if fileCfg.HistoryLimit != nil {
		cfg.HistoryLimit = *fileCfg.HistoryLimit
	}
	if fileCfg.SaveDir != "" {
		cfg.SaveDir = resolvePathFromConfig(fileCfg.SaveDir, baseDir)
	}

	return nil
}

// resolvePathFromConfig expands ~ and makes relative paths absolute
// relative to baseDir
func resolvePathFromConfig(path, baseDir string) string {
	if path == "" {
		return ""
	}

	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// applyEnv applies environment variables to config
func applyEnv(cfg *Config) {
	if v := os.Getenv("BELUGA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BELUGA_CONNECTION"); v != "" {
		cfg.Connection = v
	}
	if v := os.Getenv("BELUGA_SSLMODE"); v != "" {
		cfg.SSLMode = v
	}
	if v := os.Getenv("BELUGA_MAINTENANCE_DB"); v != "" {
		cfg.MaintenanceDB = v
	}
	if v := os.Getenv("BELUGA_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}
	if v := os.Getenv("BELUGA_SAVE_DIR"); v != "" {
		cfg.SaveDir = v
	}
}

// ExpandPath expands ~ and makes path absolute relative to base
func ExpandPath(path, base string) string {
	if path == "" {
		return ""
	}

	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}

	return path
}
