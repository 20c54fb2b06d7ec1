package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Graph database connection
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// Parse result cache
	Cache CacheConfig `yaml:"cache"`

	// Scan and parse behavior
	Analysis AnalysisConfig `yaml:"analysis"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type CacheConfig struct {
	Directory string        `yaml:"directory"`
	TTL       time.Duration `yaml:"ttl"`
	MaxSize   int64         `yaml:"max_size"` // in bytes
}

type AnalysisConfig struct {
	Workers        int      `yaml:"workers"`
	Extensions     []string `yaml:"extensions"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	EnableLinting  bool     `yaml:"enable_linting"`
	ResolvePolicy  string   `yaml:"resolve_policy"` // "first-match" or "same-file-first"
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "password",
			Database: "neo4j",
		},
		Cache: CacheConfig{
			Directory: filepath.Join(homeDir, ".codeatlas", "cache"),
			TTL:       24 * time.Hour,
			MaxSize:   1024 * 1024 * 1024, // 1GB
		},
		Analysis: AnalysisConfig{
			Workers:    runtime.NumCPU(),
			Extensions: []string{".py"},
			IgnorePatterns: []string{
				"__pycache__", ".git", ".venv", "venv",
				"node_modules", ".tox", ".mypy_cache",
			},
			EnableLinting: true,
			ResolvePolicy: "first-match",
		},
	}
}

// Load loads configuration from file, environment and defaults. An empty
// path searches the standard locations.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("analysis", cfg.Analysis)

	v.SetEnvPrefix("CODEATLAS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codeatlas")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codeatlas"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file is fine, defaults apply
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Analysis.Workers < 1 {
		cfg.Analysis.Workers = 1
	}
	return cfg, nil
}

// applyEnvOverrides applies plain environment variable overrides. These sit
// above the config file, matching the docker-compose variable names.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.Username = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}

	if dir := os.Getenv("CACHE_DIRECTORY"); dir != "" {
		cfg.Cache.Directory = expandPath(dir)
	}
	if ttl := os.Getenv("CACHE_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil {
			cfg.Cache.TTL = time.Duration(hours) * time.Hour
		}
	}
	if size := os.Getenv("CACHE_MAX_SIZE"); size != "" {
		if sizeInt, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.Cache.MaxSize = sizeInt
		}
	}

	if workers := os.Getenv("ANALYSIS_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Analysis.Workers = n
		}
	}
	if policy := os.Getenv("RESOLVE_POLICY"); policy != "" {
		cfg.Analysis.ResolvePolicy = policy
	}
	if lint := os.Getenv("ENABLE_LINTING"); lint != "" {
		cfg.Analysis.EnableLinting = lint == "true"
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("neo4j", c.Neo4j)
	v.Set("cache", c.Cache)
	v.Set("analysis", c.Analysis)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
