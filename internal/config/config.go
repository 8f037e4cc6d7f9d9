// Package config loads psearch settings.
//
// Settings are applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/psearch/config.yaml or ~/.config/psearch/config.yaml)
//  3. Project config (.psearch.yaml in the corpus root)
//  4. Environment variables (PSEARCH_*)
//  5. Command line flags, applied by the caller
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/psearch/internal/analysis"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/search"
	"github.com/Aman-CERP/psearch/internal/walker"
)

// ProjectConfigFile is the project config file name, looked up in the corpus root.
const ProjectConfigFile = ".psearch.yaml"

// DefaultIndexFolder is the index folder name inside the corpus root.
const DefaultIndexFolder = ".psindex"

// Config is the complete psearch configuration.
type Config struct {
	// IndexFolder is resolved against the corpus root.
	IndexFolder string `yaml:"index_folder" json:"index_folder"`

	// IgnoreFolders are pruned by name at any depth.
	IgnoreFolders []string `yaml:"ignore_folders" json:"ignore_folders"`

	// IgnoreMimeTypes is a regular expression matched against whole mime types.
	IgnoreMimeTypes string `yaml:"ignore_mime_types" json:"ignore_mime_types"`

	MaxTokenLength int   `yaml:"max_token_length" json:"max_token_length"`
	MaxFileSize    int64 `yaml:"max_file_size" json:"max_file_size"`

	// CaseInsensitive lowercases indexed terms. Takes effect on the next clean build.
	CaseInsensitive bool `yaml:"case_insensitive" json:"case_insensitive"`

	Workers     int `yaml:"workers" json:"workers"`
	SearchLimit int `yaml:"search_limit" json:"search_limit"`
	ShellLimit  int `yaml:"shell_limit" json:"shell_limit"`

	// Presets are merged across layers; a later layer overrides a name.
	Presets map[string]string `yaml:"presets" json:"presets"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Sources lists the files that were applied, lowest precedence first.
	Sources []string `yaml:"-" json:"sources,omitempty"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		IndexFolder:     DefaultIndexFolder,
		IgnoreFolders:   append([]string(nil), walker.DefaultIgnoreFolders...),
		IgnoreMimeTypes: walker.DefaultIgnoreMimeTypes,
		MaxTokenLength:  analysis.DefaultMaxTokenLength,
		MaxFileSize:     walker.DefaultMaxFileSize,
		Workers:         runtime.NumCPU(),
		SearchLimit:     search.DefaultSearchLimit,
		ShellLimit:      search.DefaultShellLimit,
		Presets:         map[string]string{},
		LogLevel:        "info",
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/psearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/psearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "psearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "psearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "psearch", "config.yaml")
}

// Load loads the configuration for the corpus rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadIfExists(GetUserConfigPath()); err != nil {
		return nil, err
	}
	if err := cfg.loadIfExists(filepath.Join(dir, ProjectConfigFile)); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadIfExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		// no config file is fine
		return nil
	}
	return c.loadYAML(path)
}

// loadYAML overlays the keys present in the file onto c. Absent keys keep
// their value; presets are merged by name.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return pserrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return pserrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	if c.Presets == nil {
		c.Presets = map[string]string{}
	}
	c.Sources = append(c.Sources, path)
	return nil
}

// applyEnvOverrides applies PSEARCH_* environment variables. Unparsable
// numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PSEARCH_INDEX_FOLDER"); v != "" {
		c.IndexFolder = v
	}
	if v, ok := os.LookupEnv("PSEARCH_IGNORE_FOLDERS"); ok {
		c.IgnoreFolders = walker.SplitList(v)
	}
	if v := os.Getenv("PSEARCH_IGNORE_MIME_TYPES"); v != "" {
		c.IgnoreMimeTypes = v
	}
	if v := os.Getenv("PSEARCH_MAX_TOKEN_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokenLength = n
		}
	}
	if v := os.Getenv("PSEARCH_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxFileSize = n
		}
	}
	if v := os.Getenv("PSEARCH_CASE_INSENSITIVE"); v != "" {
		c.CaseInsensitive = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("PSEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("PSEARCH_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SearchLimit = n
		}
	}
	if v := os.Getenv("PSEARCH_SHELL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ShellLimit = n
		}
	}
	if v := os.Getenv("PSEARCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// IndexPath returns the index folder resolved against root.
func (c *Config) IndexPath(root string) string {
	if filepath.IsAbs(c.IndexFolder) {
		return c.IndexFolder
	}
	return filepath.Join(root, c.IndexFolder)
}

// Validate returns a config error for the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.IndexFolder) == "" {
		return pserrors.ConfigError("index_folder must not be empty", nil)
	}
	if _, err := regexp.Compile(c.IgnoreMimeTypes); err != nil {
		return pserrors.ConfigError(fmt.Sprintf("ignore_mime_types is not a valid regular expression: %q", c.IgnoreMimeTypes), err)
	}
	if c.MaxTokenLength < 1 {
		return pserrors.ConfigError(fmt.Sprintf("max_token_length must be at least 1, got %d", c.MaxTokenLength), nil)
	}
	if c.MaxFileSize < 0 {
		return pserrors.ConfigError(fmt.Sprintf("max_file_size must be non-negative, got %d", c.MaxFileSize), nil)
	}
	if c.Workers < 1 {
		return pserrors.ConfigError(fmt.Sprintf("workers must be positive, got %d", c.Workers), nil)
	}
	if c.SearchLimit < 1 {
		return pserrors.ConfigError(fmt.Sprintf("search_limit must be positive, got %d", c.SearchLimit), nil)
	}
	if c.ShellLimit < 1 {
		return pserrors.ConfigError(fmt.Sprintf("shell_limit must be positive, got %d", c.ShellLimit), nil)
	}
	for name := range c.Presets {
		if strings.TrimSpace(name) == "" {
			return pserrors.ConfigError("preset names must not be empty", nil)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return pserrors.ConfigError(fmt.Sprintf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel), nil)
	}
	return nil
}
