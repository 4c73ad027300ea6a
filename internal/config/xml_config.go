// Package config provides XML-based configuration management for
// self-hosted deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ConvertAllHub"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Processing ProcessingConfig `xml:"Processing"`
	Security   SecurityConfig   `xml:"Security"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	ArchiveDirectory string `xml:"ArchiveDirectory"`
	HistoryDatabase  string `xml:"HistoryDatabase"`
	ToolCatalog      string `xml:"ToolCatalog"`
}

// ProcessingConfig contains conversion settings
type ProcessingConfig struct {
	BackendURL             string `xml:"BackendURL"`
	BackendPollIntervalMs  int    `xml:"BackendPollIntervalMs"`
	BatchConcurrency       int    `xml:"BatchConcurrency"`
	TaskRetentionMinutes   int    `xml:"TaskRetentionMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	DefaultQuality         int    `xml:"DefaultQuality"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFileDeletion bool   `xml:"AllowFileDeletion"`
	DefaultTier       string `xml:"DefaultTier"`
	EnableRequestLog  bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "600M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			ArchiveDirectory: "./data/archives",
			HistoryDatabase:  "./data/history.db",
			ToolCatalog:      "",
		},
		Processing: ProcessingConfig{
			BackendURL:             "http://localhost:9000",
			BackendPollIntervalMs:  500,
			BatchConcurrency:       3,
			TaskRetentionMinutes:   60,
			CleanupIntervalMinutes: 5,
			DefaultQuality:         80,
		},
		Security: SecurityConfig{
			AllowFileDeletion: true,
			DefaultTier:       "free",
			EnableRequestLog:  true,
		},
	}
}

// LoadConfig loads configuration from XML file, creating a default one
// on first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- ConvertAllHub Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override
// config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("CONVERTHUB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("CONVERTHUB_DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if backend := os.Getenv("CONVERTHUB_BACKEND_URL"); backend != "" {
		c.Processing.BackendURL = backend
	}
	if tier := os.Getenv("CONVERTHUB_DEFAULT_TIER"); tier != "" {
		c.Security.DefaultTier = tier
	}
}

// resolvePaths converts relative paths to absolute based on config file
// location.
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.ArchiveDirectory)
	resolve(&c.Storage.HistoryDatabase)
	resolve(&c.Storage.ToolCatalog)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.ArchiveDirectory,
		filepath.Dir(c.Storage.HistoryDatabase),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
