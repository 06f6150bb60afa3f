package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultServerURL      = "http://localhost:8080"
	DefaultTargetLanguage = "pt"
	DefaultOllamaModel    = "llama3.2"
	configFileName        = "config.json"
	configDirName         = "readium-t"
	logFileName           = "readium-t.log"
	MaxRecentlyRead       = 10 // Maximum number of recently read books to track
)

// Translation providers
const (
	ProviderBackend = "backend"
	ProviderOllama  = "ollama"
)

// RecentlyReadEntry represents a recently read book
type RecentlyReadEntry struct {
	BookID   int       `json:"book_id"`
	Title    string    `json:"title"`
	Page     int       `json:"page"`
	OpenedAt time.Time `json:"opened_at"`
}

// Config holds the application configuration
type Config struct {
	ServerURL      string `json:"server_url"`
	LogLevel       string `json:"log_level,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`

	// TranslationProvider selects who fills the translation draft:
	// the server's auto-translation endpoint or a local ollama model.
	TranslationProvider string `json:"translation_provider,omitempty"`
	OllamaModel         string `json:"ollama_model,omitempty"`

	// OllamaHost overrides OLLAMA_HOST when set
	OllamaHost string `json:"ollama_host,omitempty"`

	// NarrowViewport makes zoom reset fit the page width
	NarrowViewport bool `json:"narrow_viewport,omitempty"`

	Theme string `json:"theme,omitempty"`

	RecentlyRead []RecentlyReadEntry `json:"recently_read,omitempty"`

	// Path to config file (not persisted)
	path string `json:"-"`
}

// Load loads configuration from the config file
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads configuration from an explicit path
func LoadFrom(configPath string) (*Config, error) {
	cfg := &Config{path: configPath}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	cfg.path = configPath
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = DefaultTargetLanguage
	}
	if c.TranslationProvider == "" {
		c.TranslationProvider = ProviderBackend
	}
	if c.OllamaModel == "" {
		c.OllamaModel = DefaultOllamaModel
	}
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.TranslationProvider {
	case ProviderBackend, ProviderOllama:
		return nil
	default:
		return fmt.Errorf("unknown translation provider %q", c.TranslationProvider)
	}
}

// Save persists the configuration to disk
func (c *Config) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}

// LogPath returns the log file path next to the config file
func (c *Config) LogPath() string {
	return filepath.Join(filepath.Dir(c.path), logFileName)
}

// AddRecentlyRead moves a book to the front of the recently read list
func (c *Config) AddRecentlyRead(bookID int, title string, page int) error {
	newList := make([]RecentlyReadEntry, 0, MaxRecentlyRead)
	for _, entry := range c.RecentlyRead {
		if entry.BookID != bookID {
			newList = append(newList, entry)
		}
	}

	entry := RecentlyReadEntry{
		BookID:   bookID,
		Title:    title,
		Page:     page,
		OpenedAt: time.Now(),
	}
	c.RecentlyRead = append([]RecentlyReadEntry{entry}, newList...)

	if len(c.RecentlyRead) > MaxRecentlyRead {
		c.RecentlyRead = c.RecentlyRead[:MaxRecentlyRead]
	}

	return c.Save()
}

// SetTheme stores the theme name and saves
func (c *Config) SetTheme(name string) error {
	c.Theme = name
	return c.Save()
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}

	return filepath.Join(configDir, configDirName, configFileName), nil
}
