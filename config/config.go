// ABOUTME: Credentials and settings for kontakty, stored as JSON under the XDG data dir
// ABOUTME: Values layer as file, editor MCP credentials, .env, then environment variables
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/models"
	"github.com/joho/godotenv"
)

const (
	// AppName names the data directory.
	AppName = "kontakty"

	// ConfigFileName is where we store local config.
	ConfigFileName = "config.json"
)

// Config holds everything needed to reach the base and run jobs.
type Config struct {
	Token  string `json:"token,omitempty"`
	BaseID string `json:"base_id"`
	APIURL string `json:"api_url,omitempty"`

	Schema models.Schema `json:"schema"`

	// RulesFile optionally overlays normalization rules (YAML).
	RulesFile string `json:"rules_file,omitempty"`
	// FormatsFile describes CSV exports for merge-csv (YAML).
	FormatsFile string `json:"formats_file,omitempty"`
	// SnapshotDB is the SQLite file destructive jobs back up into.
	SnapshotDB string `json:"snapshot_db,omitempty"`

	// TokenSource records where the token came from, for `config show`.
	TokenSource string `json:"-"`
}

// Dir returns the XDG data directory for kontakty.
func Dir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), ConfigFileName)
}

// DefaultConfig returns a config with default schema and paths and no credentials.
func DefaultConfig() *Config {
	return &Config{
		APIURL:     airtable.DefaultBaseURL,
		Schema:     models.DefaultSchema(),
		SnapshotDB: filepath.Join(Dir(), "snapshots.db"),
	}
}

// LoadFile reads only the config file at path (Path() when empty) on top of
// the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
		if cfg.Token != "" {
			cfg.TokenSource = path
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.fillDefaults()
	return cfg, nil
}

// Load reads the config file, then fills the token from the editor MCP file
// if still missing, then loads .env from the working directory and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		if home, err := os.UserHomeDir(); err == nil {
			mcp := filepath.Join(home, ".cursor", "mcp.json")
			if token, err := TokenFromMCP(mcp); err == nil && token != "" {
				cfg.Token = token
				cfg.TokenSource = mcp
			}
		}
	}

	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	c.Schema = c.Schema.WithDefaults()
	if c.APIURL == "" {
		c.APIURL = airtable.DefaultBaseURL
	}
	if c.SnapshotDB == "" {
		c.SnapshotDB = filepath.Join(Dir(), "snapshots.db")
	}
}

// applyEnvOverrides applies environment variable overrides:
// AIRTABLE_TOKEN (or AIRTABLE_API_KEY), AIRTABLE_BASE_ID, AIRTABLE_TABLE,
// KONTAKTY_API_URL, KONTAKTY_RULES, KONTAKTY_FORMATS, KONTAKTY_SNAPSHOT_DB.
func applyEnvOverrides(cfg *Config) {
	for _, key := range []string{"AIRTABLE_TOKEN", "AIRTABLE_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			cfg.Token = v
			cfg.TokenSource = "$" + key
			break
		}
	}
	if v := os.Getenv("AIRTABLE_BASE_ID"); v != "" {
		cfg.BaseID = v
	}
	if v := os.Getenv("AIRTABLE_TABLE"); v != "" {
		cfg.Schema.Contacts.Table = v
	}
	if v := os.Getenv("KONTAKTY_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("KONTAKTY_RULES"); v != "" {
		cfg.RulesFile = v
	}
	if v := os.Getenv("KONTAKTY_FORMATS"); v != "" {
		cfg.FormatsFile = v
	}
	if v := os.Getenv("KONTAKTY_SNAPSHOT_DB"); v != "" {
		cfg.SnapshotDB = v
	}
}

// TokenFromMCP reads mcpServers.airtable.env.AIRTABLE_API_KEY from an editor MCP config.
func TokenFromMCP(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var doc struct {
		MCPServers map[string]struct {
			Env map[string]string `json:"env"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc.MCPServers["airtable"].Env["AIRTABLE_API_KEY"], nil
}

// Validate reports missing credentials as a configuration error.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Token) == "" {
		missing = append(missing, "token (AIRTABLE_TOKEN)")
	}
	if strings.TrimSpace(c.BaseID) == "" {
		missing = append(missing, "base id (AIRTABLE_BASE_ID)")
	}
	if len(missing) > 0 {
		return &airtable.ConfigurationError{
			Msg: "missing " + strings.Join(missing, " and ") + "; run `kontakty config init` or set the environment variables",
		}
	}
	return nil
}

// Client builds an API client from the config.
func (c *Config) Client(opts ...airtable.Option) (*airtable.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := airtable.DefaultConfig()
	cfg.Token = c.Token
	cfg.BaseID = c.BaseID
	cfg.BaseURL = c.APIURL
	return airtable.New(cfg, opts...)
}

// Save persists the config to path (Path() when empty) with owner-only permissions.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// MaskedToken shows only the last four characters of the token.
func (c *Config) MaskedToken() string {
	if len(c.Token) <= 4 {
		return strings.Repeat("*", len(c.Token))
	}
	return strings.Repeat("*", 8) + c.Token[len(c.Token)-4:]
}
