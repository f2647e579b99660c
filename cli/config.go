// ABOUTME: Config CLI commands
// ABOUTME: Stores credentials once and shows where every setting comes from
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/harperreed/kontakty/config"
	"golang.org/x/term"
)

// ConfigCommand routes `config init` and `config show`.
func ConfigCommand(env *Env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("config requires a subcommand: init or show")
	}
	switch args[0] {
	case "init":
		return ConfigInitCommand(env, args[1:])
	case "show":
		return ConfigShowCommand(env, args[1:])
	}
	return fmt.Errorf("unknown config command: %s", args[0])
}

// ConfigInitCommand writes token and base id to the config file, prompting for missing values.
func ConfigInitCommand(env *Env, args []string) error {
	fs := env.flags("config init")
	token := fs.String("token", "", "Personal access token")
	baseID := fs.String("base-id", "", "Base id (app...)")
	apiURL := fs.String("api-url", "", "API root (default: public API)")
	rules := fs.String("rules", "", "Normalization rules overlay (YAML)")
	formats := fs.String("formats", "", "CSV export formats file (YAML)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := env.ConfigPath
	if path == "" {
		path = config.Path()
	}
	// Environment and .env values are overrides for one run, never persisted.
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(env.In)
	if *baseID == "" && cfg.BaseID == "" {
		v, err := env.prompt(reader, "Base id: ")
		if err != nil {
			return err
		}
		*baseID = v
	}
	if *token == "" && cfg.Token == "" {
		v, err := env.promptSecret(reader, "Token: ")
		if err != nil {
			return err
		}
		*token = v
	}

	if *token != "" {
		cfg.Token = *token
	}
	if *baseID != "" {
		cfg.BaseID = *baseID
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *rules != "" {
		cfg.RulesFile = *rules
	}
	if *formats != "" {
		cfg.FormatsFile = *formats
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return err
	}

	env.printf("✓ Config saved to %s\n", path)
	env.printf("  Base: %s\n", cfg.BaseID)
	env.printf("  Token: %s\n", cfg.MaskedToken())
	return nil
}

func (e *Env) prompt(r *bufio.Reader, label string) (string, error) {
	e.printf("%s", label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal.
func (e *Env) promptSecret(r *bufio.Reader, label string) (string, error) {
	if !e.Interactive {
		return e.prompt(r, label)
	}
	e.printf("%s", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	e.println()
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// ConfigShowCommand prints the effective configuration with the token masked.
func ConfigShowCommand(env *Env, args []string) error {
	fs := env.flags("config show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := env.loadConfig()
	if err != nil {
		return err
	}

	path := env.ConfigPath
	if path == "" {
		path = config.Path()
	}

	env.printf("Config file:  %s\n", path)
	if cfg.Token == "" {
		env.printf("Token:        ✗ not set\n")
	} else {
		env.printf("Token:        %s (from %s)\n", cfg.MaskedToken(), cfg.TokenSource)
	}
	env.printf("Base:         %s\n", dash(cfg.BaseID))
	env.printf("API:          %s\n", cfg.APIURL)
	env.printf("Rules:        %s\n", dash(cfg.RulesFile))
	env.printf("Formats:      %s\n", dash(cfg.FormatsFile))
	env.printf("Snapshots:    %s\n", cfg.SnapshotDB)
	env.println()
	env.printf("Tables:       %s, %s, %s\n", cfg.Schema.Contacts.Table, cfg.Schema.Companies.Table, cfg.Schema.Deals.Table)
	return nil
}
