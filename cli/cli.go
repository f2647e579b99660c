// ABOUTME: Shared plumbing for CLI commands: config loading, API client and job runner setup
// ABOUTME: Commands write human-readable progress to Env.Out and return errors to main
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/config"
	"github.com/harperreed/kontakty/normalize"
	"github.com/harperreed/kontakty/sync"
)

// Env is what every command receives from main.
type Env struct {
	Ctx        context.Context
	ConfigPath string
	Logger     *log.Logger
	Out        io.Writer
	In         io.Reader
	// Interactive is true when stdin is a terminal.
	Interactive bool
}

// NewEnv returns an Env on the process streams.
func NewEnv(ctx context.Context, configPath string, logger *log.Logger, interactive bool) *Env {
	return &Env{
		Ctx:         ctx,
		ConfigPath:  configPath,
		Logger:      logger,
		Out:         os.Stdout,
		In:          os.Stdin,
		Interactive: interactive,
	}
}

func (e *Env) context() context.Context {
	if e.Ctx == nil {
		return context.Background()
	}
	return e.Ctx
}

func (e *Env) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

func (e *Env) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.Out, format, args...)
}

func (e *Env) println(args ...any) {
	_, _ = fmt.Fprintln(e.Out, args...)
}

// flags builds a flag set that reports errors instead of exiting.
func (e *Env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.Out)
	return fs
}

func (e *Env) loadConfig() (*config.Config, error) {
	return config.Load(e.ConfigPath)
}

// normalizer builds the normalizer from the configured rules overlay.
func (e *Env) normalizer(cfg *config.Config) (*normalize.Normalizer, error) {
	if cfg.RulesFile == "" {
		return normalize.Default(), nil
	}
	rules, err := normalize.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return normalize.New(rules), nil
}

func (e *Env) client(cfg *config.Config) (*airtable.Client, error) {
	return cfg.Client(airtable.WithLogger(e.logger()))
}

// runner loads config and wires the API client, rules and schema into a job runner.
func (e *Env) runner() (*sync.Runner, *config.Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := e.client(cfg)
	if err != nil {
		return nil, nil, err
	}
	norm, err := e.normalizer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sync.NewRunner(client, norm, cfg.Schema, e.logger()), cfg, nil
}

func dryRunNote(dryRun bool) string {
	if dryRun {
		return " (dry run, nothing written)"
	}
	return ""
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
