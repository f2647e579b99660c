// ABOUTME: Entry point for the kontakty CLI
// ABOUTME: Parses global flags, sets up logging and routes to CLI commands
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kontakty/cli"
	"github.com/harperreed/kontakty/logging"
	"golang.org/x/term"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file (default: ~/.local/share/kontakty/config.json)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text, json, logfmt")

	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("kontakty version %s\n", version)
		os.Exit(0)
	}

	logger, err := logging.Setup(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := cli.NewEnv(ctx, *configPath, logger, term.IsTerminal(int(os.Stdin.Fd())))

	command := args[0]
	commandArgs := args[1:]

	var run func(*cli.Env, []string) error
	switch command {
	case "config":
		run = cli.ConfigCommand
	case "tables":
		run = cli.TablesCommand
	case "fields":
		run = cli.FieldsCommand
	case "upsert":
		run = cli.UpsertCommand
	case "salutations":
		run = cli.SalutationsCommand
	case "link":
		run = cli.LinkCommand
	case "ensure-companies":
		run = cli.EnsureCompaniesCommand
	case "dedupe-companies":
		run = cli.DedupeCompaniesCommand
	case "duplicates":
		run = cli.DuplicatesCommand
	case "audit":
		run = cli.AuditCommand
	case "remap":
		run = cli.RemapCommand
	case "convert-field":
		run = cli.ConvertFieldCommand
	case "deals":
		run = cli.DealsCommand
	case "link-hr":
		run = cli.LinkHRCommand
	case "merge-csv":
		run = cli.MergeCSVCommand
	case "normalize":
		run = cli.NormalizeCommand
	case "snapshot":
		run = cli.SnapshotCommand
	case "version":
		fmt.Printf("kontakty version %s\n", version)
		return
	case "help":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := run(env, commandArgs); err != nil {
		log.Error("command failed", "command", command, "err", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`kontakty v%s - CRM base maintenance toolkit

USAGE:
  kontakty [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version                 Show version and exit
  --config <path>           Config file (default: ~/.local/share/kontakty/config.json)
  --log-level <level>       debug, info, warn or error (default: info)
  --log-format <format>     text, json or logfmt (default: text)

SETUP:
  kontakty config init      Store token and base id
    --token <token>           Personal access token (prompted when missing)
    --base-id <id>            Base id (prompted when missing)
    --api-url <url>           API root override
    --rules <file>            Normalization rules overlay (YAML)
    --formats <file>          CSV export formats file (YAML)
  kontakty config show      Show the effective configuration

SCHEMA:
  kontakty tables           List tables of the base
  kontakty fields <table>   List fields of a table (name or tbl... id)

CONTACTS:
  kontakty upsert           Create or update contacts from a unified CSV
    --csv <file>              Unified contacts CSV (required)
    --table <name|id>         Target table (default: contacts table)
    --email-column <name>     CSV column holding the email (default: Email)
    --overwrite-empty         Write empty cells over existing values
    --skip-unknown-fields     Drop columns the table does not have
    --dry-run, --limit <n>
  kontakty salutations      Fill salutations from first names
    --overwrite               Recompute filled salutations
    --verbose                 List every change
    --dry-run, --limit <n>
  kontakty duplicates       Report contacts sharing phone, email or company domain
    --json <file>             Write the full report as JSON
    --show <n>                Groups to print per section (default: 10)

COMPANIES:
  kontakty link             Link contacts and deals to companies
    --table <which>           contacts, deals or all (default: all)
    --exact-only              Do not suggest loose matches
    --accept-all              Write every suggestion without review
    --dry-run, --limit <n>
  kontakty ensure-companies Create companies that contacts mention
    --csv <file>              Take names from a unified CSV
    --skip-link               Do not link contacts afterwards
    --dry-run
  kontakty dedupe-companies Merge companies sharing a normalized name
    --no-snapshot             Skip the local snapshot
    --min-key <n>             Ignore shorter keys (default: 3)
    --dry-run
  kontakty link-hr          Add HR contacts to the HR links of their companies
    --dry-run

DEALS:
  kontakty deals link-contacts    Link deals to contacts by email, then phone
    --dry-run, --limit <n>
  kontakty deals create-contacts  Create contacts for deal people not in the base
    --dry-run, --limit <n>
  kontakty deals dedupe           Merge deals entered twice for one company
    --no-snapshot             Skip the local snapshot
    --min-key <n>             Ignore shorter keys (default: 3)
    --dry-run
  kontakty deals names            Build names as "company | request | date"
    --overwrite               Rebuild names that are already set
    --verbose                 List every rename
    --dry-run, --limit <n>

DATA QUALITY:
  kontakty audit            Missing fields, duplicate emails, value distributions
    --table <name>            Audit one table
  kontakty remap            Rewrite field values through a YAML value map
    --map <file>              Value map (required)
    --dry-run, --limit <n>
  kontakty convert-field    Replace a text field with a select field of mapped values
    --map <file>              Value map (required)
    --type <type>             singleSelect or multipleSelects (default: singleSelect)
    --temp-name <name>        Field name while values are copied
    --no-snapshot             Skip the local snapshot
    --dry-run

LOCAL:
  kontakty merge-csv        Merge CSV exports into one unified contacts CSV
    --formats <file>          Formats file (default: formats_file setting)
    --output <file>           Output CSV (default: kontakty_merged.csv)
    --dry-run
  kontakty normalize <kind> <value>...
                            kind: company, phone, email, domain, salutation, first-name, linkedin
  kontakty normalize rules  Show the active normalization rules
  kontakty snapshot save <table> [--reason <text>] [--view <name>] [--filter <formula>]
  kontakty snapshot list [--table <name>]
  kontakty snapshot show <id> [--output <file>]
  kontakty snapshot prune [--table <name>] [--keep <n>]

ENVIRONMENT:
  AIRTABLE_TOKEN / AIRTABLE_API_KEY, AIRTABLE_BASE_ID, AIRTABLE_TABLE,
  KONTAKTY_API_URL, KONTAKTY_RULES, KONTAKTY_FORMATS, KONTAKTY_SNAPSHOT_DB
  A .env file in the working directory is read too.
`, version)
}
