// ABOUTME: Local CLI commands that need no API access: CSV export merge and normalization checks
// ABOUTME: Normalize prints the keys and salutations the jobs would compute for given values
package cli

import (
	"fmt"
	"strings"

	"github.com/harperreed/kontakty/csvsource"
	"github.com/harperreed/kontakty/normalize"
	"github.com/harperreed/kontakty/sync"
)

// MergeCSVCommand merges the configured CSV exports into one unified contacts CSV.
func MergeCSVCommand(env *Env, args []string) error {
	fs := env.flags("merge-csv")
	formats := fs.String("formats", "", "CSV export formats file (default: formats_file setting)")
	output := fs.String("output", "kontakty_merged.csv", "Unified CSV to write")
	dryRun := fs.Bool("dry-run", false, "Merge without writing the output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := env.loadConfig()
	if err != nil {
		return err
	}
	path := *formats
	if path == "" {
		path = cfg.FormatsFile
	}
	if path == "" {
		return fmt.Errorf("--formats is required when no formats_file is configured")
	}

	sources, err := csvsource.LoadConfig(path)
	if err != nil {
		return err
	}
	norm, err := env.normalizer(cfg)
	if err != nil {
		return err
	}

	summary, _, err := sync.MergeExports(sources, norm, env.logger(), sync.MergeOptions{Output: *output, DryRun: *dryRun})
	if err != nil {
		return err
	}

	for _, f := range summary.Formats {
		if f.Missing {
			env.printf("  ✗ %s: %s missing\n", f.Name, f.File)
			continue
		}
		env.printf("  %s: %d rows, %d new, %d merged, %d without email\n", f.Name, f.Rows, f.New, f.Merged, f.NoEmail)
	}
	if !*dryRun {
		env.printf("→ Written to %s\n", *output)
	}
	env.printf("✓ %s%s\n", summary, dryRunNote(*dryRun))
	return nil
}

// NormalizeCommand prints normalized forms: `normalize <kind> <value>...`.
func NormalizeCommand(env *Env, args []string) error {
	if len(args) == 0 || (len(args) < 2 && args[0] != "rules") {
		return fmt.Errorf("usage: normalize company|phone|email|domain|salutation|first-name|linkedin <value>, or normalize rules")
	}

	cfg, err := env.loadConfig()
	if err != nil {
		return err
	}
	n, err := env.normalizer(cfg)
	if err != nil {
		return err
	}
	if args[0] == "rules" {
		printRules(env, n.Rules(), cfg.RulesFile)
		return nil
	}

	var fn func(string) string
	switch args[0] {
	case "company":
		fn = func(v string) string {
			if n.IsPlaceholderCompany(v) {
				return "(placeholder)"
			}
			return n.Company(v)
		}
	case "phone":
		fn = n.Phone
	case "email":
		fn = n.FirstEmail
	case "domain":
		fn = func(v string) string {
			d := n.Domain(v)
			if d != "" && n.IsConsumerDomain(d) {
				return d + " (consumer)"
			}
			return d
		}
	case "salutation":
		fn = func(v string) string { return n.Vocative(n.FirstName(v)) }
	case "first-name":
		fn = n.FirstName
	case "linkedin":
		fn = n.LinkedInURL
	default:
		return fmt.Errorf("unknown kind %q", args[0])
	}

	for _, v := range args[1:] {
		out := fn(v)
		if strings.TrimSpace(out) == "" {
			out = "(empty)"
		}
		env.printf("%s → %s\n", v, out)
	}
	return nil
}

func printRules(env *Env, rules normalize.Rules, file string) {
	if file == "" {
		file = "built-in"
	}
	env.printf("Rules: %s\n", file)
	env.printf("  company suffixes:      %d\n", len(rules.CompanySuffixes))
	env.printf("  consumer domains:      %d\n", len(rules.ConsumerDomains))
	env.printf("  placeholder companies: %d\n", len(rules.PlaceholderCompanies))
	env.printf("  phone prefixes:        %s (min %d digits)\n", strings.Join(rules.PhonePrefixes, ", "), rules.MinPhoneDigits)
	env.printf("  titles:                %d\n", len(rules.Titles))
	env.printf("  vocatives:             %d names, %d suffix rules\n", len(rules.Vocatives), len(rules.VocativeRules))
}
