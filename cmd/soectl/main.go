// Command soectl is the operator-facing CLI over the same core the
// HTTP server wires up: evaluate, plan, profiles, report, and export
// each do one thing against file-based JSON/YAML input and print their
// result to stdout, with no store of any kind behind them. serve starts
// the long-running HTTP server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tracepack/mfgplan/pkg/compliance"
	"github.com/tracepack/mfgplan/pkg/config"
	"github.com/tracepack/mfgplan/pkg/export"
	"github.com/tracepack/mfgplan/pkg/plan"
	"github.com/tracepack/mfgplan/pkg/profiles"
	"github.com/tracepack/mfgplan/pkg/soe"
	"github.com/tracepack/mfgplan/pkg/standards"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint proper, taking args and output streams as
// parameters so subcommand dispatch is directly testable.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "evaluate":
		return runEvaluate(args[2:], stdout, stderr)
	case "plan":
		return runPlan(args[2:], stdout, stderr)
	case "profiles":
		return runProfiles(args[2:], stdout, stderr)
	case "report":
		return runReport(args[2:], stdout, stderr)
	case "export":
		return runExport(args[2:], stdout, stderr)
	case "serve":
		return runServe()
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "soectl: unknown command %q\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: soectl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  evaluate  run the standards overlay engine, print the resulting run")
	fmt.Fprintln(w, "  plan      generate a manufacturing plan from an SOE run")
	fmt.Fprintln(w, "  profiles  list or show profiles/industries/bundles in a catalog dir")
	fmt.Fprintln(w, "  report    render a compliance report for a plan+run pair")
	fmt.Fprintln(w, "  export    export an approved plan in csv/placement_csv/json")
	fmt.Fprintln(w, "  serve     start the HTTP server")
}

// mapProfileLookup, mapBundleLookup, and mapIndustryLookup adapt a plain
// catalog map to the soe.Engine's Get(id) (T, bool) lookup interfaces
// without requiring a live store.
type mapProfileLookup map[string]*profiles.StandardsProfile

func (m mapProfileLookup) Get(id string) (*profiles.StandardsProfile, bool) { p, ok := m[id]; return p, ok }

type mapBundleLookup map[string]*profiles.ProfileBundle

func (m mapBundleLookup) Get(id string) (*profiles.ProfileBundle, bool) { b, ok := m[id]; return b, ok }

type mapIndustryLookup map[string]*profiles.IndustryProfile

func (m mapIndustryLookup) Get(id string) (*profiles.IndustryProfile, bool) { i, ok := m[id]; return i, ok }

func loadEngine(packsDir, profilesDir string) (*soe.Engine, error) {
	cat := standards.NewCatalog()
	if err := cat.LoadDir(packsDir); err != nil {
		return nil, fmt.Errorf("load packs: %w", err)
	}
	catalog, err := config.LoadProfileCatalog(profilesDir)
	if err != nil {
		return nil, fmt.Errorf("load profile catalog: %w", err)
	}
	formulas, err := soe.NewFormulaEvaluator()
	if err != nil {
		return nil, fmt.Errorf("init formula evaluator: %w", err)
	}
	return &soe.Engine{
		Profiles:   mapProfileLookup(catalog.Profiles),
		Bundles:    mapBundleLookup(catalog.Bundles),
		Industries: mapIndustryLookup(catalog.Industries),
		Packs:      cat,
		Formulas:   formulas,
	}, nil
}

func runEvaluate(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		packsDir        string
		profilesDir     string
		runID           string
		industry        string
		hardwareClass   string
		activeProfiles  string
		bundleID        string
		allowDeprecated bool
	)
	cmd.StringVar(&packsDir, "packs-dir", "./catalog/packs", "directory of standards pack manifests")
	cmd.StringVar(&profilesDir, "profiles-dir", "./catalog/profiles", "directory of profile/industry/bundle YAML files")
	cmd.StringVar(&runID, "run-id", "cli-run", "SOE run id to attach to the result")
	cmd.StringVar(&industry, "industry", "", "industry_profile (REQUIRED)")
	cmd.StringVar(&hardwareClass, "hardware-class", "", "hardware_class")
	cmd.StringVar(&activeProfiles, "active-profiles", "", "comma-separated profile ids")
	cmd.StringVar(&bundleID, "bundle", "", "profile bundle id")
	cmd.BoolVar(&allowDeprecated, "allow-deprecated", false, "accept deprecated profiles in the active stack")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if industry == "" {
		fmt.Fprintln(stderr, "soectl evaluate: -industry is required")
		return 2
	}

	eng, err := loadEngine(packsDir, profilesDir)
	if err != nil {
		fmt.Fprintf(stderr, "soectl evaluate: %v\n", err)
		return 1
	}

	var active []string
	if activeProfiles != "" {
		active = strings.Split(activeProfiles, ",")
	}

	run, err := eng.Evaluate(soe.Input{
		RunID:           runID,
		IndustryProfile: industry,
		HardwareClass:   hardwareClass,
		ActiveProfiles:  active,
		ProfileBundleID: bundleID,
		AllowDeprecated: allowDeprecated,
	})
	if err != nil {
		fmt.Fprintf(stderr, "soectl evaluate: %v\n", err)
		return 1
	}
	return writeJSONTo(stdout, stderr, run)
}

func runPlan(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("plan", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		quoteID string
		tier    int
		runPath string
	)
	cmd.StringVar(&quoteID, "quote-id", "", "quote id (REQUIRED)")
	cmd.IntVar(&tier, "tier", 1, "plan tier")
	cmd.StringVar(&runPath, "run", "", "path to an SOE run JSON file (as printed by 'evaluate'); omit for a baseline-only plan")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if quoteID == "" {
		fmt.Fprintln(stderr, "soectl plan: -quote-id is required")
		return 2
	}

	var run *soe.Run
	if runPath != "" {
		run = &soe.Run{}
		if err := readJSONFile(runPath, run); err != nil {
			fmt.Fprintf(stderr, "soectl plan: %v\n", err)
			return 1
		}
	}

	p, err := plan.Generate(plan.Quote{QuoteID: quoteID, Tier: tier}, run)
	if err != nil {
		fmt.Fprintf(stderr, "soectl plan: %v\n", err)
		return 1
	}
	return writeJSONTo(stdout, stderr, p)
}

func runProfiles(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("profiles", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		profilesDir string
		id          string
	)
	cmd.StringVar(&profilesDir, "profiles-dir", "./catalog/profiles", "directory of profile/industry/bundle YAML files")
	cmd.StringVar(&id, "id", "", "show a single profile id instead of listing every profile")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	catalog, err := config.LoadProfileCatalog(profilesDir)
	if err != nil {
		fmt.Fprintf(stderr, "soectl profiles: %v\n", err)
		return 1
	}

	if id != "" {
		p, ok := catalog.Profiles[id]
		if !ok {
			fmt.Fprintf(stderr, "soectl profiles: unknown profile %q\n", id)
			return 1
		}
		return writeJSONTo(stdout, stderr, p)
	}
	return writeJSONTo(stdout, stderr, catalog.Profiles)
}

func runReport(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("report", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		planPath    string
		runPath     string
		format      string
		generatedBy string
		generatedAt string
	)
	cmd.StringVar(&planPath, "plan", "", "path to a plan JSON file (REQUIRED)")
	cmd.StringVar(&runPath, "run", "", "path to the plan's SOE run JSON file (REQUIRED)")
	cmd.StringVar(&format, "format", "html", "report format")
	cmd.StringVar(&generatedBy, "generated-by", "soectl", "generated_by attribution")
	cmd.StringVar(&generatedAt, "generated-at", "", "generated_at timestamp (RFC3339, REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if planPath == "" || runPath == "" || generatedAt == "" {
		fmt.Fprintln(stderr, "soectl report: -plan, -run and -generated-at are required")
		return 2
	}

	var p plan.DatumPlan
	if err := readJSONFile(planPath, &p); err != nil {
		fmt.Fprintf(stderr, "soectl report: %v\n", err)
		return 1
	}
	var run *soe.Run
	if runPath != "" {
		run = &soe.Run{}
		if err := readJSONFile(runPath, run); err != nil {
			fmt.Fprintf(stderr, "soectl report: %v\n", err)
			return 1
		}
	}

	report, err := compliance.Generate(&p, run, format, generatedBy, generatedAt)
	if err != nil {
		fmt.Fprintf(stderr, "soectl report: %v\n", err)
		return 1
	}
	return writeJSONTo(stdout, stderr, report)
}

func runExport(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		planPath    string
		runPath     string
		profilesDir string
		format      string
		generatedAt string
		outPath     string
	)
	cmd.StringVar(&planPath, "plan", "", "path to a plan JSON file (REQUIRED)")
	cmd.StringVar(&runPath, "run", "", "path to the plan's SOE run JSON file")
	cmd.StringVar(&profilesDir, "profiles-dir", "./catalog/profiles", "directory of profile YAML files, for deprecated-profile findings")
	cmd.StringVar(&format, "format", string(export.FormatJSON), "csv|placement_csv|json")
	cmd.StringVar(&generatedAt, "generated-at", "", "export_generated_at timestamp (RFC3339, REQUIRED)")
	cmd.StringVar(&outPath, "out", "", "output path; defaults to stdout")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if planPath == "" || generatedAt == "" {
		fmt.Fprintln(stderr, "soectl export: -plan and -generated-at are required")
		return 2
	}

	var p plan.DatumPlan
	if err := readJSONFile(planPath, &p); err != nil {
		fmt.Fprintf(stderr, "soectl export: %v\n", err)
		return 1
	}
	var run *soe.Run
	if runPath != "" {
		run = &soe.Run{}
		if err := readJSONFile(runPath, run); err != nil {
			fmt.Fprintf(stderr, "soectl export: %v\n", err)
			return 1
		}
	}
	catalog, err := config.LoadProfileCatalog(profilesDir)
	if err != nil {
		fmt.Fprintf(stderr, "soectl export: %v\n", err)
		return 1
	}

	body, err := export.Export(&p, run, catalog.Profiles, export.Format(format), generatedAt)
	if err != nil {
		fmt.Fprintf(stderr, "soectl export: %v\n", err)
		return 1
	}

	if outPath == "" {
		_, werr := stdout.Write(body)
		return exitOn(werr, stderr)
	}
	return exitOn(os.WriteFile(outPath, body, 0o644), stderr)
}

// runServe delegates to the server bootstrap in server.go; serve is the
// one soectl subcommand that does not exit after a single operation.
func runServe() int {
	return run()
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSONTo(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "soectl: encode output: %v\n", err)
		return 1
	}
	return 0
}

func exitOn(err error, stderr io.Writer) int {
	if err != nil {
		fmt.Fprintf(stderr, "soectl: %v\n", err)
		return 1
	}
	return 0
}
