package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rumor-ml/commons.systems/walletparse/internal/config"
	"github.com/rumor-ml/commons.systems/walletparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/walletparse/internal/logging"
	"github.com/rumor-ml/commons.systems/walletparse/internal/output"
	"github.com/rumor-ml/commons.systems/walletparse/internal/pipeline"
	"github.com/rumor-ml/commons.systems/walletparse/internal/posting"
	"github.com/rumor-ml/commons.systems/walletparse/internal/resolve"
	"github.com/rumor-ml/commons.systems/walletparse/internal/scanner"
	"github.com/rumor-ml/commons.systems/walletparse/internal/store"
	"github.com/rumor-ml/commons.systems/walletparse/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	inputPath  = flag.String("input", "", "Statement text file or directory of .txt statements (required)")
	configPath = flag.String("config", "", "YAML run configuration (required)")
	dryRun     = flag.Bool("dry-run", false, "Write the rows that would be inserted as CSV instead of posting")
	dryRunOut  = flag.String("dry-run-output", "", "Dry-run CSV path (default: stdout)")
	minDate    = flag.String("min-date", "", "Skip records dated before YYYY-MM-DD")
	verbose    = flag.Bool("verbose", false, "Console-format diagnostics at debug level")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `walletparse - mobile-wallet statement importer

Usage:
  walletparse [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import one statement rendering
  walletparse -config walletparse.yaml -input statement.txt

  # Preview without writing to the store
  walletparse -config walletparse.yaml -input statements/ -dry-run

  # Only records from mid-October on
  walletparse -config walletparse.yaml -input statement.txt -min-date 2025-10-16

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("walletparse version %s\n", version)
		os.Exit(0)
	}
	if *inputPath == "" || *configPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -input and -config flags are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	log, err := logging.New(*verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	opts := pipeline.Options{DryRun: *dryRun}
	if *minDate != "" {
		cutoff, err := time.Parse("2006-01-02", *minDate)
		if err != nil {
			return fmt.Errorf("invalid -min-date %q, expected YYYY-MM-DD: %w", *minDate, err)
		}
		opts.MinDate = cutoff
	}

	ui.Header("Importing Wallet Statements")
	ui.Step(1, 4, "Loading configuration")

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		return err
	}

	ui.Step(2, 4, "Connecting to store")

	// Store connectivity is fatal before any record is processed.
	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	accounts := cfg.CatalogAccounts()
	if cfg.CatalogSource == config.CatalogFromStore {
		accounts, err = st.LoadAccounts(ctx)
		if err != nil {
			return err
		}
	}
	catalog, err := resolve.NewCatalog(accounts, cfg.DefaultAccount)
	if err != nil {
		return fmt.Errorf("invalid account catalog: %w", err)
	}
	resolver := resolve.New(catalog)
	log.Info("catalog loaded",
		zap.Int("accounts", len(accounts)),
		zap.String("source", string(cfg.CatalogSource)),
		zap.String("default", catalog.Default().Name))

	ui.Step(3, 4, "Scanning statements")

	statements, err := scanner.New(*inputPath).Scan()
	if err != nil {
		return err
	}
	if len(statements) == 0 {
		return fmt.Errorf("no statement files found under %s (expected .txt renderings)", *inputPath)
	}
	ui.Success(fmt.Sprintf("Found %d statement file(s)", len(statements)))

	ui.Step(4, 4, "Parsing and posting")

	detector := dedup.New(st, log)
	engine := posting.New(st, resolver, posting.Options{
		Currency: cfg.Currency,
		Notes:    cfg.Notes,
		Provider: cfg.Provider,
	}, log, time.Now)

	p := pipeline.New(resolver, detector, engine, opts, log)
	stats, dryRows := p.Run(ctx, statements)

	if *dryRun {
		if err := output.WriteCSVFile(*dryRunOut, dryRows); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Dry run: %d row(s) written", len(dryRows)))
	}

	fmt.Fprintln(os.Stderr, "\nRun summary:")
	ui.Summary("Blocks", stats.Blocks)
	ui.Summary("Records parsed", stats.Parsed)
	ui.Summary("Dropped", stats.Dropped)
	ui.Summary("Below min-date", stats.BelowMinDate)
	ui.Summary("Duplicates skipped", stats.Duplicates)
	ui.Summary("Indeterminate checks", stats.Indeterminate)
	ui.Summary("Transfers created", stats.TransfersCreated)
	ui.Summary("Transfers existing", stats.TransfersExisting)
	ui.Summary("Entries created", stats.EntriesCreated)
	ui.Summary("Posting errors", stats.Errors)

	if stats.Indeterminate > 0 {
		ui.Warning("some duplicate checks were indeterminate; re-run may create duplicates")
	}

	fmt.Printf("Inserted %d new row(s)\n", stats.Inserted())
	return nil
}
