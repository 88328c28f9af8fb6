package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/subcommands"

	"brokerfolio/internal/database"
	"brokerfolio/internal/logger"
	"brokerfolio/internal/services"
)

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

// --- migrateCmd ---

type migrateCmd struct {
	source string
}

func (*migrateCmd) Name() string { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply, roll back or inspect SQL migrations" }
func (*migrateCmd) Usage() string {
	return `brokerctl migrate [-source <url>] up | down [N] | version

  up       applies every pending migration
  down N   rolls back N migrations (default 1)
  version  prints the current schema version
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "source", database.DefaultMigrationsSource, "Migration source URL.")
}

func (c *migrateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	e, err := loadEnv(false)
	if err != nil {
		return fail(err)
	}
	mig, err := database.NewMigrator(database.NewConfig(e.cfg), c.source)
	if err != nil {
		return fail(err)
	}
	defer database.CloseMigrator(mig)
	log := logger.Get()

	switch f.Arg(0) {
	case "up":
		if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fail(fmt.Errorf("migration up failed: %w", err))
		}
		log.Info("Migrations applied successfully")

	case "down":
		steps := 1
		if f.NArg() > 1 {
			steps, err = strconv.Atoi(f.Arg(1))
			if err != nil || steps < 1 {
				return fail(fmt.Errorf("invalid step count %q", f.Arg(1)))
			}
		}
		if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fail(fmt.Errorf("migration down failed: %w", err))
		}
		log.Infof("Rolled back %d migration(s)", steps)

	case "version":
		version, dirty, err := mig.Version()
		if err != nil {
			return fail(fmt.Errorf("failed to get version: %w", err))
		}
		log.Infof("Version: %d, Dirty: %v", version, dirty)

	default:
		fmt.Fprintf(os.Stderr, "unknown migrate command %q\n\n%s", f.Arg(0), c.Usage())
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}

// --- seedBondsCmd ---

type seedBondsCmd struct{}

func (*seedBondsCmd) Name() string { return "seed-bonds" }
func (*seedBondsCmd) Synopsis() string {
	return "create the default sovereign bond universe if no instrument exists"
}
func (*seedBondsCmd) Usage() string {
	return `brokerctl seed-bonds

  Creates the default bonds when the instrument table is empty. Does
  nothing otherwise.
`
}
func (*seedBondsCmd) SetFlags(*flag.FlagSet) {}

func (*seedBondsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := loadEnv(true)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	created, err := services.NewInstrumentService(e.db.DB()).SeedDefaultBonds()
	if err != nil {
		return fail(err)
	}
	if len(created) == 0 {
		fmt.Println("instruments already tracked, nothing seeded")
		return subcommands.ExitSuccess
	}
	for _, inst := range created {
		fmt.Println(inst.Symbol)
	}
	fmt.Printf("seeded %d bonds\n", len(created))
	return subcommands.ExitSuccess
}

// --- refreshPricesCmd ---

type refreshPricesCmd struct{}

func (*refreshPricesCmd) Name() string { return "refresh-prices" }
func (*refreshPricesCmd) Synopsis() string { return "run one price refresh cycle now" }
func (*refreshPricesCmd) Usage() string {
	return `brokerctl refresh-prices

  Fetches the current quote of every tracked instrument and records it.
  Symbols that fail are listed; they do not stop the others.
`
}
func (*refreshPricesCmd) SetFlags(*flag.FlagSet) {}

func (*refreshPricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := loadEnv(true)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	pricing, err := e.pricing()
	if err != nil {
		return fail(err)
	}
	result, err := pricing.RefreshPrices(ctx)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("updated %d of %d instruments in %s\n", result.Updated, result.Requested, result.Duration.Round(time.Millisecond))
	if result.Summary != "" {
		fmt.Println(result.Summary)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- importHistoryCmd ---

type importHistoryCmd struct {
	days  int
	pause time.Duration
}

func (*importHistoryCmd) Name() string { return "import-history" }
func (*importHistoryCmd) Synopsis() string {
	return "backfill daily closing prices from the quote provider"
}
func (*importHistoryCmd) Usage() string {
	return `brokerctl import-history [-days N] [-pause D]

  Downloads up to N days of daily history for every tracked instrument
  and stores one sample per day. Existing samples are overwritten.
`
}

func (c *importHistoryCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 180, "Number of days of history to import.")
	f.DurationVar(&c.pause, "pause", 500*time.Millisecond, "Pause between instruments.")
}

func (c *importHistoryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.days < 1 {
		fmt.Fprintln(os.Stderr, "Error: -days must be positive")
		return subcommands.ExitUsageError
	}

	e, err := loadEnv(true)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	pricing, err := e.pricing()
	if err != nil {
		return fail(err)
	}
	result, err := pricing.ImportHistory(ctx, c.days, c.pause)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("imported %d samples for %d instruments\n", result.Samples, result.Instruments)
	for _, symbol := range result.Skipped {
		fmt.Printf("  skipped %s: no history\n", symbol)
	}
	if len(result.Failed) == 0 {
		return subcommands.ExitSuccess
	}
	symbols := make([]string, 0, len(result.Failed))
	for symbol := range result.Failed {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		fmt.Printf("  failed %s: %s\n", symbol, result.Failed[symbol])
	}
	return subcommands.ExitFailure
}
