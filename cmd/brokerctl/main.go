// Command brokerctl runs maintenance tasks against the Brokerfolio database:
// schema migrations, seeding the default bond universe and one-off price
// refresh or history import runs.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"

	"brokerfolio/internal/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&migrateCmd{}, "database")
	commander.Register(&seedBondsCmd{}, "database")
	commander.Register(&refreshPricesCmd{}, "prices")
	commander.Register(&importHistoryCmd{}, "prices")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	logger.Sync()
	os.Exit(int(status))
}
