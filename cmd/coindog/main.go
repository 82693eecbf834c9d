// Command coindog watches exchange markets for Supertrend BUY/SELL signals
// and optionally simulates orders against a virtual balance.
//
// Usage:
//
//	coindog [watch] [flags]        poll tracked markets (default)
//	coindog info [flags]           exchange status, tracked markets, balance
//	coindog search <query>         fuzzy search exchange symbols
//	coindog add <symbol>           track a symbol
//	coindog remove <query>         stop tracking the best matching symbol
//	coindog analyze [--trade]      replay the candle snapshot through the signal rules
//	coindog gateway [flags]        serve the websocket stream relayed from redis
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/logger"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error
}

var commands = []command{
	{"watch", "poll tracked markets for signals", runWatch},
	{"info", "show exchange status, tracked markets and balance", runInfo},
	{"search", "search exchange symbols: search <query>", runSearch},
	{"add", "track a symbol: add <symbol>", runAdd},
	{"remove", "untrack the best matching symbol: remove <query>", runRemove},
	{"analyze", "replay the candle snapshot through the signal rules", runAnalyze},
	{"gateway", "serve the websocket stream relayed from redis", runGateway},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "coindog:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "help" {
		printUsage()
		return nil
	}
	cmd, args, err := pick(args)
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("coindog "+cmd.name, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "coindog %s: %s\n\n", cmd.name, cmd.usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load("", fs)
	if err != nil {
		return err
	}

	outputs := cfg.Log.Output
	if cmd.name == "watch" && cfg.Watch.TUI && onlyStdout(outputs) {
		// the status view owns the terminal
		outputs = []string{"coindog.log"}
	}
	log := logger.Init("coindog", logger.ParseLevel(cfg.Log.Level), outputs...)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cmd.run(ctx, cfg, log, fs.Args())
}

// pick selects the subcommand; watch is the default.
func pick(args []string) (command, []string, error) {
	if len(args) == 0 || len(args[0]) == 0 || args[0][0] == '-' {
		return commands[0], args, nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c, args[1:], nil
		}
	}
	return command{}, nil, fmt.Errorf("unknown command %q", args[0])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: coindog <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
}

func onlyStdout(outputs []string) bool {
	for _, o := range outputs {
		if o != "stdout" {
			return false
		}
	}
	return true
}
