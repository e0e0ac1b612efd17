// Package main runs one aggregation pass per network and exits.
//
// Usage:
//
//	aggregate [use-cache] [-config config.yaml] [-network name ...]
//	aggregate [-config config.yaml] [-network name ...] [use-cache]
//
// The optional positional argument answers pool account lookups from the
// account cache instead of RPC where possible.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"amm-stats/internal/app"
	"amm-stats/internal/config"
	"amm-stats/internal/logging"
)

type networkList []string

func (n *networkList) String() string { return strings.Join(*n, ",") }

func (n *networkList) Set(v string) error {
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*n = append(*n, name)
		}
	}
	return nil
}

// cliOptions holds the parsed command line.
type cliOptions struct {
	configPath string
	networks   networkList
	useCache   bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(opts.configPath, opts.networks, opts.useCache); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs accepts the use-cache argument either before the flags or after
// them. flag.Parse stops at the first non-flag argument, so a leading
// positional is taken off before parsing.
func parseArgs(args []string) (cliOptions, error) {
	opts := cliOptions{}
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", envOr("CONFIG", "config.yaml"), "Path to the YAML configuration")
	fs.Var(&opts.networks, "network", "Network to aggregate (repeatable, comma separated, or \"all\")")

	var positional []string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = append(positional, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	for _, a := range fs.Args() {
		if strings.HasPrefix(a, "-") {
			return opts, fmt.Errorf("flag %q after positional arguments", a)
		}
	}
	positional = append(positional, fs.Args()...)

	useCache, err := parseUseCache(positional)
	if err != nil {
		return opts, err
	}
	opts.useCache = useCache
	return opts, nil
}

func run(configPath string, selected []string, useCache bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	names, err := app.Networks(cfg, selected)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	publisher, client, err := app.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	logger.Info("aggregation starting",
		zap.Strings("networks", names),
		zap.Bool("use_cache", useCache),
	)

	start := time.Now()
	var failed []string
	for _, name := range names {
		orch, err := app.NewOrchestrator(cfg, name, stores, app.RunOptions{
			UseCachedAccounts: useCache,
			Publisher:         publisher,
		}, logger)
		if err != nil {
			return err
		}
		if _, err := orch.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed = append(failed, name)
		}
	}

	logger.Info("aggregation finished",
		zap.Int("networks", len(names)),
		zap.Strings("failed", failed),
		zap.Duration("duration", time.Since(start)),
	)
	if len(failed) > 0 {
		return fmt.Errorf("aggregation failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// parseUseCache reads the optional positional flag. Any value accepted by
// strconv.ParseBool or the literal "use-cache" is allowed.
func parseUseCache(args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	if len(args) > 1 {
		return false, fmt.Errorf("unexpected arguments: %v", args[1:])
	}
	if args[0] == "use-cache" {
		return true, nil
	}
	v, err := strconv.ParseBool(args[0])
	if err != nil {
		return false, fmt.Errorf("invalid use-cache argument %q", args[0])
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
