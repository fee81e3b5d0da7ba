// Funding Archive Collector CLI
// This application harvests historical funding-rate time series for
// perpetual-futures markets from a remote indexing service and maintains a
// per-market, append-only, deduplicated CSV archive on disk.
//
// Usage:
//
//	fundingarchive run --dest ./data
//	fundingarchive run --dest ./data --date 2026-01-10
//	fundingarchive markets
//
// For detailed help on any command, use: fundingarchive <command> --help
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/johnayoung/go-funding-archiver/internal/archive"
	"github.com/johnayoung/go-funding-archiver/internal/collector"
	"github.com/johnayoung/go-funding-archiver/internal/config"
	"github.com/johnayoung/go-funding-archiver/internal/indexer"
	"github.com/johnayoung/go-funding-archiver/internal/logger"
	"github.com/johnayoung/go-funding-archiver/internal/ratelimit"
)

// CLI version information
const (
	Version = "1.0.0"
	AppName = "fundingarchive"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitInterrupt   = 130
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	// Graceful shutdown: a cancelled run still persists what it accumulated.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "run":
		os.Exit(runCommand(ctx, os.Args[2:]))
	case "markets":
		os.Exit(marketsCommand(ctx, os.Args[2:]))
	case "version":
		fmt.Printf("%s version %s\n", AppName, Version)
		os.Exit(ExitSuccess)
	case "help", "-h", "--help":
		printUsage()
		os.Exit(ExitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(ExitUsageError)
	}
}

func printUsage() {
	fmt.Printf(`%s - perpetual-futures funding-rate archive collector

Usage:
  %s <command> [flags]

Commands:
  run       Harvest funding history and update the CSV archive
  markets   Print the active, well-formed market set
  version   Print version information
  help      Show this help

Run 'fundingarchive <command> --help' for command flags.
`, AppName, AppName)
}

// runtime holds the wired application components for one invocation.
type runtime struct {
	appConfig *config.AppConfig
	logs      *logger.Manager
	client    *indexer.Client
}

// setup loads configuration, applies flag overrides, and wires the logger and
// indexer client.
func setup(configPath string, overrides func(*config.AppConfig)) (*runtime, error) {
	manager := config.NewManager(configPath, nil)
	appConfig, err := manager.Load()
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(appConfig)
	}

	logs, err := logger.NewManager(appConfig.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	limiter := ratelimit.New(appConfig.Indexer.RateLimitRequests, appConfig.Indexer.Window())
	client := indexer.NewClientWithLogger(appConfig.Indexer.BaseURL, limiter, logs.ComponentLogger("indexer"))
	client.SetTimeout(appConfig.Indexer.HTTPTimeout())

	return &runtime{appConfig: appConfig, logs: logs, client: client}, nil
}

func runCommand(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := flags.String("config", "", "path to JSON config file")
	dest := flags.String("dest", "", "destination root for archive writes")
	dataRoot := flags.String("data-root", "", "optional separate root for the merge baseline")
	baseURL := flags.String("base-url", "", "indexer base URL override")
	date := flags.String("date", "", "deployment date: restrict the run to a single UTC day (YYYY-MM-DD)")
	start := flags.String("start", "", "first day of the historical backfill range (YYYY-MM-DD)")
	flags.Parse(args)

	rt, err := setup(*configPath, func(cfg *config.AppConfig) {
		if *dest != "" {
			cfg.Archive.DestRoot = *dest
		}
		if *dataRoot != "" {
			cfg.Archive.DataRoot = *dataRoot
		}
		if *baseURL != "" {
			cfg.Indexer.BaseURL = *baseURL
		}
		if *date != "" {
			cfg.Run.DeploymentDate = *date
		}
		if *start != "" {
			cfg.Run.StartDate = *start
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	defer rt.logs.Close()

	startDate, err := rt.appConfig.Run.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	deploymentDate, err := rt.appConfig.Run.Deployment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	store := archive.NewWriter(
		rt.appConfig.Archive.DestRoot,
		rt.appConfig.Archive.DataRoot,
		rt.logs.ComponentLogger("archive"))

	harvester := collector.New(rt.client, store, &collector.Config{
		StartDate:      startDate,
		DeploymentDate: deploymentDate,
		FetchLimit:     rt.appConfig.Indexer.FetchLimit,
		ActiveStatuses: rt.appConfig.Indexer.ActiveStatuses,
		Logger:         rt.logs.ComponentLogger("collector"),
		Clock:          collector.SystemClock{},
	})

	harvester.Run(ctx)

	if ctx.Err() != nil {
		return ExitInterrupt
	}
	return ExitSuccess
}

func marketsCommand(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("markets", flag.ExitOnError)
	configPath := flags.String("config", "", "path to JSON config file")
	baseURL := flags.String("base-url", "", "indexer base URL override")
	flags.Parse(args)

	rt, err := setup(*configPath, func(cfg *config.AppConfig) {
		if *baseURL != "" {
			cfg.Indexer.BaseURL = *baseURL
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	defer rt.logs.Close()

	catalog := collector.NewCatalog(rt.client, rt.appConfig.Indexer.ActiveStatuses, rt.logs.ComponentLogger("catalog"))

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	for _, ticker := range catalog.ActiveTickers(ctx) {
		fmt.Println(ticker)
	}
	return ExitSuccess
}
