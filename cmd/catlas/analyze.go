package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas-go/internal/analyzer"
	"github.com/codeatlas/codeatlas-go/internal/cache"
	"github.com/codeatlas/codeatlas-go/internal/graph"
	"github.com/codeatlas/codeatlas-go/internal/linter"
	"github.com/codeatlas/codeatlas-go/internal/logging"
	"github.com/codeatlas/codeatlas-go/internal/parser"
	"github.com/codeatlas/codeatlas-go/internal/progress"
)

var (
	analyzeWorkers int
	analyzeFresh   bool
	analyzeNoLint  bool
	analyzeNoCache bool
	analyzeDryRun  bool
	analyzePolicy  string
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Parse a source tree and build its code graph",
	Long: `Analyze walks the given directory (default: current directory), parses
every supported source file, resolves call relationships and writes the
resulting graph to Neo4j. Parse results are cached; unchanged files are
served from the cache on subsequent runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "parse worker count (default: CPU count)")
	analyzeCmd.Flags().BoolVar(&analyzeFresh, "fresh", false, "clear the graph before building")
	analyzeCmd.Flags().BoolVar(&analyzeNoLint, "no-lint", false, "skip the lint stage")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "parse everything, ignoring the cache")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "parse and resolve without writing to Neo4j")
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", "", "call resolution policy (first-match, same-file-first)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the run summary as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	if analyzeWorkers > 0 {
		cfg.Analysis.Workers = analyzeWorkers
	}
	if analyzeNoLint {
		cfg.Analysis.EnableLinting = false
	}
	if analyzePolicy != "" {
		cfg.Analysis.ResolvePolicy = analyzePolicy
	}

	var cacheMgr *cache.Manager
	if !analyzeNoCache {
		var err error
		cacheMgr, err = cache.NewManager(cfg.Cache.Directory, cfg.Cache.TTL, cfg.Cache.MaxSize, logger)
		if err != nil {
			logger.WithError(err).Warn("Cache unavailable, parsing without it")
			cacheMgr = nil
		}
	}

	var store graph.Store
	if !analyzeDryRun {
		s, err := graph.NewNeo4jStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, logging.Default())
		if err != nil {
			return err
		}
		defer s.Close(ctx)
		store = s

		if analyzeFresh {
			logger.Info("Clearing existing graph")
			if err := s.Clear(ctx); err != nil {
				return err
			}
		}
	}

	parsers := parser.NewRegistry(parser.NewPythonParser())
	var linters *linter.Registry
	if cfg.Analysis.EnableLinting {
		linters = linter.NewRegistry(linter.NewFlake8Linter(logger))
	}

	notifier := progress.NotifierFunc(func(e progress.Event) {
		if e.Completed {
			logger.Debugf("%s: done (%d items in %.1fs)", e.Operation, e.Current, e.Elapsed)
			return
		}
		logger.Debugf("%s: %d/%d (%.1f%%)", e.Operation, e.Current, e.Total, e.Percentage)
	})

	a := analyzer.New(cfg, parsers, linters, cacheMgr, store, logging.Default(), notifier)
	result, err := a.Run(ctx, root)
	if err != nil {
		printSummary(result)
		return err
	}

	printSummary(result)
	return nil
}

func printSummary(result *analyzer.Result) {
	if result == nil {
		return
	}
	if analyzeJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			fmt.Println(string(out))
		}
		return
	}

	fmt.Printf("Run %s\n", result.RunID)
	fmt.Printf("  Files:     %d scanned, %d parsed (%d from cache, %d skipped, %d failed)\n",
		result.FilesScanned, result.FilesParsed, result.FilesFromCache, result.FilesSkipped, result.FilesFailed)
	fmt.Printf("  Entities:  %d classes, %d functions, %d lint findings\n",
		result.Stats.Classes, result.Stats.Functions, result.Stats.Errors)
	fmt.Printf("  Calls:     %d resolved, %d unresolved, %d ambiguous\n",
		result.ResolveStats.Resolved, result.ResolveStats.Unresolved, result.ResolveStats.Ambiguous)
	if result.BuildStats != nil {
		nodes := result.BuildStats.Files + result.BuildStats.Classes +
			result.BuildStats.Functions + result.BuildStats.Methods + result.BuildStats.Errors
		fmt.Printf("  Graph:     %d nodes, %d edges, %d write failures, took %s\n",
			nodes, result.BuildStats.Edges, result.BuildStats.Failures,
			result.BuildStats.Duration.Round(time.Millisecond))
	}
	fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Millisecond))
}
