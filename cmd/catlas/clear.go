package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas-go/internal/cache"
	"github.com/codeatlas/codeatlas-go/internal/graph"
	"github.com/codeatlas/codeatlas-go/internal/logging"
)

var (
	clearCache bool
	clearYes   bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every node and edge from the graph",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearCache, "cache", false, "also clear the parse cache")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !clearYes {
		fmt.Print("This deletes the entire graph. Continue? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	store, err := graph.NewNeo4jStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, logging.Default())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.Clear(ctx); err != nil {
		return err
	}
	logger.Info("Graph cleared")

	if clearCache {
		mgr, err := cache.NewManager(cfg.Cache.Directory, cfg.Cache.TTL, cfg.Cache.MaxSize, logger)
		if err != nil {
			return err
		}
		if err := mgr.Clear(); err != nil {
			return err
		}
		logger.Info("Parse cache cleared")
	}
	return nil
}
