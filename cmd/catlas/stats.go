package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas-go/internal/cache"
	"github.com/codeatlas/codeatlas-go/internal/graph"
	"github.com/codeatlas/codeatlas-go/internal/logging"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored graph and cache statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := graph.NewNeo4jStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, logging.Default())
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	nodes, err := store.NodeCounts(ctx)
	if err != nil {
		return err
	}
	edges, err := store.EdgeCounts(ctx)
	if err != nil {
		return err
	}

	var cacheStats *cache.Stats
	if mgr, err := cache.NewManager(cfg.Cache.Directory, cfg.Cache.TTL, cfg.Cache.MaxSize, logger); err == nil {
		s := mgr.GetStats()
		cacheStats = &s
	}

	if statsJSON {
		out, err := json.MarshalIndent(map[string]any{
			"nodes": nodes,
			"edges": edges,
			"cache": cacheStats,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Nodes:")
	printCounts(nodes)
	fmt.Println("Edges:")
	printCounts(edges)
	if cacheStats != nil {
		fmt.Println("Cache:")
		fmt.Printf("  %-12s %d\n", "disk entries", cacheStats.DiskEntries)
		fmt.Printf("  %-12s %d bytes\n", "total size", cacheStats.TotalSize)
	}
	return nil
}

func printCounts(counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, counts[name])
	}
	if len(names) == 0 {
		fmt.Println("  (none)")
	}
}
