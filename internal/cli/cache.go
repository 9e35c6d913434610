package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts",
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cached entry",
	RunE:  runCachePurge,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	rc, err := openCache()
	if err != nil {
		return err
	}
	stats := rc.Stats()
	fmt.Printf("Directory:      %s\n", cfg.Cache.Dir)
	fmt.Printf("Disk entries:   %d\n", stats.DiskEntries)
	fmt.Printf("Memory entries: %d (approximate)\n", stats.MemoryEntries)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	rc, err := openCache()
	if err != nil {
		return err
	}
	if err := rc.Purge(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Cache purged.")
	return nil
}
