package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate memory and per-database usage",
	Long: `Stats prints the Memory Budget's aggregate counters alongside a
per-database size snapshot, the same data points Collector samples into
Prometheus on a timer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadManager(cmd)
		if err != nil {
			return err
		}

		stats := mgr.GetMemoryUsageStats()

		fmt.Println("Memory Budget:")
		fmt.Printf("  Cache capacity:    %d bytes\n", stats.CacheCapacityBytes)
		fmt.Printf("  Memtable ceiling:  %d bytes\n", stats.MemtableCeilingBytes)
		fmt.Printf("  Memtable usage:    %d bytes\n", stats.MemtableUsageBytes)
		fmt.Printf("  Open databases:    %d\n", stats.OpenDatabases)

		if len(stats.PerDatabase) == 0 {
			fmt.Println("\nNo databases open.")
			return nil
		}

		fmt.Println()
		fmt.Printf("%-20s %-10s %-15s %s\n", "NAME", "CFs", "SIZE (bytes)", "MEMTABLE (bytes)")
		for name, db := range stats.PerDatabase {
			fmt.Printf("%-20s %-10d %-15d %d\n", name, db.ColumnFamilies, db.SizeBytes, db.MemtableUsage)
		}
		return nil
	},
}
