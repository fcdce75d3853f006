//go:build testbuild

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/partitiond/pkg/rocksdb"
)

// resetCmd tears down the singleton DB Manager. It exists only in builds
// tagged testbuild, mirroring the Manager's own test-only Reset: a
// production partitiond binary has no business closing every open
// database on an operator's say-so.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Tear down the storage manager singleton (test builds only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rocksdb.Reset()
		fmt.Println("✓ storage manager reset")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
