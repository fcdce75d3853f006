package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/partitiond/pkg/partition"
)

var genIDCmd = &cobra.Command{
	Use:   "gen-id",
	Short: "Print a new random InvocationID for hand-authored fixtures",
	Long: `gen-id mints an InvocationID the way an ingress layer would before
handing a ServiceInvocation command to a partition: the state machine never
generates these itself, since Apply must be deterministic given only the
commands it receives.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := partition.NewInvocationID()
		fmt.Println(id.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genIDCmd)
}
