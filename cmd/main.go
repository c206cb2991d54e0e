package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "violin-coach",
		Short: "Violin practice analysis service",
		Long: `violin-coach turns pose keypoints and detected notes into practice
feedback: bow direction, posture quality, rhythm accuracy and note/bow
synchronization, aggregated per session.`,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("violin-coach version %s\n", version)
		},
	}
}
