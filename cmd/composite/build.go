package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spachava753/composite/internal/models"
	"github.com/spachava753/composite/internal/problems"
	"github.com/spachava753/composite/internal/session"
)

var buildCmd = &cobra.Command{
	Use:   "build <composite.yaml>",
	Short: "Build the requested artifacts of a composite build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, baseDir, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}

		s, err := session.New(cfg, baseDir, session.WithOutput(os.Stdout, os.Stderr))
		if err != nil {
			return err
		}

		result, err := s.Run(cmd.Context())
		if result != nil {
			printSummary(result)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr)
			problems.FromError(err).Render(os.Stderr)
			return errReported
		}
		if result.Cancelled {
			return fmt.Errorf("composite build cancelled")
		}
		return nil
	},
}

func printSummary(result *models.SessionResult) {
	ok := color.New(color.FgGreen)
	failed := color.New(color.FgRed)

	fmt.Printf("\nSession: %s (%s)\n", result.Name, result.SessionID)
	for _, inv := range result.Invocations {
		if inv.Error != nil {
			fmt.Printf("  %s %s %v (%.2fs)\n", failed.Sprint("✗"), inv.Build, inv.Tasks, inv.DurationSec)
			continue
		}
		fmt.Printf("  %s %s %v (%.2fs)\n", ok.Sprint("✓"), inv.Build, inv.Tasks, inv.DurationSec)
	}
	fmt.Printf("Requests: %d\n", result.TotalRequests)
	fmt.Printf("Tasks executed: %d\n", result.TasksExecuted)
	fmt.Printf("Failed builds: %d\n", result.FailedBuilds)
	fmt.Printf("Duration: %.2fs\n", result.TotalDurationSec)
}
