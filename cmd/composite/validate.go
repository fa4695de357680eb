package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spachava753/composite/internal/session"
)

var validateCmd = &cobra.Command{
	Use:   "validate <composite.yaml>",
	Short: "Check a composite build and print the nested builds it would run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, baseDir, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}

		plan, err := session.Validate(cmd.Context(), cfg, baseDir)
		if err != nil {
			return err
		}

		fmt.Println("Planned nested builds:")
		for i, inv := range plan.Invocations {
			fmt.Printf("  %d. %s %v\n", i+1, inv.Build, inv.Tasks)
		}
		fmt.Printf("%s %d builds, %d commands\n", color.GreenString("✓"), len(plan.Invocations), len(plan.Commands))
		return nil
	},
}
