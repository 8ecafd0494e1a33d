package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-savings-must-flow/internal/cli"
	"github.com/Veraticus/the-savings-must-flow/internal/engine"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect detected spending patterns",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patterns, largest savings first",
		RunE:  runPatternsList,
	}
	listCmd.Flags().String("status", string(model.PatternActive), "Filter by status (active, resolved, ignored, all)")
	listCmd.Flags().Bool("json", false, "Print patterns as JSON")

	cmd.AddCommand(listCmd)
	return cmd
}

func runPatternsList(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetString("status")
	asJSON, _ := cmd.Flags().GetBool("json")

	var filter model.PatternStatus
	switch model.PatternStatus(status) {
	case model.PatternActive, model.PatternResolved, model.PatternIgnored:
		filter = model.PatternStatus(status)
	case "all":
	default:
		return fmt.Errorf("invalid status %q", status)
	}

	userID, err := requireUser()
	if err != nil {
		return err
	}
	return withEngine(cmd, func(eng *engine.Engine) error {
		patterns, err := eng.Patterns(cmd.Context(), userID, filter)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), patterns)
		}
		if len(patterns) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No patterns found"))
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("Patterns (%d)", len(patterns))))
		return cli.WritePatternTable(cmd.OutOrStdout(), patterns)
	})
}
