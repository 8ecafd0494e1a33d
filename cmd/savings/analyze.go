package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-savings-must-flow/internal/cli"
	"github.com/Veraticus/the-savings-must-flow/internal/common"
	"github.com/Veraticus/the-savings-must-flow/internal/service"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect spending patterns in a user's transactions",
		Long: `Enrich the user's transactions that were not analyzed within the configured
max age and run the micro-expense, recurring, temporal and category deviation
detectors over them.`,
		RunE: runAnalyze,
	}

	cmd.Flags().Bool("generate", false, "Generate recommendations after analysis")
	cmd.Flags().Bool("json", false, "Print the result as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	generate, _ := cmd.Flags().GetBool("generate")
	asJSON, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}
	eng, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	out := cmd.OutOrStdout()
	if !generate {
		result := eng.Analyze(ctx, userID)
		if asJSON {
			if err := writeJSON(out, result); err != nil {
				return err
			}
		} else {
			_, _ = fmt.Fprintln(out, cli.AnalysisSummary(result))
		}
		if result.Status == service.StatusError {
			return common.NewUserError("Analysis failed", errors.New(result.Message))
		}
		return nil
	}

	result := eng.Run(ctx, userID)
	if asJSON {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(out, cli.AnalysisSummary(result.Analysis))
		_, _ = fmt.Fprintln(out, cli.GenerationSummary(result.Generation))
	}
	if result.Analysis.Status == service.StatusError {
		return common.NewUserError("Analysis failed", errors.New(result.Analysis.Message))
	}
	if result.Generation.Status == service.StatusError {
		return common.NewUserError("Recommendation generation failed", errors.New(result.Generation.Message))
	}
	return nil
}
