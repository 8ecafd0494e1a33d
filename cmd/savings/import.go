package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-savings-must-flow/internal/cli"
	"github.com/Veraticus/the-savings-must-flow/internal/ingest"
	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX, YAML or JSON files",
		Long: `Import transactions for a user. Files are recognized by extension:
.ofx and .qfx bank exports, .yaml/.yml/.json transaction lists.

Re-importing a file is safe: transactions already stored are skipped.

Examples:
  savings import --user me ~/Downloads/chase_*.qfx
  savings import --user me transactions.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Parse files without saving")
	cmd.Flags().Bool("no-progress", false, "Hide the progress bar")

	return cmd
}

// expandFiles resolves glob patterns, keeping plain paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	return files, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}
	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to import")
	}

	var progress *cli.Progress
	if !noProgress {
		progress = cli.NewProgress(cmd.ErrOrStderr(), len(files), "Importing files...")
	}

	var all []*model.Transaction
	for _, file := range files {
		txns, err := ingest.ReadFile(ctx, file, userID)
		if err != nil {
			return err
		}
		slog.Debug("Parsed file", "file", file, "transactions", len(txns))
		all = append(all, txns...)
		if progress != nil {
			progress.Step()
		}
	}
	if progress != nil {
		progress.Finish()
	}

	out := cmd.OutOrStdout()
	if dryRun {
		_, _ = fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Parsed %d transactions from %d files (dry run, nothing saved)", len(all), len(files))))
		return nil
	}

	eng, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	saved, err := eng.Import(ctx, all)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d already stored)", saved, len(all)-saved)))
	return nil
}
