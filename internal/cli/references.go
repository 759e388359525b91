package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/framewise/internal/references"
)

var indexTimeout time.Duration

var referencesCmd = &cobra.Command{
	Use:   "references",
	Short: "Manage the local reference library",
}

var referencesIndexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Index Markdown, text and HTML documents for reference search",
	Long: `Index walks a directory and adds every .md, .txt and .html file to the
SQLite full-text reference library. Unchanged files are skipped on re-runs.

Enable reference enrichment with 'references.enabled: true' in the config
file or --references on generate.

Example:
  framewise references index ./papers`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := references.Open(cfg.References.DBPath, cfg.References)
		if err != nil {
			return fmt.Errorf("open reference library: %w", err)
		}
		defer func() { _ = store.Close() }()

		var w io.Writer
		if verbose {
			w = os.Stderr
		}
		summary, err := store.IndexDir(ctx, args[0], w)
		if err != nil {
			return fmt.Errorf("index %s: %w", args[0], err)
		}

		total, err := store.Count(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "✓ Indexed %d, updated %d, skipped %d, failed %d (%d documents in %s)\n",
			summary.Indexed, summary.Updated, summary.Skipped, summary.Failed, total, cfg.References.DBPath)
		return nil
	},
}

func init() {
	referencesIndexCmd.Flags().DurationVar(&indexTimeout, "timeout", 10*time.Minute, "overall timeout")

	referencesCmd.AddCommand(referencesIndexCmd)
	rootCmd.AddCommand(referencesCmd)
}
