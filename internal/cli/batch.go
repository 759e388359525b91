package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/pipeline"
	"github.com/ppiankov/framewise/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	metricsAddr  string
	batchRegion  string
	batchType    string
	batchFrame   string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Generate content for many topics in parallel",
	Long: `Batch generates content for every topic in a file, one per line:
- Lines may override region and type: "topic | region | type"
- Blank lines and # comments are skipped, duplicate requests run once
- Each topic runs in its own session with the shared fallback chain
- One Markdown and one JSON file is written per successful topic

Example:
  framewise batch topics.txt
  framewise batch topics.txt --concurrency 4 --output-dir ./out
  framewise batch topics.txt --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./framewise-output", "output directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	batchCmd.Flags().StringVar(&batchRegion, "region", "global", "default audience region")
	batchCmd.Flags().StringVar(&batchType, "type", string(model.ContentArticle), "default content type")
	batchCmd.Flags().StringVar(&batchFrame, "frame", "", "reframe every result toward this frame")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := commandContext(batchTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	workers := concurrency
	if workers <= 0 {
		workers = a.cfg.Batch.Concurrency
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Framewise Batch Generation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Models:       %s\n", strings.Join(chainNames(a.cfg), " → "))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if metricsAddr != "" {
		stop := serveMetrics(a, metricsAddr)
		defer stop()
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n\n", metricsAddr)
	}

	base := model.ContentRequest{
		Region:      batchRegion,
		ContentType: model.ContentType(batchType),
		TargetFrame: batchFrame,
	}
	processor := worker.NewBatchProcessor(a.pipeline, workers, a.logger)

	fmt.Fprintf(os.Stderr, "⚙️  Generating with %d workers...\n\n", workers)
	results, err := processor.ProcessFile(ctx, file, base)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(true)
	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Request.Topic, r.Error)
			var gerr *pipeline.GenerationError
			if errors.As(r.Error, &gerr) && gerr.Recovery.CanResumePartial {
				fmt.Fprintf(os.Stderr, "  partial output kept; resume with --session %s\n", r.Session)
			}
			continue
		}

		slug := fmt.Sprintf("%03d-%s", r.Index+1, sanitizeFilename(r.Request.Topic))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(r.Result, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", r.Request.Topic, err)
			continue
		}
		if err := renderer.RenderMarkdown(r.Result, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", r.Request.Topic, err)
			continue
		}

		line := fmt.Sprintf("✓ %s (effectiveness: %d/100, %s, %v)",
			r.Request.Topic, r.Result.FramingAnalysis.Effectiveness, r.Result.Model, r.Duration.Round(time.Second))
		if r.Result.Conflict != nil {
			line += fmt.Sprintf(" ⚠ conflict, resolve with --session %s", r.Session)
		}
		fmt.Fprintln(os.Stderr, line)
	}

	succeeded, failed := worker.Summarize(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d topics\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failed > 0 && succeeded == 0 {
		return fmt.Errorf("all %d topics failed", failed)
	}
	return nil
}

// serveMetrics exposes the app's registry until the returned func is called
func serveMetrics(a *app, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// sanitizeFilename turns a topic into a file name
func sanitizeFilename(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var sb strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}

	out := strings.TrimSuffix(sb.String(), "-")
	if len(out) > 80 {
		out = strings.TrimSuffix(out[:80], "-")
	}
	if out == "" {
		out = "untitled"
	}
	return out
}
