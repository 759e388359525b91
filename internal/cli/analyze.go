package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/framewise/internal/framing"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/pipeline"
)

var (
	analyzeRewrite bool
	analyzeFrame   string
	analyzeJSON    string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze the framing of an existing text",
	Long: `Analyze reports the frames, metaphors and effectiveness score of a text
file (or - for stdin) without calling a model.

With --rewrite the text is also rewritten: negative framing is replaced and
the detected frames are reinforced, or the text is reframed toward --frame.

Example:
  framewise analyze draft.md
  framewise analyze draft.md --rewrite --frame Sustainability`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// framesCmd represents the frames command
var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List the frame catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		printFrames(os.Stdout, catalog)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, framesCmd)

	analyzeCmd.Flags().BoolVar(&analyzeRewrite, "rewrite", false, "print a rewritten version of the text")
	analyzeCmd.Flags().StringVar(&analyzeFrame, "frame", "", "reframe toward this frame (implies --rewrite)")
	analyzeCmd.Flags().StringVar(&analyzeJSON, "json", "", "output JSON path")
}

func loadCatalog() (*framing.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Data.CatalogFile == "" {
		return framing.DefaultCatalog(), nil
	}
	catalog, err := framing.LoadCatalogFile(cfg.Data.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load frame catalog: %w", err)
	}
	return catalog, nil
}

func readInput(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	text, err := readInput(args[0])
	if err != nil {
		return err
	}

	analyzer := framing.NewAnalyzer(catalog)
	rewriter := framing.NewRewriter(analyzer)

	if analyzeFrame != "" {
		if _, ok := catalog.Lookup(analyzeFrame); !ok {
			fmt.Fprintf(os.Stderr, "Frame %q is not in the catalog; using the generic template\n", analyzeFrame)
		}
		text = rewriter.ReframeToward(rewriter.AvoidNegativeFrames(text), analyzeFrame)
	} else if analyzeRewrite {
		text = rewriter.ReinforcePositiveFrames(rewriter.AvoidNegativeFrames(text), nil)
	}

	analysis := analyzer.Analyze(text)
	result := &model.ContentResult{
		Text:            text,
		FramingAnalysis: analysis,
		WordCount:       model.CountWords(text),
		Conflict:        framing.NewConflictResolver(catalog).DetectConflicts(analysis.DetectedFrames, text),
	}

	renderer := pipeline.NewRenderer(true)
	if analyzeJSON != "" {
		if err := renderer.RenderJSON(result, analyzeJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", analyzeJSON)
	}

	if analyzeFrame != "" || analyzeRewrite {
		fmt.Print(renderer.Markdown(result))
		return nil
	}
	fmt.Print(pipeline.Analysis(result))
	return nil
}

func printFrames(w io.Writer, catalog *framing.Catalog) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FRAME\tVALUES\tPRIMARY METAPHOR\tCONFLICTS WITH")
	for _, f := range catalog.Frames() {
		var conflicts []string
		for _, other := range catalog.Frames() {
			if other.Name != f.Name && catalog.Conflicts(f.Name, other.Name) {
				conflicts = append(conflicts, other.Name)
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			f.Name, strings.Join(f.Values, ", "), f.PrimaryMetaphor(), strings.Join(conflicts, ", "))
	}
	_ = tw.Flush()
}
