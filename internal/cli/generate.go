package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/pipeline"
	"github.com/ppiankov/framewise/internal/validate"
)

var (
	genRegion       string
	genType         string
	genModel        string
	genFrame        string
	genTemperature  float64
	genMaxTokens    int
	genReferenceURL string
	genReferences   bool
	genSemantic     bool
	genStream       bool
	genTimeout      time.Duration
	outJSON         string
	outMD           string
	outHTML         string
	noAnalysis      bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Generate framed content about a topic",
	Long: `Generate writes a piece of content about a topic for an audience region:
- Build a prompt from the content type template and regional policy context
- Optionally add snippets from the local reference library and a reference URL
- Walk the model fallback chain, retrying rate limits and transient failures
- Rewrite threat, control and replacement framing into constructive language
- Analyze frames and metaphors and validate citations

If every model fails, whatever text was produced is kept as a checkpoint and
the next generate for the same request resumes from it.

Example:
  framewise generate "AI in schools" --region us --type op_ed
  framewise generate "AI and jobs" --region eu --frame Fairness --md out.md
  framewise generate "AI in healthcare" --stream --references --semantic`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Request flags
	generateCmd.Flags().StringVar(&genRegion, "region", "global", "audience region ("+strings.Join(model.SupportedRegions, ", ")+")")
	generateCmd.Flags().StringVar(&genType, "type", string(model.ContentArticle), "content type ("+contentTypeList()+")")
	generateCmd.Flags().StringVar(&genModel, "model", "", "model to start the fallback chain with")
	generateCmd.Flags().StringVar(&genFrame, "frame", "", "reframe the result toward this frame")
	generateCmd.Flags().Float64Var(&genTemperature, "temperature", 0, "sampling temperature (default from config)")
	generateCmd.Flags().IntVar(&genMaxTokens, "max-tokens", 0, "max output tokens (default from config)")
	generateCmd.Flags().StringVar(&genReferenceURL, "reference-url", "", "page to use as reference material")
	generateCmd.Flags().BoolVar(&genReferences, "references", false, "add snippets from the local reference library")
	generateCmd.Flags().BoolVar(&genSemantic, "semantic", false, "match any term, ranked by relevance, in reference search")
	generateCmd.Flags().BoolVar(&genStream, "stream", false, "print text as it is generated")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 10*time.Minute, "overall timeout")

	// Output flags
	generateCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	generateCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	generateCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path")
	generateCmd.Flags().BoolVar(&noAnalysis, "no-analysis", false, "omit the framing analysis from Markdown and HTML output")
}

func contentTypeList() string {
	names := make([]string, len(model.SupportedContentTypes))
	for i, ct := range model.SupportedContentTypes {
		names[i] = string(ct)
	}
	return strings.Join(names, ", ")
}

// commandContext is cancelled by the timeout or Ctrl-C
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(genTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	session := startSession(a.cfg)
	req := model.ContentRequest{
		Topic:           strings.Join(args, " "),
		Region:          genRegion,
		ContentType:     model.ContentType(genType),
		Model:           genModel,
		Temperature:     genTemperature,
		MaxOutputTokens: genMaxTokens,
		TargetFrame:     genFrame,
		ReferenceURL:    genReferenceURL,
		UseReferences:   genReferences,
		UseSemantic:     genSemantic,
	}

	fmt.Fprintf(os.Stderr, "Session: %s\n", session)
	if verbose {
		fmt.Fprintf(os.Stderr, "Topic: %s | Region: %s | Type: %s\n", req.Topic, req.Region, req.ContentType)
		fmt.Fprintf(os.Stderr, "Models: %s\n", strings.Join(chainNames(a.cfg), " → "))
	}

	var result *model.ContentResult
	if genStream {
		result, err = streamResult(ctx, a.pipeline, session, req)
	} else {
		result, err = a.pipeline.Generate(ctx, session, req)
	}
	if err != nil {
		return explain(err)
	}

	return writeResult(result)
}

// streamResult prints increments to stdout as they arrive
func streamResult(ctx context.Context, p *pipeline.Pipeline, session string, req model.ContentRequest) (*model.ContentResult, error) {
	sp := &streamPrinter{out: os.Stdout, notices: os.Stderr}
	for result, err := range p.GenerateStreaming(ctx, session, req) {
		if err != nil {
			sp.end()
			return nil, err
		}
		if result.Partial {
			sp.write(result)
			continue
		}
		if sp.printed > 0 {
			_, _ = fmt.Fprint(sp.out, "\n\n--- framed result ---\n\n")
		}
		return result, nil
	}
	return nil, errors.New("stream ended without a result")
}

// streamPrinter writes only the new tail of each increment. A restarted
// attempt is announced on notices and printed from its beginning.
type streamPrinter struct {
	out     io.Writer
	notices io.Writer
	printed int
}

func (sp *streamPrinter) write(result *model.ContentResult) {
	if result.Restarted {
		sp.end()
		_, _ = fmt.Fprintf(sp.notices, "\n--- retrying with %s (attempt %d), output restarts ---\n\n", result.Model, result.Attempt)
		sp.printed = 0
	}
	if len(result.Text) > sp.printed {
		_, _ = fmt.Fprint(sp.out, result.Text[sp.printed:])
		sp.printed = len(result.Text)
	}
}

// end terminates a partially printed line
func (sp *streamPrinter) end() {
	if sp.printed > 0 {
		_, _ = fmt.Fprintln(sp.out)
	}
}

// writeResult renders the result to the requested files, or stdout when
// none was requested
func writeResult(result *model.ContentResult) error {
	renderer := pipeline.NewRenderer(!noAnalysis)

	if outJSON != "" {
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outMD)
	}
	if outHTML != "" {
		if err := renderer.RenderHTML(result, outHTML); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outHTML)
	}

	if outJSON == "" && outMD == "" && outHTML == "" {
		fmt.Println(result.Text)
	}

	renderer.RenderSummary(os.Stderr, result)
	return nil
}

func chainNames(cfg model.Config) []string {
	names := make([]string, len(cfg.Generation.Models))
	for i, m := range cfg.Generation.Models {
		names[i] = m.Name
	}
	return names
}

// explain turns pipeline errors into an actionable message
func explain(err error) error {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid request:\n  - %s", strings.Join(verr.Violations, "\n  - "))
	}

	var gerr *pipeline.GenerationError
	if !errors.As(err, &gerr) {
		return err
	}

	var hint string
	switch gerr.Recovery.SuggestedAction {
	case pipeline.ActionResumePartial:
		hint = "partial output was saved; run 'framewise resume' or repeat the command to continue"
	case pipeline.ActionRetry, pipeline.ActionFallback:
		hint = "the failure looks temporary; try again shortly"
	case pipeline.ActionReconfigure:
		hint = "check provider API keys and the model list ('framewise config show')"
	case pipeline.ActionRephrase:
		hint = "the provider blocked the content; rephrase the topic"
	}
	if hint == "" {
		return err
	}
	return fmt.Errorf("%w\n  hint: %s", err, hint)
}
