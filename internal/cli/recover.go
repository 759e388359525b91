package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/framewise/internal/model"
)

var recoverTimeout time.Duration

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Finish the session's checkpointed generation",
	Long: `Resume completes an interrupted generation from its saved partial text,
without calling a model, however short the partial text is.

Example:
  framewise resume
  framewise resume --session 3f2c... --md out.md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(recoverTimeout)
		defer cancel()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := currentSession(a.cfg)
		if err != nil {
			return err
		}

		result, err := a.pipeline.ResumeFromCheckpoint(ctx, session)
		if err != nil {
			return explain(err)
		}
		return writeResult(result)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <frame>",
	Short: "Resolve the session's framing conflict by choosing a frame",
	Long: `Resolve finishes a result whose text mixed two conflicting frames. The
chosen frame must be one of the pair or a suggested alternative; run
'framewise status' to see the choices.

Example:
  framewise resolve "Nurturant Parent"
  framewise resolve fairness --html out.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(recoverTimeout)
		defer cancel()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := currentSession(a.cfg)
		if err != nil {
			return err
		}

		result, err := a.pipeline.ResolveConflict(ctx, session, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return writeResult(result)
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Drop pending recovery state of a session",
}

var dismissCheckpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Drop the saved partial text",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, session string) error {
			if err := a.pipeline.DismissCheckpoint(session); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Checkpoint dismissed\n")
			return nil
		})
	},
}

var dismissConflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Keep the conflicted result as it is",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, session string) error {
			if err := a.pipeline.DismissConflict(session); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Conflict dismissed\n")
			return nil
		})
	},
}

var dismissCitationCmd = &cobra.Command{
	Use:   "citation <source>",
	Short: "Drop the rejected citations from a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, session string) error {
			removed, err := a.pipeline.DismissCitationError(session, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no rejected citation from %q", args[0])
			}
			fmt.Fprintf(os.Stderr, "✓ Citation errors from %s dismissed\n", args[0])
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending recovery state of a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, session string) error {
			pending := a.pipeline.PendingState(session)
			fmt.Printf("Session: %s\n", session)
			if pending.Empty() {
				fmt.Println("Nothing pending.")
				return nil
			}

			if cp := pending.Checkpoint; cp != nil {
				fmt.Printf("\nCheckpoint: %d characters after %d attempt(s), saved %s\n",
					len([]rune(cp.Text)), cp.AttemptCount, cp.SavedAt.Format(time.RFC3339))
				fmt.Printf("  Request: %q (%s, %s)\n", cp.Request.Topic, cp.Request.ContentType, cp.Request.Region)
				fmt.Println("  Run 'framewise resume' to finish it or 'framewise dismiss checkpoint' to drop it.")
			}
			if c := pending.Conflict; c != nil {
				fmt.Printf("\nFraming conflict: %s vs %s\n", c.Record.Frame1.Name, c.Record.Frame2.Name)
				fmt.Printf("  Choices: %s\n", strings.Join(c.Record.Choices(), ", "))
				fmt.Println("  Run 'framewise resolve <frame>' or 'framewise dismiss conflict'.")
			}
			if len(pending.CitationErrors) > 0 {
				fmt.Printf("\nRejected citations:\n")
				for _, ce := range pending.CitationErrors {
					printCitationError(ce)
				}
				fmt.Println("  Run 'framewise dismiss citation <source>' to acknowledge.")
			}
			return nil
		})
	},
}

func printCitationError(ce model.CitationError) {
	fmt.Printf("  - %s [%s] %s: %s\n", ce.Citation.Source, ce.Kind, ce.Citation.Title, ce.Reason)
	if s := ce.Suggestion; s != nil {
		fmt.Printf("    suggested: %s (%s)\n", s.Title, s.URLString())
	}
}

// withSession runs fn against the current session without a model call
// deadline
func withSession(fn func(a *app, session string) error) error {
	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := currentSession(a.cfg)
	if err != nil {
		return err
	}
	return fn(a, session)
}

func init() {
	for _, c := range []*cobra.Command{resumeCmd, resolveCmd} {
		c.Flags().DurationVar(&recoverTimeout, "timeout", 5*time.Minute, "overall timeout")
		c.Flags().StringVar(&outJSON, "json", "", "output JSON path")
		c.Flags().StringVar(&outMD, "md", "", "output Markdown path")
		c.Flags().StringVar(&outHTML, "html", "", "output HTML path")
		c.Flags().BoolVar(&noAnalysis, "no-analysis", false, "omit the framing analysis from Markdown and HTML output")
	}

	dismissCmd.AddCommand(dismissCheckpointCmd, dismissConflictCmd, dismissCitationCmd)
	rootCmd.AddCommand(resumeCmd, resolveCmd, dismissCmd, statusCmd)
}
