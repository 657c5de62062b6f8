package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-learn/internal/app"
	"github.com/p-n-ai/pai-learn/internal/scenario"
	"github.com/p-n-ai/pai-learn/internal/tui"
)

func newScenarioCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Inspect, validate and play branching scenarios",
	}
	cmd.AddCommand(
		newScenarioOverviewCommand(opts),
		newScenarioValidateCommand(),
		newScenarioPlayCommand(opts),
	)
	return cmd
}

func newScenarioOverviewCommand(opts *options) *cobra.Command {
	var xlsxPath string
	cmd := &cobra.Command{
		Use:   "overview <file|scenario-id>",
		Short: "Print the decision tree of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := opts.loadScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ov := scenario.Analyze(sc)
			printOverview(cmd.OutOrStdout(), ov)

			if xlsxPath == "" {
				return nil
			}
			f, err := os.Create(xlsxPath)
			if err != nil {
				return err
			}
			if err := scenario.ExportXLSX(f, ov); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsxPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also export the overview to this spreadsheet file")
	return cmd
}

func printOverview(w io.Writer, ov scenario.Overview) {
	fmt.Fprintf(w, "%s (%s)\n", ov.Title, ov.ScenarioID)
	for _, col := range ov.Columns {
		ids := make([]string, len(col.Decisions))
		for i, d := range col.Decisions {
			ids[i] = d.ID
		}
		fmt.Fprintf(w, "  level %d: %s\n", col.Level, strings.Join(ids, ", "))
	}
	if ov.Tree == nil {
		fmt.Fprintln(w, "no level 1 decision")
		return
	}
	fmt.Fprintln(w)
	ov.Tree.Walk(func(depth int, n *scenario.Node) {
		indent := strings.Repeat("    ", depth)
		fmt.Fprintf(w, "%s[%d] %s\n", indent, n.Decision.Level, n.Decision.Title)
		for _, b := range n.Branches {
			fmt.Fprintf(w, "%s  - %s (%s, %+d) -> %s\n", indent, b.Choice.Text, b.Choice.Branch(), b.Choice.Points, b.Label())
		}
	})
}

func newScenarioValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Load scenario files and report structural findings",
		Long: "Load scenario files (or every .json/.yaml file under a directory) and report " +
			"level mismatches, dangling references and duplicate ids. Only load errors fail the command.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := scenarioFiles(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range files {
				sc, err := scenario.LoadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				printAudit(out, path, scenario.AuditLevels(sc))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenario files failed to load", failed, len(files))
			}
			return nil
		},
	}
}

func scenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".json", ".yaml", ".yml":
				if !d.IsDir() {
					files = append(files, path)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func printAudit(w io.Writer, path string, a scenario.Audit) {
	if a.Clean() {
		fmt.Fprintf(w, "ok   %s\n", path)
		return
	}
	fmt.Fprintf(w, "warn %s\n", path)
	if a.EntryID == "" {
		fmt.Fprintln(w, "  no level 1 decision")
	}
	for _, id := range a.ExtraEntries {
		fmt.Fprintf(w, "  extra level 1 decision %s is never the entry\n", id)
	}
	for _, li := range a.Levels {
		if !li.Reachable {
			fmt.Fprintf(w, "  decision %s (level %d) is unreachable\n", li.DecisionID, li.Level)
			continue
		}
		fmt.Fprintf(w, "  decision %s has level %d but is reached at depth %d\n", li.DecisionID, li.Level, li.Depth)
	}
	for _, d := range a.Dangling {
		fmt.Fprintf(w, "  choice %s of %s points at missing decision %s\n", d.ChoiceID, d.DecisionID, d.TargetID)
	}
	for _, id := range a.DuplicateIDs {
		fmt.Fprintf(w, "  duplicate decision id %s\n", id)
	}
}

func newScenarioPlayCommand(opts *options) *cobra.Command {
	var (
		unlockID string
		noColor  bool
		delay    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "play <file|scenario-id>",
		Short: "Play a scenario in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if unlockID != "" {
				client, err := opts.backend()
				if err != nil {
					return err
				}
				res, err := client.UnlockContent(ctx, unlockID)
				if err != nil {
					return fmt.Errorf("unlock scenario: %w", err)
				}
				if !res.Unlocked {
					return fmt.Errorf("content %s is still locked", unlockID)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "unlocked %s (%d credits left)\n", unlockID, res.RemainingCredits)
			}

			sc, err := opts.loadScenario(ctx, args[0])
			if err != nil {
				return err
			}

			if delay == 0 {
				delay = opts.cfg.Scenario.FeedbackDelay
			}
			tuiOpts := tui.Options{NoColor: noColor, FeedbackDelay: delay}

			router, err := app.NewAIRouter(opts.cfg.AI)
			if err != nil {
				return err
			}
			if router.HasProvider() {
				debriefer := scenario.NewDebriefer(router)
				tuiOpts.Debrief = func(ctx context.Context, snap scenario.Snapshot) (string, error) {
					return debriefer.Debrief(ctx, sc, snap)
				}
			}

			model, err := tui.NewModel(sc, tuiOpts)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&unlockID, "unlock", "", "Unlock this content id with the backend before playing")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Feedback delay before moving on (default LEARN_SCENARIO_FEEDBACK_DELAY)")
	return cmd
}
