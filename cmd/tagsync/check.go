package main

import (
	"errors"
	"fmt"
	"io"

	"tagsync/internal/analysis"
	"tagsync/internal/git"
	"tagsync/internal/inspect"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	checkChanged string
	checkFix     bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report untagged entry methods and services missing their callers' tag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// nil scope inspects every type
		var scope []string
		if cmd.Flags().Changed("changed") {
			changes, err := git.ChangedFiles(ctx, a.ws.Root(), checkChanged)
			if err != nil {
				return err
			}
			impact, err := analysis.NewAnalyzer(a.ws).AnalyzeImpact(changes)
			if err != nil {
				return err
			}
			scope = impact.All()
			a.logger.Debug("impact analysis",
				zap.Int("files", len(changes)),
				zap.Int("direct", len(impact.DirectlyAffected)),
				zap.Int("indirect", len(impact.IndirectlyAffected)))
			if len(scope) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changed types")
				return nil
			}
		}

		ds, err := a.inspector.Check(ctx, scope)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printDiagnostics(out, ds)
		if len(ds) == 0 || !checkFix {
			if len(ds) > 0 {
				return fmt.Errorf("%d problem(s) found", len(ds))
			}
			return nil
		}

		failed, manual := 0, 0
		for _, d := range ds {
			rep, err := a.inspector.Fix(ctx, d)
			switch {
			case errors.Is(err, inspect.ErrNoQuickFix):
				manual++
				fmt.Fprintln(out, render(styles.Muted, "needs a manual fix: "+d.Label))
			case err != nil:
				failed++
				fmt.Fprintln(out, errorStyle(fmt.Sprintf("%s: %v", d.Label, err)))
			case rep != nil:
				printReport(out, rep)
			default:
				fmt.Fprintln(out, render(styles.Success, "fixed "+d.Label))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d fix(es) failed", failed)
		}
		if manual > 0 {
			return fmt.Errorf("%d problem(s) need a manual fix", manual)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkChanged, "changed", "", "Only inspect types changed against a git ref (default HEAD)")
	checkCmd.Flags().Lookup("changed").NoOptDefVal = "HEAD"
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "Apply the quick fix of every diagnostic")
}

func printDiagnostics(w io.Writer, ds []inspect.Diagnostic) {
	for _, d := range ds {
		fmt.Fprintln(w, render(styles.Warning, d.String()))
	}
	if len(ds) > 0 {
		fmt.Fprintln(w, render(styles.Muted, fmt.Sprintf("%d problem(s)", len(ds))))
	}
}
