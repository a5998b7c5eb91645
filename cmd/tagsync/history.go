package main

import (
	"errors"
	"fmt"

	"tagsync/internal/storage"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded sync runs, or show one run in full",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			run, err := a.store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			title(out, fmt.Sprintf("%s  %s", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05")))
			fmt.Fprintf(out, "seed %s (%s), tag %s: %s\n", run.Seed, run.Mode, run.Tag, run.Message)
			for _, e := range run.Entries {
				fmt.Fprintln(out, "- "+e.String())
			}
			if run.Patch != "" {
				fmt.Fprintln(out)
				fmt.Fprint(out, run.Patch)
			}
			return nil
		}

		runs, err := a.store.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no runs recorded")
			return nil
		}
		for _, r := range runs {
			line := fmt.Sprintf("%s  %s  %-9s %3d target(s) %d file(s)  %s  %s",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Count, r.Files, r.Tag, r.Seed)
			if r.Undone {
				line = render(styles.Muted, line+"  (undone)")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the files written by the most recent sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.sync.Undo(cmd.Context(), a.ws)
		if errors.Is(err, storage.ErrNoRuns) {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to undo")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), render(styles.Success,
			fmt.Sprintf("restored %d file(s) from run %s (%s)", len(run.Images), run.ID, run.Tag)))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to list")
}
