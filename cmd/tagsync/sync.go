package main

import (
	"fmt"
	"strconv"
	"strings"

	"tagsync/internal/syncer"

	"github.com/spf13/cobra"
)

var (
	syncSymbol string
	syncAt     string
	syncTag    string
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the tag of a method or class to every related symbol",
	Example: `  tagsync sync --symbol 'com.acme.AccountController#getAccount'
  tagsync sync --at src/main/java/com/acme/AccountController.java:42 --dry-run
  tagsync sync --symbol com.acme.AccountService --tag "ACC-Q-001 Get account"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := seedRequest(syncSymbol, syncAt)
		if err != nil {
			return err
		}
		req.Tag = syncTag
		req.DryRun = syncDryRun

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.sync.Sync(cmd.Context(), req)
		if rep != nil {
			out := cmd.OutOrStdout()
			printReport(out, rep)
			if rep.DryRun && rep.Patch != "" {
				fmt.Fprintln(out)
				fmt.Fprint(out, rep.Patch)
			}
			if rep.RunID != "" && !rep.DryRun {
				fmt.Fprintln(out, render(styles.Muted, "run "+rep.RunID))
			}
		}
		if err != nil {
			return err
		}
		if rep.Failed() {
			return fmt.Errorf("%s", rep.Message)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncSymbol, "symbol", "s", "", "Seed symbol: Type, Type#method or Type#method(Params)")
	syncCmd.Flags().StringVar(&syncAt, "at", "", "Seed position: path/File.java:LINE")
	syncCmd.Flags().StringVarP(&syncTag, "tag", "t", "", "Tag to use when the seed carries none")
	syncCmd.Flags().BoolVarP(&syncDryRun, "dry-run", "n", false, "Print the patch instead of writing")
	syncCmd.MarkFlagsMutuallyExclusive("symbol", "at")
	syncCmd.MarkFlagsOneRequired("symbol", "at")
}

// seedRequest builds the seed part of a request from --symbol or --at.
func seedRequest(symbol, at string) (syncer.Request, error) {
	if symbol != "" {
		return syncer.Request{Symbol: symbol}, nil
	}
	path, line, err := parsePosition(at)
	if err != nil {
		return syncer.Request{}, err
	}
	return syncer.Request{Path: path, Line: line}, nil
}

func parsePosition(at string) (string, int, error) {
	i := strings.LastIndex(at, ":")
	if i <= 0 || i == len(at)-1 {
		return "", 0, fmt.Errorf("--at %q: want path:line: %w", at, syncer.ErrNoLocation)
	}
	line, err := strconv.Atoi(at[i+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("--at %q: bad line number: %w", at, syncer.ErrNoLocation)
	}
	return at[:i], line, nil
}
