package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tagsync/internal/resolver"
	"tagsync/internal/syncer"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "tagsync",
		Short:         "Propagate API message tags across controller and service layers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath string
	rootDir    string
	dbPath     string
	verbose    bool
	noInput    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle(err.Error()))
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tagsync.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Project root (overrides project.root)")
	// Default DB path comes from store.path, relative to the project root
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the run history database (SQLite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false, "Never prompt for a missing tag")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(watchCmd)
}

// exitCode separates usage problems (2) from failed runs (1).
func exitCode(err error) int {
	switch {
	case errors.Is(err, resolver.ErrUnresolvableSeed), errors.Is(err, syncer.ErrNoTag), errors.Is(err, syncer.ErrNoLocation):
		return 2
	default:
		return 1
	}
}
