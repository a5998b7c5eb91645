package main

import (
	"fmt"
	"io"
	"strings"

	"tagsync/internal/model"
	"tagsync/internal/resolver"

	"github.com/spf13/cobra"
)

var (
	resolveSymbol string
	resolveAt     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the symbols a sync would touch, without writing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// Locate before the read scope; the workspace locks on its own.
		var seed *model.Symbol
		if resolveSymbol != "" {
			seed, err = a.ws.FindSymbol(resolveSymbol)
		} else {
			var path string
			var line int
			if path, line, err = parsePosition(resolveAt); err == nil {
				seed, err = a.ws.SymbolAt(path, line)
			}
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		return a.ws.RunInReadScope(cmd.Context(), func(v model.View) error {
			if cur, ok := v.Lookup(seed.ID); ok {
				seed = cur
			}
			mode := resolver.MethodSeed
			if seed.Kind == model.KindType {
				mode = resolver.ClassSeed
			}
			rs, err := a.resolver.Resolve(cmd.Context(), v, seed, mode)
			if err != nil {
				return err
			}
			related := make(map[string][]*model.Symbol, len(rs.Controllers))
			for _, c := range rs.Controllers {
				if related[c.ID], err = a.resolver.RelatedMethods(cmd.Context(), v, c, seed); err != nil {
					return err
				}
			}
			printRelations(out, a, rs, related)
			return nil
		})
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveSymbol, "symbol", "s", "", "Seed symbol: Type, Type#method or Type#method(Params)")
	resolveCmd.Flags().StringVar(&resolveAt, "at", "", "Seed position: path/File.java:LINE")
	resolveCmd.MarkFlagsMutuallyExclusive("symbol", "at")
	resolveCmd.MarkFlagsOneRequired("symbol", "at")
}

func printRelations(w io.Writer, a *app, rs *resolver.RelationSet, related map[string][]*model.Symbol) {
	classify := a.resolver.Classifier().Classify
	line := func(indent string, s *model.Symbol) {
		fmt.Fprintf(w, "%s%s %s\n", indent, s.Describe(), render(styles.Muted, "["+classify(s).String()+"]"))
	}

	title(w, fmt.Sprintf("%s (%s seed, %s)", rs.Seed.Describe(), rs.Mode, rs.Layer))
	for _, s := range rs.Types {
		line("  ", s)
	}
	for _, g := range rs.Groups {
		line("  ", g.Type)
		for _, m := range g.Methods {
			line("    ", m)
		}
	}
	for _, c := range rs.Controllers {
		line("  ", c)
		if len(related[c.ID]) == 0 {
			fmt.Fprintln(w, render(styles.Muted, "    no related methods"))
		}
		for _, m := range related[c.ID] {
			line("    ", m)
		}
	}
	for _, s := range rs.Others {
		line("  ", s)
	}
	if rs.Empty() {
		fmt.Fprintln(w, render(styles.Warning, "  no related targets"))
	}
	if rs.Mode == resolver.ClassSeed {
		status := fmt.Sprintf("closure: %d iteration(s)", rs.Iterations)
		if rs.Capped {
			status += ", capped"
		}
		fmt.Fprintln(w, render(styles.Muted, status))
	}

	if len(rs.Discovery) == 0 {
		return
	}
	title(w, "implementation discovery")
	for _, d := range rs.Discovery {
		fmt.Fprintf(w, "  %s -> %s\n", d.Interface, strings.Join(d.Found, ", "))
		for _, t := range d.Tiers {
			stat := fmt.Sprintf("    %-10s candidates=%d accepted=%d", t.Tier, t.Candidates, t.Accepted)
			if len(t.Rejected) > 0 {
				stat += " rejected=" + strings.Join(t.Rejected, ",")
			}
			if t.Err != nil {
				stat += " error=" + t.Err.Error()
			}
			fmt.Fprintln(w, stat)
		}
	}
}
