package main

import (
	"fmt"
	"io"
	"os"

	"tagsync/internal/propagate"
	"tagsync/internal/syncer"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

var styles = struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1),
}

var styled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func render(s lipgloss.Style, text string) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

func errorStyle(text string) string { return render(styles.Error, "error: "+text) }

func title(w io.Writer, text string) {
	fmt.Fprintln(w, render(styles.Title, text))
}

// printReport writes the headline and then one line per audit entry.
func printReport(w io.Writer, rep *syncer.Report) {
	headline := rep.Message
	switch rep.Status {
	case syncer.StatusSynced:
		headline = render(styles.Success, headline)
	case syncer.StatusError:
		headline = render(styles.Error, headline)
	default:
		headline = render(styles.Muted, headline)
	}
	if styled {
		headline = styles.Box.Render(headline)
	}
	fmt.Fprintln(w, headline)

	for _, e := range rep.Entries {
		line := "- " + e.String()
		switch e.Action {
		case propagate.Failed:
			line = render(styles.Error, line)
		case propagate.Skipped:
			line = render(styles.Muted, line)
		}
		fmt.Fprintln(w, line)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintln(w, render(styles.Warning, "warning: "+warn))
	}
}
