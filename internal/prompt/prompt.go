// Package prompt asks for a missing tag on the terminal.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tagsync/internal/tag"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

var ErrNotTerminal = errors.New("stdin is not a terminal")

// Terminal prompts with a huh input field. Answers must contain a tag.
type Terminal struct {
	codec      *tag.Codec
	accessible bool
	in         io.Reader
	out        io.Writer
}

type Option func(*Terminal)

// WithAccessible switches huh to its line-based mode, for screen readers
// and dumb terminals.
func WithAccessible(on bool) Option { return func(t *Terminal) { t.accessible = on } }

func WithIO(in io.Reader, out io.Writer) Option {
	return func(t *Terminal) { t.in, t.out = in, out }
}

// New returns ErrNotTerminal when stdin is piped, so that callers run
// without a prompter instead of blocking.
func New(codec *tag.Codec, opts ...Option) (*Terminal, error) {
	return newTerminal(isTerminal(os.Stdin.Fd()), codec, opts...)
}

func newTerminal(tty bool, codec *tag.Codec, opts ...Option) (*Terminal, error) {
	if !tty {
		return nil, ErrNotTerminal
	}
	if codec == nil {
		codec = tag.Default()
	}
	t := &Terminal{codec: codec}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PromptString shows one input field. ok is false when the user aborts.
func (t *Terminal) PromptString(title, message string) (string, bool, error) {
	var value string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Description(message).
			Placeholder("ACC-Q-001 Get account").
			Value(&value).
			Validate(t.validate),
	)).WithAccessible(t.accessible)
	if t.in != nil {
		form = form.WithInput(t.in)
	}
	if t.out != nil {
		form = form.WithOutput(t.out)
	}

	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(value), true, nil
}

func (t *Terminal) validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("enter a tag")
	}
	if _, ok := t.codec.Extract(s); !ok {
		return fmt.Errorf("%q does not contain a tag", s)
	}
	return nil
}
