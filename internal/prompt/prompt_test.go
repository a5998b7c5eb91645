package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresTerminal(t *testing.T) {
	_, err := newTerminal(false, nil)
	assert.ErrorIs(t, err, ErrNotTerminal)

	term, err := newTerminal(true, nil, WithAccessible(true))
	require.NoError(t, err)
	assert.True(t, term.accessible)
}

func TestValidate(t *testing.T) {
	term, err := newTerminal(true, nil)
	require.NoError(t, err)

	for _, tc := range []struct {
		in string
		ok bool
	}{
		{"ACC-Q-001 Get account", true},
		{"  ACC-Q-001  ", true},
		{"", false},
		{"   ", false},
		{"no tag here", false},
	} {
		err := term.validate(tc.in)
		if tc.ok {
			assert.NoError(t, err, tc.in)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}
