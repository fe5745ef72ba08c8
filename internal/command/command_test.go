package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/tunedeck/internal/command"
)

func TestParseSplitsOnNewlinesAndSemicolons(t *testing.T) {
	cmds, err := command.Parse("next\npause; volup 10\n\n")
	require.NoError(t, err)
	assert.Equal(t, []command.Command{
		{Name: "next"},
		{Name: "pause"},
		{Name: "volup", Args: []string{"10"}},
	}, cmds)
}

func TestParseResolvesAliases(t *testing.T) {
	cmds, err := command.Parse("Q")
	require.NoError(t, err)
	assert.Equal(t, "quit", cmds[0].Name)
}

func TestParseQuotedArguments(t *testing.T) {
	cmds, err := command.Parse(`add spotify:track:1 "Blue in Green" \"x\"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"spotify:track:1", "Blue in Green", `"x"`}, cmds[0].Args)
	assert.Equal(t, `add spotify:track:1 Blue in Green "x"`, cmds[0].String())
}

func TestParseRejectsWholeInput(t *testing.T) {
	cmds, err := command.Parse("next\nbogus!!")
	assert.Nil(t, cmds)

	var perr *command.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bogus!!", perr.Input)
	assert.Equal(t, "unknown command", perr.Reason)
}

func TestParseSuggestsClosestCommand(t *testing.T) {
	_, err := command.Parse("nxt")

	var perr *command.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "next", perr.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "next"`)
}

func TestParseChecksArity(t *testing.T) {
	for _, in := range []string{"pause now", "seek", "focus a b", "add", `add "open`} {
		_, err := command.Parse(in)
		var perr *command.ParseError
		assert.ErrorAs(t, err, &perr, in)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "  ", "\n;\n"} {
		_, err := command.Parse(in)
		assert.ErrorIs(t, err, command.ErrEmpty, "%q", in)
	}
}

func TestNamesSorted(t *testing.T) {
	names := command.Names()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "quit")
}
