// Package command parses the textual command language typed at the command
// line, bound to keys, or sent over the control socket.
package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrEmpty is returned when the input holds no commands at all.
var ErrEmpty = errors.New("no command given")

type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ParseError describes why one command in an input was rejected.
type ParseError struct {
	Input      string
	Reason     string
	Suggestion string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%q: %s", e.Input, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

type arity struct{ min, max int }

const variadic = -1

var grammar = map[string]arity{
	"quit":      {0, 0},
	"playpause": {0, 0},
	"play":      {0, 0},
	"pause":     {0, 0},
	"stop":      {0, 0},
	"next":      {0, 0},
	"previous":  {0, 0},
	"repeat":    {0, 1},
	"shuffle":   {0, 1},
	"seek":      {1, 1},
	"volup":     {0, 1},
	"voldown":   {0, 1},
	"focus":     {1, 1},
	"save":      {0, 0},
	"unsave":    {0, 0},
	"clear":     {0, 0},
	"add":       {1, variadic},
	"redraw":    {0, 0},
	"help":      {0, 0},
}

var aliases = map[string]string{
	"q":    "quit",
	"x":    "quit",
	"prev": "previous",
}

// Names lists every command the grammar accepts, sorted.
func Names() []string {
	names := make([]string, 0, len(grammar))
	for n := range grammar {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Parse splits input on newlines and semicolons and parses each part. Blank
// parts are skipped. A single malformed part rejects the whole input.
func Parse(input string) ([]Command, error) {
	parts := strings.FieldsFunc(input, func(r rune) bool { return r == '\n' || r == ';' })
	var cmds []Command
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cmd, err := parseOne(part)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, ErrEmpty
	}
	return cmds, nil
}

func parseOne(part string) (Command, error) {
	words, err := split(part)
	if err != nil {
		return Command{}, &ParseError{Input: part, Reason: err.Error()}
	}
	name := strings.ToLower(words[0])
	if full, ok := aliases[name]; ok {
		name = full
	}
	a, ok := grammar[name]
	if !ok {
		return Command{}, &ParseError{Input: part, Reason: "unknown command", Suggestion: suggest(name)}
	}
	args := words[1:]
	if len(args) < a.min || (a.max != variadic && len(args) > a.max) {
		return Command{}, &ParseError{Input: part, Reason: usage(name, a)}
	}
	return Command{Name: name, Args: args}, nil
}

func usage(name string, a arity) string {
	switch {
	case a.max == 0:
		return name + " takes no arguments"
	case a.max == variadic:
		return fmt.Sprintf("%s needs at least %d argument(s)", name, a.min)
	case a.min == a.max:
		return fmt.Sprintf("%s takes exactly %d argument(s)", name, a.min)
	default:
		return fmt.Sprintf("%s takes at most %d argument(s)", name, a.max)
	}
}

func suggest(name string) string {
	ranks := fuzzy.RankFindNormalizedFold(name, Names())
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best.Target
}

// split breaks a command into words. Double quotes group words and a
// backslash escapes the next rune.
func split(s string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped, inWord = true, true
		case r == '"':
			quoted, inWord = !quoted, true
		case unicode.IsSpace(r) && !quoted:
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
