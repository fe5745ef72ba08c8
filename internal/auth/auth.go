// Package auth finds the token used to talk to the playback daemon.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

const EnvToken = "TUNEDECK_TOKEN"

var ErrNoCredentials = errors.New("no backend credentials: set " + EnvToken + ", backend.token, or run interactively")

type Credentials struct {
	Token  string
	Source string
}

// Options lists the places a token may come from, in lookup order.
type Options struct {
	Getenv      func(string) string
	ConfigToken string
	// CacheFile holds a token entered at a previous prompt.
	CacheFile string
	// Prompt asks the user for a token; nil disables prompting.
	Prompt func() (string, error)
}

// Acquire returns the first non-empty token. A prompted token is written to
// CacheFile so the next start does not ask again.
func Acquire(opts Options) (Credentials, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if tok := strings.TrimSpace(getenv(EnvToken)); tok != "" {
		return Credentials{Token: tok, Source: "env"}, nil
	}
	if tok := strings.TrimSpace(opts.ConfigToken); tok != "" {
		return Credentials{Token: tok, Source: "config"}, nil
	}
	if opts.CacheFile != "" {
		data, err := os.ReadFile(opts.CacheFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("read credentials: %w", err)
		}
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return Credentials{Token: tok, Source: "cache"}, nil
		}
	}
	if opts.Prompt == nil {
		return Credentials{}, ErrNoCredentials
	}
	tok, err := opts.Prompt()
	if err != nil {
		return Credentials{}, fmt.Errorf("read token: %w", err)
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Credentials{}, ErrNoCredentials
	}
	if opts.CacheFile != "" {
		if err := writeCache(opts.CacheFile, tok); err != nil {
			return Credentials{}, err
		}
	}
	return Credentials{Token: tok, Source: "prompt"}, nil
}

func writeCache(path, tok string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// TerminalPrompt reads a token from in without echo. It returns nil when in
// is not a terminal.
func TerminalPrompt(in *os.File, out io.Writer) func() (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func() (string, error) {
		fmt.Fprint(out, "Backend token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// ReaderPrompt reads one line from r. Used when input is piped.
func ReaderPrompt(r io.Reader) func() (string, error) {
	return func() (string, error) {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return line, nil
	}
}
