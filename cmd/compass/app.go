package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/aristath/compass/internal/client"
	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/pkg/logger"
)

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")

	c.Register(&signupCmd{}, "account")
	c.Register(&loginCmd{}, "account")
	c.Register(&logoutCmd{}, "account")
	c.Register(&whoamiCmd{}, "account")

	c.Register(&decisionsCmd{}, "decisions")
	c.Register(&decideCmd{}, "decisions")
	c.Register(&statsCmd{}, "decisions")

	c.Register(&portfoliosCmd{}, "portfolios")
	c.Register(&holdingsCmd{}, "portfolios")

	c.Register(&indicesCmd{}, "market")
	c.Register(&cardCmd{}, "market")
	c.Register(&commentaryCmd{}, "market")
	c.Register(&newsCmd{}, "market")
	c.Register(&logoCmd{}, "market")
}

// a CLI run is short lived, so global flags are fine.

var (
	serverURL = flag.String("server", envOr("COMPASS_URL", "http://localhost:8080"), "Compass server URL (env COMPASS_URL)")
	tokenFlag = flag.String("token", os.Getenv("COMPASS_TOKEN"), "Bearer token; overrides the saved session (env COMPASS_TOKEN)")
	verbose   = flag.Bool("v", false, "Log requests to stderr")
	rawOutput = flag.Bool("raw", false, "Print markdown without terminal rendering")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// stdout is swapped in tests
var stdout io.Writer = os.Stdout

func newClient() *client.Client {
	log := newLogger()

	token := *tokenFlag
	if token == "" {
		saved, err := loadToken()
		if err != nil {
			log.Warn().Err(err).Msg("Could not read saved session")
		}
		token = saved
	}
	return client.New(*serverURL, client.WithToken(token), client.WithLogger(log))
}

// tokenPath is the saved-session file; overridden in tests
var tokenPath = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no config directory: %w", err)
	}
	return filepath.Join(dir, "compass", "token"), nil
}

func loadToken() (string, error) {
	p, err := tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func saveToken(token string) error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(p), err)
	}
	return os.WriteFile(p, []byte(token+"\n"), 0o600)
}

func clearToken() error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// printMarkdown renders md for the terminal, falling back to plain text
func printMarkdown(md string) {
	if *rawOutput {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}

// fail reports err and picks the exit status
func fail(err error) subcommands.ExitStatus {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		fmt.Fprintln(os.Stderr, "Error: not signed in; run `compass login` first")
	case errors.Is(err, domain.ErrInvalidInput):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}

func newLogger() zerolog.Logger {
	level := "warn"
	if *verbose {
		level = "debug"
	}
	return logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})
}
