package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/aristath/compass/internal/modules/auth"
)

type credentialFlags struct {
	email    string
	password string
}

func (c *credentialFlags) set(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email")
	f.StringVar(&c.password, "password", os.Getenv("COMPASS_PASSWORD"), "Account password (env COMPASS_PASSWORD)")
}

func (c *credentialFlags) valid() bool {
	if c.email == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -email and -password are required")
		return false
	}
	return true
}

func keepSession(s *auth.Session) subcommands.ExitStatus {
	if err := saveToken(s.AccessToken); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session not saved: %v\n", err)
	}
	email := ""
	if s.User != nil {
		email = s.User.Email
	}
	fmt.Fprintf(stdout, "Signed in as %s\n", email)
	return subcommands.ExitSuccess
}

type signupCmd struct{ creds credentialFlags }

func (*signupCmd) Name() string     { return "signup" }
func (*signupCmd) Synopsis() string { return "create an account and sign in" }
func (*signupCmd) Usage() string {
	return `compass signup -email <email> -password <password>

  Creates an account and saves the session for later commands.
`
}
func (c *signupCmd) SetFlags(f *flag.FlagSet) { c.creds.set(f) }

func (c *signupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.creds.valid() {
		return subcommands.ExitUsageError
	}
	s, err := newClient().SignUp(ctx, c.creds.email, c.creds.password)
	if err != nil {
		return fail(err)
	}
	return keepSession(s)
}

type loginCmd struct{ creds credentialFlags }

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in and save the session" }
func (*loginCmd) Usage() string {
	return `compass login -email <email> -password <password>

  Exchanges credentials for a token stored in the user config directory.
`
}
func (c *loginCmd) SetFlags(f *flag.FlagSet) { c.creds.set(f) }

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.creds.valid() {
		return subcommands.ExitUsageError
	}
	s, err := newClient().SignIn(ctx, c.creds.email, c.creds.password)
	if err != nil {
		return fail(err)
	}
	return keepSession(s)
}

type logoutCmd struct{}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the saved session" }
func (*logoutCmd) Usage() string            { return "compass logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (*logoutCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := clearToken(); err != nil {
		return fail(err)
	}
	fmt.Fprintln(stdout, "Signed out")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{}

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "show the signed-in user" }
func (*whoamiCmd) Usage() string            { return "compass whoami\n" }
func (*whoamiCmd) SetFlags(_ *flag.FlagSet) {}

func (*whoamiCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	user, err := newClient().CurrentUser(ctx)
	if err != nil {
		return fail(err)
	}
	if user == nil {
		fmt.Fprintln(stdout, "Not signed in")
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(stdout, "%s (%s)\n", user.Email, user.ID)
	return subcommands.ExitSuccess
}
