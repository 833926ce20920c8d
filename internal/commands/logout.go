package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"rita/internal/backend/webapi"
	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/service"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Sign out and remove the saved session" }
func (c *LogoutCmd) Usage() string     { return "rita logout [common flags]" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !cfg.HasSession() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	// The server-side sign-out is best effort; the local session goes
	// either way.
	if client, err := webapi.New(ctx, cfg); err == nil {
		if err := client.Logout(ctx); err != nil {
			cfg.Log().Warn("server sign-out failed", "error", err)
		}
	}

	if err := cfg.RemoveSession(); err != nil {
		fmt.Fprintf(errOut, "error: failed to remove session: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
