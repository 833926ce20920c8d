package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"rita/internal/backend/webapi"
	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/service"
)

// PasswordEnv is read before prompting for a password.
const PasswordEnv = "RITA_PASSWORD"

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	username string
	password string
	in       io.Reader
}

// SetUsername sets the username (for testing).
func (c *LoginCmd) SetUsername(name string) {
	c.username = name
}

// SetPassword sets the password (for testing).
func (c *LoginCmd) SetPassword(pw string) {
	c.password = pw
}

// SetInput sets the reader prompts read from (for testing).
func (c *LoginCmd) SetInput(r io.Reader) {
	c.in = r
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Sign in to the Rita server" }
func (c *LoginCmd) Usage() string     { return "rita login [--username <name>] [common flags]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.username, "username", "", "")
	fs.StringVar(&c.username, "u", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	in := c.in
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)

	username := strings.TrimSpace(c.username)
	if username == "" {
		fmt.Fprint(errOut, "Username: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}
	if username == "" {
		fmt.Fprintln(errOut, "error: username required")
		return exitcode.UserError
	}

	password, err := c.readPassword(reader, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
		return exitcode.UserError
	}
	if password == "" {
		fmt.Fprintln(errOut, "error: password required")
		return exitcode.UserError
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}

	client, err := webapi.New(ctx, cfg)
	if err != nil {
		return fail(errOut, err)
	}
	if err := client.Login(ctx, username, password); err != nil {
		return fail(errOut, err)
	}
	cfg.Log().Debug("signed in", "user", username, "server", cfg.BaseURL)

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// readPassword takes the password from the flag setter, the environment,
// a hidden terminal prompt or a plain line of input, in that order.
func (c *LoginCmd) readPassword(reader *bufio.Reader, errOut io.Writer) (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	if pw, ok := os.LookupEnv(PasswordEnv); ok && pw != "" {
		return pw, nil
	}
	return promptSecret(reader, c.in == nil, errOut, "Password: ")
}

// promptSecret asks for a secret. On a terminal stdin the input is hidden;
// otherwise one line is read from reader.
func promptSecret(reader *bufio.Reader, fromStdin bool, errOut io.Writer, label string) (string, error) {
	fmt.Fprint(errOut, label)
	if fromStdin && stdinIsTerminal() {
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(errOut)
		return string(pw), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
