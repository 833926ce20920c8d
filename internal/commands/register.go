package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"rita/internal/backend/webapi"
	"rita/internal/config"
	apperrors "rita/internal/errors"
	"rita/internal/exitcode"
	"rita/internal/service"
)

var errPasswordMismatch = apperrors.Validation("passwords do not match")

func init() {
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	username    string
	email       string
	fullName    string
	dateOfBirth string
	password    string
	in          io.Reader
}

// SetAccount sets the account fields (for testing).
func (c *RegisterCmd) SetAccount(username, email, fullName, dateOfBirth string) {
	c.username = username
	c.email = email
	c.fullName = fullName
	c.dateOfBirth = dateOfBirth
}

// SetPassword sets the password (for testing).
func (c *RegisterCmd) SetPassword(pw string) {
	c.password = pw
}

// SetInput sets the reader prompts read from (for testing).
func (c *RegisterCmd) SetInput(r io.Reader) {
	c.in = r
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string  { return "Create an account and sign in" }
func (c *RegisterCmd) Usage() string {
	return "rita register --username <name> --email <addr> --name <full name> [--birth-date YYYY-MM-DD]"
}
func (c *RegisterCmd) NeedsAuth() bool { return false }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.username, "username", "", "")
	fs.StringVar(&c.username, "u", "", "")
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.fullName, "name", "", "")
	fs.StringVar(&c.dateOfBirth, "birth-date", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	in := c.in
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)

	password, err := c.readPassword(reader, errOut)
	if err != nil {
		return fail(errOut, err)
	}

	reg := webapi.Registration{
		Username:    strings.TrimSpace(c.username),
		Email:       strings.TrimSpace(c.email),
		FullName:    strings.TrimSpace(c.fullName),
		DateOfBirth: strings.TrimSpace(c.dateOfBirth),
		Password:    password,
	}
	if err := reg.Validate(); err != nil {
		return fail(errOut, err)
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}
	client, err := webapi.New(ctx, cfg)
	if err != nil {
		return fail(errOut, err)
	}
	if err := client.Register(ctx, reg); err != nil {
		return fail(errOut, err)
	}
	cfg.Log().Debug("registered", "user", reg.Username, "server", cfg.BaseURL)

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// readPassword takes the password from the setter or the environment, else
// prompts for it twice.
func (c *RegisterCmd) readPassword(reader *bufio.Reader, errOut io.Writer) (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	if pw, ok := os.LookupEnv(PasswordEnv); ok && pw != "" {
		return pw, nil
	}
	pw, err := promptSecret(reader, c.in == nil, errOut, "Password: ")
	if err != nil || pw == "" {
		return pw, err
	}
	again, err := promptSecret(reader, c.in == nil, errOut, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if again != pw {
		return "", errPasswordMismatch
	}
	return pw, nil
}
