package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"rita/internal/config"
	"rita/internal/exitcode"
	"rita/internal/feature"
	"rita/internal/output"
	"rita/internal/render"
	"rita/internal/service"
)

func init() {
	Register(&ChatCmd{})
	Register(&ClearChatCmd{})
}

// fileList collects repeated --file flags.
type fileList []string

func (f *fileList) String() string     { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error { *f = append(*f, v); return nil }

// ChatCmd implements the chat command.
type ChatCmd struct {
	files     fileList
	searchWeb bool
	fresh     bool
	in        io.Reader
}

// SetInput sets the reader used in interactive mode (for testing).
func (c *ChatCmd) SetInput(r io.Reader) {
	c.in = r
}

// SetFiles sets the attachments (for testing).
func (c *ChatCmd) SetFiles(paths ...string) {
	c.files = paths
}

// SetSearchWeb sets the search-web flag (for testing).
func (c *ChatCmd) SetSearchWeb(on bool) {
	c.searchWeb = on
}

func (c *ChatCmd) Name() string      { return "chat" }
func (c *ChatCmd) Aliases() []string { return []string{"ask"} }
func (c *ChatCmd) Synopsis() string  { return "Talk to the assistant" }
func (c *ChatCmd) Usage() string {
	return "rita chat [--file <path>]... [--search-web] [--new] [message...]"
}
func (c *ChatCmd) NeedsAuth() bool { return true }

func (c *ChatCmd) RegisterFlags(fs *flag.FlagSet) {
	c.files = nil
	fs.Var(&c.files, "file", "")
	fs.Var(&c.files, "f", "")
	fs.BoolVar(&c.searchWeb, "search-web", false, "")
	fs.BoolVar(&c.fresh, "new", false, "")
}

func (c *ChatCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	interactive := len(args) == 0
	printer := &chatPrinter{out: out, errOut: errOut, echo: interactive, quiet: cfg.Quiet}
	chat := feature.NewChat(svc, printer, cfg.MaxFiles, cfg.MaxFileSize, cfg.Log())

	if c.fresh {
		if _, err := chat.Reset(ctx, false); err != nil {
			return fail(errOut, err)
		}
	}
	for _, path := range c.files {
		if err := chat.Files().AddPath(path); err != nil {
			return fail(errOut, err)
		}
	}

	if !interactive {
		if _, err := chat.Send(ctx, strings.Join(args, " "), c.searchWeb); err != nil {
			return fail(errOut, err)
		}
		return exitcode.Success
	}

	in := c.in
	if in == nil {
		in = os.Stdin
	}
	return c.repl(ctx, cfg, chat, in, out, errOut)
}

// repl reads one message per line. Lines starting with "/" are commands.
func (c *ChatCmd) repl(ctx context.Context, cfg *config.Config, chat *feature.Chat, in io.Reader, out, errOut io.Writer) int {
	info(cfg, errOut, "Type a message, /attach <path>, /files, /clear or /quit.")

	code := exitcode.Success
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return fail(errOut, ctx.Err())
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit", "/exit":
			return code
		case "/attach":
			if err := chat.Files().AddPath(strings.TrimSpace(arg)); err != nil {
				code = fail(errOut, err)
				continue
			}
			info(cfg, errOut, "attached: %s", strings.Join(chat.Files().Names(), ", "))
		case "/files":
			names := chat.Files().Names()
			if len(names) == 0 {
				fmt.Fprintln(out, "(no files)")
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
		case "/clear":
			if _, err := chat.Reset(ctx, false); err != nil {
				code = fail(errOut, err)
				continue
			}
			info(cfg, errOut, "conversation cleared")
		default:
			if _, err := chat.Send(ctx, line, c.searchWeb); err != nil {
				code = fail(errOut, err)
				continue
			}
			code = exitcode.Success
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	return code
}

// chatPrinter writes transcript updates as they happen. The user's own
// message is echoed only in interactive mode.
type chatPrinter struct {
	out, errOut io.Writer
	echo        bool
	quiet       bool
}

func (p *chatPrinter) Appended(b render.Bubble) {
	if b.Role == service.RoleUser && !p.echo {
		return
	}
	output.FormatBubble(p.out, b)
}

func (p *chatPrinter) Typing(on bool) {
	if on && !p.quiet {
		output.FormatTyping(p.errOut)
	}
}

// ClearChatCmd implements the clear-chat command.
type ClearChatCmd struct {
	hard bool
}

// SetDelete sets the delete flag (for testing).
func (c *ClearChatCmd) SetDelete(hard bool) {
	c.hard = hard
}

func (c *ClearChatCmd) Name() string      { return "clear-chat" }
func (c *ClearChatCmd) Aliases() []string { return nil }
func (c *ClearChatCmd) Synopsis() string  { return "Start a new conversation" }
func (c *ClearChatCmd) Usage() string     { return "rita clear-chat [--delete]" }
func (c *ClearChatCmd) NeedsAuth() bool   { return true }

func (c *ClearChatCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.hard, "delete", false, "")
}

func (c *ClearChatCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ack, err := svc.ResetChat(ctx, c.hard)
	if err != nil {
		return fail(errOut, err)
	}
	if !ack.OK() {
		msg := ack.Message
		if msg == "" {
			msg = "could not clear the conversation"
		}
		fmt.Fprintf(errOut, "error: %s\n", msg)
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
