// Package feature wires the task protocol to the three Rita surfaces: the
// chat assistant, the web scraper and the video analyzer. Each value owns
// the per-surface state (busy flag, active poll session, transcript) of one
// command invocation.
package feature

import (
	"context"
	"log/slog"

	"rita/internal/logging"
	"rita/internal/render"
	"rita/internal/service"
	"rita/internal/task"
)

// Chat is the assistant surface.
type Chat struct {
	svc        service.Service
	surface    task.Surface
	transcript *render.Transcript
	files      *task.AttachedFiles
	logger     *slog.Logger
}

// NewChat creates a chat surface. obs receives transcript updates and may
// be nil. maxFiles and maxFileSize bound the staged attachments.
func NewChat(svc service.Service, obs render.Observer, maxFiles int, maxFileSize int64, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Chat{
		svc:        svc,
		transcript: render.NewTranscript(obs),
		files:      task.NewAttachedFiles(maxFiles, maxFileSize),
		logger:     logger,
	}
}

// Files returns the attachments staged for the next message.
func (c *Chat) Files() *task.AttachedFiles { return c.files }

// Transcript returns the conversation so far.
func (c *Chat) Transcript() *render.Transcript { return c.transcript }

// Send posts text with the staged attachments.
//
// The user's bubble and the typing indicator appear before the request is
// made. On success the answer is appended and the attachments are
// unstaged; on failure they stay staged for a retry.
func (c *Chat) Send(ctx context.Context, text string, searchWeb bool) (render.Bubble, error) {
	in := task.Input{Text: text, Files: c.files.Files()}
	names := c.files.Names()

	reply, err := task.Submit(ctx, &c.surface, in,
		func() {
			c.transcript.Append(service.RoleUser, text, names)
			c.transcript.SetTyping(true)
		},
		func(ctx context.Context) (service.ChatReply, error) {
			return c.svc.Chat(ctx, service.ChatRequest{Message: text, Files: in.Files, SearchWeb: searchWeb})
		})
	c.transcript.SetTyping(false)
	if err != nil {
		return render.Bubble{}, err
	}

	c.logger.Debug("chat answered", "message_id", reply.MessageID, "files", len(names))
	c.files.Clear()
	return c.transcript.Append(service.RoleAssistant, reply.Response, nil), nil
}

// Reset clears the conversation on the backend and, once acknowledged,
// locally. Hard deletes the stored history instead of starting afresh.
func (c *Chat) Reset(ctx context.Context, hard bool) (service.Ack, error) {
	ack, err := c.svc.ResetChat(ctx, hard)
	if err != nil {
		return service.Ack{}, err
	}
	if ack.OK() {
		c.transcript.Clear()
	}
	return ack, nil
}
