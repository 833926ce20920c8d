package render

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/x/ansi"

	"rita/internal/service"
)

// Bubble is one chat message.
type Bubble struct {
	Role  service.Role
	Text  string
	Files []string
}

// NewBubble builds a bubble with its text made safe for a terminal.
func NewBubble(role service.Role, text string, files []string) Bubble {
	return Bubble{Role: role, Text: Sanitize(text), Files: files}
}

// HTML returns the message as markup: the text is escaped first, then
// newlines become <br>.
func (b Bubble) HTML() string {
	escaped := html.EscapeString(b.Text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// Sanitize strips escape sequences (CSI, OSC, DCS and the rest) and
// control characters other than newline and tab.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Observer receives transcript updates as they happen.
type Observer interface {
	Appended(b Bubble)
	Typing(on bool)
}

// Transcript is the ordered list of bubbles on a chat surface, plus the
// typing indicator shown while an answer is pending.
type Transcript struct {
	mu       sync.Mutex
	bubbles  []Bubble
	typing   bool
	observer Observer
}

// NewTranscript creates an empty transcript. obs may be nil.
func NewTranscript(obs Observer) *Transcript {
	return &Transcript{observer: obs}
}

// Append adds a bubble and notifies the observer.
func (t *Transcript) Append(role service.Role, text string, files []string) Bubble {
	b := NewBubble(role, text, files)
	t.mu.Lock()
	t.bubbles = append(t.bubbles, b)
	obs := t.observer
	t.mu.Unlock()

	if obs != nil {
		obs.Appended(b)
	}
	return b
}

// SetTyping shows or hides the typing indicator.
func (t *Transcript) SetTyping(on bool) {
	t.mu.Lock()
	changed := t.typing != on
	t.typing = on
	obs := t.observer
	t.mu.Unlock()

	if changed && obs != nil {
		obs.Typing(on)
	}
}

// Typing reports whether the typing indicator is shown.
func (t *Transcript) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Bubbles returns a copy of the transcript.
func (t *Transcript) Bubbles() []Bubble {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Bubble, len(t.bubbles))
	copy(out, t.bubbles)
	return out
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.bubbles = nil
	t.mu.Unlock()
}
