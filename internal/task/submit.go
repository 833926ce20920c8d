// Package task implements the asynchronous task protocol: local validation
// and submission, the busy/active-session state of a UI surface, and the
// status poller that follows a task id to a terminal state.
package task

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	apperrors "rita/internal/errors"
	"rita/internal/service"
)

var (
	// ErrEmptyInput rejects a chat submission with no text and no files.
	ErrEmptyInput = apperrors.Validation("message or file is required")

	// ErrScrapeInput rejects a scrape with no URL or no fields.
	ErrScrapeInput = apperrors.Validation("url and at least one field are required")

	// ErrVideoURL rejects an analysis request with no video URL.
	ErrVideoURL = apperrors.Validation("video url is required")

	// ErrBusy rejects a submission while another is in flight on the same surface.
	ErrBusy = apperrors.Validation("a submission is already in progress")
)

// Validator is implemented by submission inputs.
type Validator interface {
	Validate() error
}

// Input is user text plus zero or more attached files.
type Input struct {
	Text  string
	Files []service.Attachment
}

// Validate rejects input with empty text and no files.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Text) == "" && len(in.Files) == 0 {
		return ErrEmptyInput
	}
	return nil
}

// ScrapeInput is a scraping request before submission.
type ScrapeInput struct {
	URL    string
	Fields *Tags
	Model  string
}

// Validate requires a URL and at least one field.
func (in ScrapeInput) Validate() error {
	if strings.TrimSpace(in.URL) == "" || in.Fields == nil || in.Fields.Len() == 0 {
		return ErrScrapeInput
	}
	u, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.Validation(fmt.Sprintf("invalid url: %s", in.URL))
	}
	return nil
}

// VideoInput is a video URL to analyze.
type VideoInput struct {
	URL string
}

// Validate requires a non-empty URL.
func (in VideoInput) Validate() error {
	if strings.TrimSpace(in.URL) == "" {
		return ErrVideoURL
	}
	return nil
}

// Submit runs one submission on a surface.
//
// Validation happens first; an invalid input never reaches echo or call.
// The surface is then marked busy, any poll session still active on it is
// cancelled, echo runs (the optimistic update), and call performs the
// request. The busy state ends when call returns, whatever the outcome.
func Submit[T any](ctx context.Context, s *Surface, in Validator, echo func(), call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := in.Validate(); err != nil {
		return zero, err
	}
	if err := s.begin(); err != nil {
		return zero, err
	}
	defer s.end()

	s.CancelActive()
	if echo != nil {
		echo()
	}
	return call(ctx)
}

// AttachedFiles is the ordered set of files staged for the next submission.
// A zero limit means unbounded.
type AttachedFiles struct {
	maxCount int
	maxSize  int64
	files    []service.Attachment
}

// NewAttachedFiles creates an empty set with the given limits.
func NewAttachedFiles(maxCount int, maxSize int64) *AttachedFiles {
	return &AttachedFiles{maxCount: maxCount, maxSize: maxSize}
}

// Add stages an attachment.
func (a *AttachedFiles) Add(f service.Attachment) error {
	if a.maxCount > 0 && len(a.files) >= a.maxCount {
		return apperrors.Validation(fmt.Sprintf("too many files (max %d)", a.maxCount))
	}
	if a.maxSize > 0 && f.Size > a.maxSize {
		return apperrors.Validation(fmt.Sprintf("file too large: %s (%d bytes, max %d)", f.Name, f.Size, a.maxSize))
	}
	a.files = append(a.files, f)
	return nil
}

// AddPath stats a file on disk and stages it.
func (a *AttachedFiles) AddPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeValidation, fmt.Sprintf("cannot attach %s", path), err)
	}
	if info.IsDir() {
		return apperrors.Validation(fmt.Sprintf("cannot attach a directory: %s", path))
	}
	return a.Add(service.Attachment{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	})
}

// Remove unstages the first attachment with the given name.
func (a *AttachedFiles) Remove(name string) bool {
	for i, f := range a.files {
		if f.Name == name {
			a.files = append(a.files[:i], a.files[i+1:]...)
			return true
		}
	}
	return false
}

// Files returns a copy of the staged attachments in order.
func (a *AttachedFiles) Files() []service.Attachment {
	out := make([]service.Attachment, len(a.files))
	copy(out, a.files)
	return out
}

// Names returns the staged file names in order.
func (a *AttachedFiles) Names() []string {
	names := make([]string, len(a.files))
	for i, f := range a.files {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of staged files.
func (a *AttachedFiles) Len() int { return len(a.files) }

// Clear unstages everything.
func (a *AttachedFiles) Clear() { a.files = nil }
