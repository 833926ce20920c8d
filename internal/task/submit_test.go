package task_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	apperrors "rita/internal/errors"
	"rita/internal/service"
	"rita/internal/task"
)

func TestInput_Validate(t *testing.T) {
	tests := []struct {
		name  string
		input task.Input
		ok    bool
	}{
		{"empty", task.Input{}, false},
		{"whitespace", task.Input{Text: "  \n\t"}, false},
		{"text", task.Input{Text: "hello"}, true},
		{"file only", task.Input{Files: []service.Attachment{{Name: "a.pdf"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, task.ErrEmptyInput) {
				t.Errorf("expected ErrEmptyInput, got %v", err)
			}
		})
	}
}

func TestScrapeInput_Validate(t *testing.T) {
	fields := task.ParseTags("title, price")
	tests := []struct {
		name  string
		input task.ScrapeInput
		ok    bool
	}{
		{"ok", task.ScrapeInput{URL: "https://shop.example.com/list", Fields: fields}, true},
		{"no url", task.ScrapeInput{Fields: fields}, false},
		{"no fields", task.ScrapeInput{URL: "https://shop.example.com", Fields: task.ParseTags("")}, false},
		{"nil fields", task.ScrapeInput{URL: "https://shop.example.com"}, false},
		{"relative url", task.ScrapeInput{URL: "shop/list", Fields: fields}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.ok != (err == nil) {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeValidation) {
				t.Errorf("expected validation code, got %v", err)
			}
		})
	}
}

func TestSubmit_InvalidInputMakesNoCall(t *testing.T) {
	var surface task.Surface
	echoed, called := false, false

	_, err := task.Submit(context.Background(), &surface, task.Input{}, func() { echoed = true },
		func(ctx context.Context) (string, error) {
			called = true
			return "", nil
		})

	if !errors.Is(err, task.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if echoed || called {
		t.Errorf("echo=%v call=%v, want neither", echoed, called)
	}
	if surface.Busy() {
		t.Error("surface should not be busy after a rejected submission")
	}
}

func TestSubmit_EchoBeforeCallAndBusy(t *testing.T) {
	var surface task.Surface
	var order []string

	got, err := task.Submit(context.Background(), &surface, task.Input{Text: "hello"},
		func() { order = append(order, "echo") },
		func(ctx context.Context) (string, error) {
			order = append(order, "call")
			if !surface.Busy() {
				t.Error("surface should be busy during the call")
			}
			return "hi", nil
		})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got != "hi" {
		t.Errorf("got %q", got)
	}
	if len(order) != 2 || order[0] != "echo" || order[1] != "call" {
		t.Errorf("unexpected order %v", order)
	}
	if surface.Busy() {
		t.Error("busy state should end after the call")
	}
}

func TestSubmit_BusyRejectsSecondSubmission(t *testing.T) {
	var surface task.Surface
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = task.Submit(context.Background(), &surface, task.Input{Text: "one"}, nil,
			func(ctx context.Context) (int, error) {
				close(started)
				<-release
				return 1, nil
			})
	}()
	<-started

	_, err := task.Submit(context.Background(), &surface, task.Input{Text: "two"}, nil,
		func(ctx context.Context) (int, error) {
			t.Error("second call should not run")
			return 2, nil
		})
	close(release)

	if !errors.Is(err, task.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestSubmit_ErrorEndsBusyState(t *testing.T) {
	var surface task.Surface
	transport := apperrors.New(apperrors.ErrCodeTransport, "cannot reach server", nil)

	_, err := task.Submit(context.Background(), &surface, task.Input{Text: "x"}, nil,
		func(ctx context.Context) (int, error) { return 0, transport })
	if !errors.Is(err, transport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if surface.Busy() {
		t.Error("busy state should end after a failure")
	}
}

func TestSubmit_CancelsActiveSession(t *testing.T) {
	var surface task.Surface
	s := &scripted{steps: []step{{status: service.StatusPending}}}
	p := task.NewPoller(s.fn, task.Options{Interval: tick}, nil)

	var callbacks int32
	old := p.Start(context.Background(), "1",
		func(service.Task) { atomic.AddInt32(&callbacks, 1) },
		func(service.Task, error) { atomic.AddInt32(&callbacks, 1) })
	surface.Attach(old)

	_, err := task.Submit(context.Background(), &surface, task.Input{Text: "again"}, nil,
		func(ctx context.Context) (int, error) { return 0, nil })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-old.Done():
	case <-time.After(time.Second):
		t.Fatal("old session still running after a new submission")
	}
	if callbacks != 0 {
		t.Errorf("cancelled session fired %d callbacks", callbacks)
	}
	if surface.Active() != nil {
		t.Error("surface should have no active session")
	}
}

func TestSurface_AttachCancelsPrevious(t *testing.T) {
	var surface task.Surface
	s := &scripted{steps: []step{{status: service.StatusPending}}}
	p := task.NewPoller(s.fn, task.Options{Interval: tick}, nil)

	first := p.Start(context.Background(), "1", nil, nil)
	surface.Attach(first)
	second := p.Start(context.Background(), "2", nil, nil)
	surface.Attach(second)
	defer second.Cancel()

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first session not cancelled")
	}
	if surface.Active() != second {
		t.Error("second session should be active")
	}
	if !second.Active() {
		t.Error("second session should still be polling")
	}
}

func TestAttachedFiles_Limits(t *testing.T) {
	files := task.NewAttachedFiles(2, 100)

	if err := files.Add(service.Attachment{Name: "a.txt", Size: 10}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := files.Add(service.Attachment{Name: "big.bin", Size: 101}); err == nil {
		t.Error("expected size limit error")
	}
	if err := files.Add(service.Attachment{Name: "b.txt", Size: 100}); err != nil {
		t.Fatalf("Add at limit: %v", err)
	}
	if err := files.Add(service.Attachment{Name: "c.txt", Size: 1}); err == nil {
		t.Error("expected count limit error")
	}

	if got := files.Names(); len(got) != 2 || got[0] != "a.txt" || got[1] != "b.txt" {
		t.Errorf("unexpected order %v", got)
	}
	if !files.Remove("a.txt") || files.Len() != 1 {
		t.Error("Remove failed")
	}
	files.Clear()
	if files.Len() != 0 {
		t.Error("Clear left files behind")
	}
}

func TestAttachedFiles_AddPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}

	files := task.NewAttachedFiles(0, 0)
	if err := files.AddPath(path); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	got := files.Files()[0]
	if got.Name != "notes.txt" || got.Size != 5 || got.Path != path {
		t.Errorf("unexpected attachment %+v", got)
	}
	if err := files.AddPath(dir); err == nil {
		t.Error("expected directory to be rejected")
	}
	if err := files.AddPath(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected missing file to be rejected")
	}
}

func TestTags(t *testing.T) {
	tags := task.ParseTags(" title, price,,title ,rating ")
	if got := tags.String(); got != "title,price,rating" {
		t.Errorf("String() = %q", got)
	}
	if tags.Add("price") {
		t.Error("duplicate should be ignored")
	}
	if !tags.Add("reviews") || tags.Len() != 4 {
		t.Errorf("after Add: %q", tags.String())
	}
	if task.ParseTags(" , ").Len() != 0 {
		t.Error("blank list should give no tags")
	}
}
