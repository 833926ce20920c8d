package blob_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"rita/internal/blob"
	apperrors "rita/internal/errors"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		ref    string
		want   blob.Location
		wantOK bool
	}{
		{"gs://rita-results/scrapes/12.json", blob.Location{Bucket: "rita-results", Object: "scrapes/12.json"}, true},
		{"https://storage.googleapis.com/rita-results/scrapes/12.json", blob.Location{Bucket: "rita-results", Object: "scrapes/12.json"}, true},
		{"gs://rita-results", blob.Location{}, false},
		{"gs:///object", blob.Location{}, false},
		{"https://storage.googleapis.com/rita-results", blob.Location{}, false},
		{"/media/scrapes/12.json", blob.Location{}, false},
		{"https://example.com/rita-results/12.json", blob.Location{}, false},
	}
	for _, tt := range tests {
		got, ok := blob.ParseLocation(tt.ref)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, %v; want %+v, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLocation_String(t *testing.T) {
	loc := blob.Location{Bucket: "b", Object: "x/y.csv"}
	if got := loc.String(); got != "gs://b/x/y.csv" {
		t.Errorf("String() = %q", got)
	}
}

// emulator stands in for Cloud Storage: every object is missing and every
// upload request is counted.
type emulator struct {
	mu      sync.Mutex
	uploads int
}

func (e *emulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		e.mu.Lock()
		e.uploads++
		e.mu.Unlock()
		io.Copy(io.Discard, r.Body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
}

func (e *emulator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploads
}

func newEmulated(t *testing.T) (blob.Store, *emulator) {
	t.Helper()
	emu := &emulator{}
	srv := httptest.NewServer(emu)
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", srv.Listener.Addr().String())

	store, err := blob.NewGCS(context.Background(), "")
	if err != nil {
		t.Fatalf("NewGCS: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, emu
}

func TestGCS_ReadMissingObject(t *testing.T) {
	store, _ := newEmulated(t)

	_, err := store.Read(context.Background(), blob.Location{Bucket: "b", Object: "missing.json"})
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestGCS_WriteAbortsOnReadError(t *testing.T) {
	store, emu := newEmulated(t)

	content := io.MultiReader(strings.NewReader("partial"), brokenReader{})
	err := store.Write(context.Background(), blob.Location{Bucket: "b", Object: "out.json"}, content)
	if !apperrors.HasCode(err, apperrors.ErrCodeTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := emu.count(); n != 0 {
		t.Errorf("truncated object was uploaded (%d requests)", n)
	}
}
