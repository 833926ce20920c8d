package feature

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"rita/internal/blob"
	apperrors "rita/internal/errors"
	"rita/internal/service"
)

// BlobOpener connects to the result bucket on first use.
type BlobOpener func(ctx context.Context) (blob.Store, error)

// Fetcher retrieves and stores result documents. References into Cloud
// Storage go through the bucket client; anything else is fetched from the
// backend.
type Fetcher struct {
	svc  service.Service
	open BlobOpener

	mu    sync.Mutex
	blobs blob.Store
}

// NewFetcher creates a fetcher. A nil open disables bucket access.
func NewFetcher(svc service.Service, open BlobOpener) *Fetcher {
	return &Fetcher{svc: svc, open: open}
}

func (f *Fetcher) store(ctx context.Context) (blob.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blobs != nil {
		return f.blobs, nil
	}
	if f.open == nil {
		return nil, apperrors.Validation("cloud storage is not configured")
	}
	s, err := f.open(ctx)
	if err != nil {
		return nil, err
	}
	f.blobs = s
	return s, nil
}

// Fetch returns the document at ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	// Public bucket links are plain HTTPS when no bucket client is configured.
	if loc, ok := blob.ParseLocation(ref); ok && (f.open != nil || strings.HasPrefix(ref, "gs://")) {
		s, err := f.store(ctx)
		if err != nil {
			return nil, err
		}
		return s.Read(ctx, loc)
	}
	return f.svc.FetchResult(ctx, ref)
}

// Save writes data to dest, a gs:// URL or a local file path.
func (f *Fetcher) Save(ctx context.Context, dest string, data []byte) error {
	if loc, ok := blob.ParseLocation(dest); ok {
		s, err := f.store(ctx)
		if err != nil {
			return err
		}
		return s.Write(ctx, loc, bytes.NewReader(data))
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return apperrors.New(apperrors.ErrCodeValidation, fmt.Sprintf("cannot write %s", dest), err)
	}
	return nil
}

// Close releases the bucket client if one was opened.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blobs == nil {
		return nil
	}
	err := f.blobs.Close()
	f.blobs = nil
	return err
}
