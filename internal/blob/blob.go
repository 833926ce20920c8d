// Package blob reads and writes scrape result documents kept in Google
// Cloud Storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperrors "rita/internal/errors"
)

// Location is an object in a bucket.
type Location struct {
	Bucket string
	Object string
}

func (l Location) String() string {
	return "gs://" + l.Bucket + "/" + l.Object
}

// ParseLocation recognizes gs://bucket/object URLs and public
// https://storage.googleapis.com/bucket/object links. ok is false for any
// other reference.
func ParseLocation(ref string) (loc Location, ok bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return Location{}, false
	}

	var bucket, object string
	switch {
	case u.Scheme == "gs":
		bucket, object = u.Host, strings.TrimPrefix(u.Path, "/")
	case u.Scheme == "https" && u.Host == "storage.googleapis.com":
		bucket, object, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	default:
		return Location{}, false
	}
	if bucket == "" || object == "" {
		return Location{}, false
	}
	return Location{Bucket: bucket, Object: object}, true
}

// Store moves result documents in and out of a bucket.
type Store interface {
	Read(ctx context.Context, loc Location) ([]byte, error)
	Write(ctx context.Context, loc Location, content io.Reader) error
	Close() error
}

type googleCloudStorage struct {
	client *storage.Client
}

// NewGCS creates a Cloud Storage client. An empty credentialsFile uses
// application default credentials.
func NewGCS(ctx context.Context, credentialsFile string) (Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "cannot create cloud storage client", err)
	}
	return &googleCloudStorage{client: client}, nil
}

func (g *googleCloudStorage) Read(ctx context.Context, loc Location) ([]byte, error) {
	reader, err := g.client.Bucket(loc.Bucket).Object(loc.Object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("%s not found", loc), err)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeTransport, fmt.Sprintf("cannot read %s", loc), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeTransport, fmt.Sprintf("cannot read %s", loc), err)
	}
	return data, nil
}

func (g *googleCloudStorage) Write(ctx context.Context, loc Location, content io.Reader) error {
	// Finish the upload even if the caller is interrupted mid-stream.
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()

	w := g.client.Bucket(loc.Bucket).Object(loc.Object).NewWriter(uploadCtx)
	if _, err := io.Copy(w, content); err != nil {
		// Cancelling first aborts the upload; a plain Close would commit
		// the truncated object.
		cancel()
		w.Close()
		return apperrors.New(apperrors.ErrCodeTransport, fmt.Sprintf("failed to stream to %s", loc), err)
	}
	if err := w.Close(); err != nil {
		return apperrors.New(apperrors.ErrCodeTransport, fmt.Sprintf("failed to finalize upload to %s", loc), err)
	}
	return nil
}

func (g *googleCloudStorage) Close() error {
	return g.client.Close()
}
