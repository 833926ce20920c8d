// Package journal records the tasks this client has submitted so that
// polling can resume in a later invocation and the video analyzer has a
// history to list and delete from.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "rita/internal/errors"
	"rita/internal/service"
)

// Feature names the surface a task belongs to.
type Feature string

const (
	FeatureScrape Feature = "scrape"
	FeatureVideo  Feature = "video"
)

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	switch f := Feature(strings.ToLower(strings.TrimSpace(s))); f {
	case FeatureScrape, FeatureVideo:
		return f, nil
	}
	return "", apperrors.Validation(fmt.Sprintf("unknown feature %q (want scrape or video)", s))
}

// Entry is one submitted task.
type Entry struct {
	Feature     Feature
	ID          service.TaskID
	URL         string
	Status      service.Status
	Description string
	Author      string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Store persists entries keyed by (feature, id).
type Store interface {
	// Put inserts or replaces an entry. SubmittedAt is kept from the first
	// insert when the entry already exists.
	Put(ctx context.Context, e Entry) error

	// UpdateStatus sets the status of an existing entry. It never creates
	// one: a task missing from the journal gives a NOT_FOUND error.
	UpdateStatus(ctx context.Context, feature Feature, id service.TaskID, status service.Status) error

	// Get returns one entry, or a NOT_FOUND error.
	Get(ctx context.Context, feature Feature, id service.TaskID) (Entry, error)

	// List returns the entries of a feature, newest first.
	List(ctx context.Context, feature Feature) ([]Entry, error)

	// Delete removes entries. Unknown ids are ignored.
	Delete(ctx context.Context, feature Feature, ids []service.TaskID) error

	// Close releases the underlying connection.
	Close() error
}

// Open returns the store described by dsn: empty or "sqlite" opens the
// sqlite file at sqlitePath, a redis:// or rediss:// URL opens redis.
func Open(ctx context.Context, dsn, sqlitePath string) (Store, error) {
	switch {
	case dsn == "" || dsn == "sqlite":
		return NewSQLiteStore(sqlitePath)
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return NewRedisStore(ctx, dsn)
	}
	return nil, apperrors.Validation(fmt.Sprintf("unsupported journal %q (want sqlite or a redis:// URL)", dsn))
}

func notFound(feature Feature, id service.TaskID) error {
	return apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("no %s task %s in journal", feature, id), nil)
}

func internal(op string, err error) error {
	return apperrors.New(apperrors.ErrCodeInternal, "journal "+op+" failed", err)
}
