package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rita/internal/service"
)

// RedisStore keeps the journal in redis: one hash per entry and a sorted
// set per feature ordered by submission time.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the redis URL and checks it answers.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Put inserts or updates an entry.
func (r *RedisStore) Put(ctx context.Context, e Entry) error {
	k := entryKey(e.Feature, e.ID)
	now := time.Now().UTC()
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	created, err := r.client.HSetNX(ctx, k, "submitted_at", strconv.FormatInt(e.SubmittedAt.UnixNano(), 10)).Result()
	if err != nil {
		return internal("put", err)
	}

	fields := []any{
		"status", string(e.Status),
		"updated_at", strconv.FormatInt(e.UpdatedAt.UnixNano(), 10),
	}
	for name, v := range map[string]string{"url": e.URL, "description": e.Description, "author": e.Author} {
		if v != "" {
			fields = append(fields, name, v)
		}
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, k, fields...)
	if created {
		pipe.ZAdd(ctx, indexKey(e.Feature), redis.Z{Score: float64(e.SubmittedAt.UnixNano()), Member: string(e.ID)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return internal("put", err)
	}
	return nil
}

// UpdateStatus sets the status of an existing entry.
func (r *RedisStore) UpdateStatus(ctx context.Context, feature Feature, id service.TaskID, status service.Status) error {
	k := entryKey(feature, id)
	n, err := r.client.Exists(ctx, k).Result()
	if err != nil {
		return internal("update", err)
	}
	if n == 0 {
		return notFound(feature, id)
	}
	err = r.client.HSet(ctx, k,
		"status", string(status),
		"updated_at", strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
	).Err()
	if err != nil {
		return internal("update", err)
	}
	return nil
}

// Get returns one entry.
func (r *RedisStore) Get(ctx context.Context, feature Feature, id service.TaskID) (Entry, error) {
	m, err := r.client.HGetAll(ctx, entryKey(feature, id)).Result()
	if err != nil {
		return Entry{}, internal("get", err)
	}
	if len(m) == 0 {
		return Entry{}, notFound(feature, id)
	}
	return entryFromHash(feature, id, m), nil
}

// List returns a feature's entries, newest first.
func (r *RedisStore) List(ctx context.Context, feature Feature) ([]Entry, error) {
	ids, err := r.client.ZRevRange(ctx, indexKey(feature), 0, -1).Result()
	if err != nil {
		return nil, internal("list", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, entryKey(feature, service.TaskID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, internal("list", err)
	}

	out := make([]Entry, 0, len(ids))
	for i, cmd := range cmds {
		m, err := cmd.Result()
		if err != nil || len(m) == 0 {
			// hash removed behind our back
			continue
		}
		out = append(out, entryFromHash(feature, service.TaskID(ids[i]), m))
	}
	return out, nil
}

// Delete removes entries by id.
func (r *RedisStore) Delete(ctx context.Context, feature Feature, ids []service.TaskID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(feature, id)
		members[i] = string(id)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, indexKey(feature), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return internal("delete", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func entryFromHash(feature Feature, id service.TaskID, m map[string]string) Entry {
	return Entry{
		Feature:     feature,
		ID:          id,
		URL:         m["url"],
		Status:      service.Status(m["status"]),
		Description: m["description"],
		Author:      m["author"],
		SubmittedAt: unixNano(m["submitted_at"]),
		UpdatedAt:   unixNano(m["updated_at"]),
	}
}

func unixNano(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func indexKey(feature Feature) string { return fmt.Sprintf("rita:journal:%s", feature) }
func entryKey(feature Feature, id service.TaskID) string {
	return fmt.Sprintf("rita:journal:%s:%s", feature, id)
}
