package myzmanim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	appLog "shulscreen/internal/log"
	"shulscreen/internal/metrics"
)

// LocationStore persists postal query -> location id.
type LocationStore interface {
	Get(ctx context.Context, query string) (string, bool, error)
	Put(ctx context.Context, query, id string) error
}

// LocationID resolves a postal query via memory and the store, falling back
// to searchPostal and remembering the answer. A failing store is logged and
// bypassed.
func (c *Client) LocationID(ctx context.Context, query string) (string, error) {
	if id, ok := c.locs.GetIfPresent(query); ok {
		return id, nil
	}
	if c.store != nil {
		id, ok, err := c.store.Get(ctx, query)
		if err != nil {
			appLog.Error("myzmanim: location store get failed", err, "query", query)
		}
		c.metrics.CacheLookup(metrics.TierLocation, ok)
		if ok && id != "" {
			c.locs.Set(query, id)
			return id, nil
		}
	}

	form := c.auth()
	form.Set("Query", query)
	form.Set("TimeZone", "")

	var resp struct {
		LocationID string `json:"LocationID"`
	}
	if err := c.post(ctx, methodSearchPostal, form, &resp); err != nil {
		return "", err
	}
	if resp.LocationID == "" {
		return "", ErrNoLocation
	}
	appLog.Info("myzmanim: resolved location", "query", query, "location_id", resp.LocationID)
	c.locs.Set(query, resp.LocationID)

	if c.store != nil {
		if err := c.store.Put(ctx, query, resp.LocationID); err != nil {
			appLog.Error("myzmanim: location store put failed", err, "query", query)
		}
	}
	return resp.LocationID, nil
}

// FileStore keeps location ids in a small JSON file, written atomically with
// 0600 permissions.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	ids    map[string]string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, query string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return "", false, err
	}
	id, ok := s.ids[query]
	return id, ok, nil
}

func (s *FileStore) Put(_ context.Context, query, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		// Start over rather than keep failing on a corrupt file.
		s.ids = map[string]string{}
	}
	s.ids[query] = id
	return s.save()
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}
	s.ids = map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &s.ids); err != nil {
		s.ids = map[string]string{}
		return fmt.Errorf("location cache %s: %w", s.path, err)
	}
	s.loaded = true
	return nil
}

func (s *FileStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.ids, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".locations-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// RedisStore keeps location ids in Redis under a key prefix, without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "shulscreen:location:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, query string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.prefix+query).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *RedisStore) Put(ctx context.Context, query, id string) error {
	return s.client.Set(ctx, s.prefix+query, id, 0).Err()
}
