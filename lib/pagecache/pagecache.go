// Package pagecache stores fetched page bodies so repeated scrapes of the
// same URL within a TTL can be answered locally. A hit costs neither a
// request nor a rate limiter slot, which matters when iterating on parsers
// against a live site.
package pagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("lib/pagecache")

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	url        TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL,
	body       BLOB NOT NULL
);`

// Cache is a two-layer body cache: an in-memory LRU in front of a sqlite
// file. The sqlite layer survives process restarts; the LRU keeps hot pages
// off the disk path.
type Cache struct {
	db  *sql.DB
	mem *expirable.LRU[string, []byte]
	ttl time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates a cache at path (":memory:" works) whose entries
// expire ttl after they were stored.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("pagecache ttl must be positive, got %s", ttl)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection only: sqlite serializes writers anyway, and a second
	// connection to a :memory: database would see an empty schema.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{
		db:  db,
		mem: expirable.NewLRU[string, []byte](2048, nil, ttl),
		ttl: ttl,
	}, nil
}

// Get returns the cached body for url if one is stored and still fresh.
// Storage failures degrade to a miss; the caller refetches.
func (c *Cache) Get(ctx context.Context, url string) ([]byte, bool) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	if body, ok := c.mem.Get(url); ok {
		span.SetAttributes(attribute.String("layer", "memory"))
		return body, true
	}

	var fetchedAt int64
	var body []byte
	err := c.db.QueryRowContext(
		ctx, "SELECT fetched_at, body FROM pages WHERE url = ?", url,
	).Scan(&fetchedAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cache")
		slog.WarnContext(ctx, "page cache read failed", "url", url, "err", err)
		return nil, false
	}

	if time.Since(time.UnixMilli(fetchedAt)) > c.ttl {
		_, err := c.db.ExecContext(ctx, "DELETE FROM pages WHERE url = ?", url)
		if err != nil {
			slog.WarnContext(ctx, "failed to drop stale cache row", "url", url, "err", err)
		}
		return nil, false
	}

	c.mem.Add(url, body)
	span.SetAttributes(attribute.String("layer", "sqlite"))
	return body, true
}

// Put stores a body for url, replacing any older entry.
func (c *Cache) Put(ctx context.Context, url string, body []byte) error {
	ctx, span := tracer.Start(ctx, "Put")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	_, err := c.db.ExecContext(
		ctx,
		"INSERT OR REPLACE INTO pages (url, fetched_at, body) VALUES (?, ?, ?)",
		url, time.Now().UnixMilli(), body,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cache")
		return fmt.Errorf("cache %s: %w", url, err)
	}
	c.mem.Add(url, body)
	return nil
}

// Close releases the sqlite handle. Calling it more than once is fine.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}
