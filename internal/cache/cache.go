// Package cache implements the TTL'd, compressed key-value store the
// snapshot builder writes through.
//
// Values are wrapped in an envelope carrying build metadata (owner, domain,
// filters, timestamps), JSON-encoded, gzip-compressed, and written to the
// configured kv.Store in a single Set, so readers can never observe a
// partially-written value. Expiry is enforced twice: natively by the KV
// backend TTL and again on read from the envelope, with lazy eviction, so a
// backend without precise TTL semantics still never serves stale data.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/kv"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Entry is a decoded cache envelope. Payload is the raw JSON of the stored
// value; callers decode it into the typed snapshot they expect, which also
// guarantees the result aliases nothing inside the store.
type Entry struct {
	OwnerID   string          `json:"owner_id"`
	Domain    string          `json:"domain"`
	Filters   string          `json:"filters,omitempty"` // JSON-encoded build filters
	ByteSize  int             `json:"byte_size"`         // compressed size on the wire
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"` // zero means no expiry
	Payload   json.RawMessage `json:"payload"`
}

// Expired reports whether the entry is past its expiry at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Decode unmarshals the entry payload into dest.
func (e *Entry) Decode(dest any) error {
	return json.Unmarshal(e.Payload, dest)
}

// Store writes and reads compressed snapshot entries. Safe for concurrent
// use; last write wins per key.
type Store struct {
	KV  kv.Store
	now func() time.Time // test seam
}

// New returns a Store over the given KV backend.
func New(backend kv.Store) *Store {
	return &Store{KV: backend, now: time.Now}
}

// SnapshotKey builds the canonical cache key for an (owner, domain) pair.
// One live entry per pair: each rebuild overwrites the previous one.
func SnapshotKey(ownerID string, d domain.SnapshotDomain) string {
	return fmt.Sprintf("snap:%s:%s", ownerID, d)
}

// Put serializes value, wraps it in an envelope with the given metadata,
// compresses it, and writes it atomically under key with the given TTL.
// It returns the stored entry with ByteSize set to the compressed size.
func (s *Store) Put(ctx context.Context, key string, value any, ownerID string, dom domain.SnapshotDomain, filters string, ttl time.Duration) (*Entry, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal payload: %w", err)
	}

	now := s.now().UTC()
	entry := &Entry{
		OwnerID:   ownerID,
		Domain:    string(dom),
		Filters:   filters,
		CreatedAt: now,
		Payload:   payload,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	compressed, err := compress(entry)
	if err != nil {
		return nil, err
	}
	entry.ByteSize = len(compressed)

	if err := s.KV.Set(ctx, key, compressed, ttl); err != nil {
		return nil, fmt.Errorf("cache: set %q: %w", key, err)
	}
	return entry, nil
}

// Get returns the entry stored under key, or ErrMiss when absent or past
// its expiry. Expired entries are opportunistically evicted so callers
// never see stale data.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.KV.Get(ctx, key)
	if errors.Is(err, kv.ErrMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %q: %w", key, err)
	}

	entry, err := decompress(raw)
	if err != nil {
		// A corrupt entry is as good as a miss; drop it.
		_ = s.KV.Delete(ctx, key)
		return nil, ErrMiss
	}
	if entry.Expired(s.now()) {
		_ = s.KV.Delete(ctx, key)
		return nil, ErrMiss
	}
	entry.ByteSize = len(raw)
	return entry, nil
}

// Delete evicts the given keys explicitly (manual cache clearing).
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.KV.Delete(ctx, keys...)
}

// compress gzip-encodes the JSON form of the envelope.
func compress(entry *Entry) ([]byte, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal envelope: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("cache: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("cache: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// decompress reverses compress.
func decompress(raw []byte) (*Entry, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("cache: open gzip: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("cache: decompress: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("cache: unmarshal envelope: %w", err)
	}
	return &entry, nil
}
