// Package cache provides the response cache for computed IIIF outputs,
// backed by NATS JetStream KV.
//
// Entries are keyed by (identifier, mode). Because one chain yields the
// same artifact for every member, each entry is additionally reachable
// through alias keys: one per identifier touched while building the
// output. Purging any chain member therefore invalidates the shared
// artifact for all of them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrNotFound is returned when no cached entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Bucket names for cached responses and alias pointers.
const (
	BucketResponses = "IIIF_RESPONSES"
	BucketAliases   = "IIIF_ALIASES"
)

// Entry is one cached response payload.
type Entry struct {
	Status      int               `json:"status"`
	ContentType string            `json:"content_type"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body"`
	CreatedAt   time.Time         `json:"created_at"`
}

// alias points from a touched identifier to the response keys it
// contributed to, so invalidation by any identifier can reach them all.
type alias struct {
	Keys []string `json:"keys"`
}

// Store is the KV-backed response cache. A nil *Store is valid and
// disables caching.
type Store struct {
	responses jetstream.KeyValue
	aliases   jetstream.KeyValue
	ttl       time.Duration
}

// NewStore creates the cache buckets if they do not exist yet. ttl bounds
// how long entries live regardless of invalidation; zero disables
// expiry.
func NewStore(ctx context.Context, js jetstream.JetStream, ttl time.Duration) (*Store, error) {
	responses, err := getOrCreateBucket(ctx, js, BucketResponses, ttl)
	if err != nil {
		return nil, fmt.Errorf("create responses bucket: %w", err)
	}
	aliases, err := getOrCreateBucket(ctx, js, BucketAliases, ttl)
	if err != nil {
		return nil, fmt.Errorf("create aliases bucket: %w", err)
	}
	return &Store{responses: responses, aliases: aliases, ttl: ttl}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("IIIF %s cache", strings.ToLower(strings.TrimPrefix(name, "IIIF_"))),
		TTL:         ttl,
	})
}

// Get returns the cached entry for (id, mode), or ErrNotFound.
func (s *Store) Get(ctx context.Context, id, mode string) (*Entry, error) {
	if s == nil {
		return nil, ErrNotFound
	}
	kvEntry, err := s.responses.Get(ctx, responseKey(id, mode))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cached response: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(kvEntry.Value(), &e); err != nil {
		return nil, fmt.Errorf("unmarshal cached response: %w", err)
	}
	return &e, nil
}

// Put stores the entry under (id, mode) and records an alias for every
// touched identifier. Alias bookkeeping is best effort: a failed alias
// write does not fail the request, it only weakens invalidation.
func (s *Store) Put(ctx context.Context, id, mode string, e *Entry, touched []string) error {
	if s == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	key := responseKey(id, mode)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}
	if _, err := s.responses.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	for _, t := range touched {
		if err := s.addAlias(ctx, t, key); err != nil {
			return fmt.Errorf("record alias for %s: %w", t, err)
		}
	}
	return nil
}

// Invalidate drops every response entry reachable from the identifier's
// alias record, then the record itself.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	if s == nil {
		return nil
	}
	aliasKey := hashKey(id)
	kvEntry, err := s.aliases.Get(ctx, aliasKey)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("get alias record: %w", err)
	}
	var a alias
	if err := json.Unmarshal(kvEntry.Value(), &a); err != nil {
		return fmt.Errorf("unmarshal alias record: %w", err)
	}
	for _, key := range a.Keys {
		if err := s.responses.Delete(ctx, key); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete cached response: %w", err)
		}
	}
	if err := s.aliases.Delete(ctx, aliasKey); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete alias record: %w", err)
	}
	return nil
}

func (s *Store) addAlias(ctx context.Context, id, responseKey string) error {
	aliasKey := hashKey(id)

	var a alias
	if kvEntry, err := s.aliases.Get(ctx, aliasKey); err == nil {
		if err := json.Unmarshal(kvEntry.Value(), &a); err != nil {
			a = alias{}
		}
	} else if !isNotFound(err) {
		return err
	}

	for _, k := range a.Keys {
		if k == responseKey {
			return nil
		}
	}
	a.Keys = append(a.Keys, responseKey)

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.aliases.Put(ctx, aliasKey, data)
	return err
}

// responseKey derives the KV key for a cached response. Identifiers are
// URIs, which NATS KV keys cannot carry verbatim, so keys are hashes.
func responseKey(id, mode string) string {
	return hashKey(id) + "." + mode
}

func hashKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) ||
		(err != nil && strings.Contains(err.Error(), "key not found"))
}
