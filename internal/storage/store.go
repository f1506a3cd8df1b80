package storage

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultPrefix namespaces keys written by Store.
const DefaultPrefix = "12.09"

// Backend is raw string storage. Keys returns every key the backend holds.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

type record struct {
	Value  string `json:"value"`
	Time   int64  `json:"time"`
	Expire int64  `json:"expire"`
}

func (r record) expired(now time.Time) bool {
	return r.Expire != 0 && now.UnixMilli()-r.Time > r.Expire
}

// Item is one live entry.
type Item struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store layers prefixing, the JSON envelope and expiry over a Backend.
type Store struct {
	b      Backend
	prefix string
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix. An empty prefix stores keys verbatim.
func WithPrefix(p string) Option { return func(s *Store) { s.prefix = p } }

// WithClock injects the time source used for stamping and expiry.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(b Backend, opts ...Option) *Store {
	s := &Store{b: b, prefix: DefaultPrefix, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + "_" + k
}

// Set stores value under key. ttlSeconds <= 0 never expires.
func (s *Store) Set(ctx context.Context, key, value string, ttlSeconds int) error {
	r := record{Value: value, Time: s.now().UnixMilli()}
	if ttlSeconds > 0 {
		r.Expire = int64(ttlSeconds) * 1000
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return s.b.Set(ctx, s.key(key), strings.TrimSuffix(buf.String(), "\n"))
}

// Get returns the value for key. Missing, unparsable and expired entries
// are reported absent; expired ones are deleted.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.b.Get(ctx, s.key(key))
	if err != nil || !ok || raw == "" || raw == "null" {
		return "", false, err
	}
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return "", false, nil
	}
	if r.expired(s.now()) {
		return "", false, s.b.Delete(ctx, s.key(key))
	}
	return r.Value, true, nil
}

// Has reports whether key holds a live entry.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// All returns every live entry under this store's prefix sorted by key,
// purging expired ones.
func (s *Store) All(ctx context.Context) ([]Item, error) {
	keys, err := s.b.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var p string
	if s.prefix != "" {
		p = s.prefix + "_"
	}
	now := s.now()
	var out []Item
	for _, k := range keys {
		if !strings.HasPrefix(k, p) {
			continue
		}
		raw, ok, err := s.b.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var r record
		if json.Unmarshal([]byte(raw), &r) != nil {
			continue
		}
		if r.expired(now) {
			if err := s.b.Delete(ctx, k); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, Item{Key: strings.TrimPrefix(k, p), Value: r.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Keys returns the unprefixed keys of all live entries.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	items, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	return keys, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.b.Delete(ctx, s.key(key))
}

// Clear empties the backend, including entries written under other prefixes.
func (s *Store) Clear(ctx context.Context) error { return s.b.Clear(ctx) }

// Close releases the backend.
func (s *Store) Close() error { return s.b.Close() }
