package interceptor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/llm"
)

// Entry is a cached response with an optional expiry.
type Entry struct {
	Response  *llm.Response `json:"response"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired reports whether the entry's expiry has passed. Entries without an
// expiry never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store is a cache backend. A nil entry from Get means a miss. Stores may be
// shared across executors or processes; implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// KeyFunc derives a cache key from the call inputs.
type KeyFunc func(model string, messages []llm.Message, opts llm.ChatOptions) string

// DefaultKey hashes the model name, the ordered role and text of every
// message, and the serialized options. Tool schemas are excluded so the same
// conversation hits regardless of registry composition.
func DefaultKey(model string, messages []llm.Message, opts llm.ChatOptions) string {
	h := sha256.New()
	io.WriteString(h, model)
	for _, m := range messages {
		io.WriteString(h, "\x00")
		io.WriteString(h, string(m.Role))
		io.WriteString(h, "\x00")
		io.WriteString(h, m.Text())
	}
	opts.Tools = nil
	if raw, err := json.Marshal(opts); err == nil {
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CacheConfig configures the Cache interceptor.
type CacheConfig struct {
	// TTL bounds how long entries stay valid. Zero means entries never
	// expire.
	TTL time.Duration
	// Store is the backend. Defaults to a private in-process map; inject a
	// shared store to cache across executors.
	Store Store
	// KeyFunc overrides the cache key derivation. Defaults to DefaultKey.
	KeyFunc KeyFunc
}

// Cache short-circuits repeated calls by replaying stored responses. Hits
// terminate the chain before the model is invoked.
type Cache struct {
	Base
	ttl   time.Duration
	store Store
	keyFn KeyFunc
}

// NewCache creates a Cache interceptor.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Store == nil {
		cfg.Store = newMemoryStore()
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultKey
	}
	return &Cache{ttl: cfg.TTL, store: cfg.Store, keyFn: cfg.KeyFunc}
}

func (c *Cache) Name() string { return "cache" }

// OnEnter looks the call up in the store. A fresh hit terminates the chain
// with the stored response; an expired hit is evicted and treated as a miss.
// Store failures degrade to misses.
func (c *Cache) OnEnter(ctx context.Context, call *Context) error {
	key := c.keyFn(call.Model().Describe().Model, call.EffectiveMessages(), call.EffectiveOptions())
	call.Set(MetaCacheKey, key)

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("call_id", call.ID()).Msg("Cache lookup failed")
		observability.RecordCacheLookup(false)
		return nil
	}
	if entry == nil {
		observability.RecordCacheLookup(false)
		return nil
	}
	if entry.Expired(time.Now()) {
		if err := c.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("call_id", call.ID()).Msg("Cache eviction failed")
		}
		observability.RecordCacheLookup(false)
		return nil
	}

	observability.RecordCacheLookup(true)
	call.Set(MetaCacheHit, true)
	call.Terminate(entry.Response)
	return nil
}

// OnLeave stores successful responses that did not come from the cache.
func (c *Cache) OnLeave(ctx context.Context, call *Context) error {
	if call.GetBool(MetaCacheHit) || call.Err() != nil {
		return nil
	}
	resp := call.Response()
	if resp == nil {
		return nil
	}
	key, ok := call.Get(MetaCacheKey)
	if !ok {
		return nil
	}

	entry := &Entry{Response: resp}
	if c.ttl > 0 {
		entry.ExpiresAt = time.Now().Add(c.ttl)
	}
	if err := c.store.Set(ctx, key.(string), entry); err != nil {
		log.Warn().Err(err).Str("call_id", call.ID()).Msg("Cache store failed")
	}
	return nil
}

// memoryStore is the default per-interceptor backend.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]*Entry)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key], nil
}

func (s *memoryStore) Set(ctx context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
