package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is the capability the read paths are given. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
	TTL() time.Duration
}

const DefaultTTL = 30 * time.Second

// RistrettoStore is a bounded in-process Cache. Cost is the value size in bytes.
type RistrettoStore struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

func NewRistrettoStore(maxBytes int64, ttl time.Duration) (*RistrettoStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoStore{c: c, ttl: ttl}, nil
}

func (s *RistrettoStore) Get(key string) ([]byte, bool) {
	return s.c.Get(key)
}

// Set blocks until the write is visible to Get.
func (s *RistrettoStore) Set(key string, value []byte) {
	s.c.SetWithTTL(key, value, int64(len(value)), s.ttl)
	s.c.Wait()
}

func (s *RistrettoStore) Delete(key string) {
	s.c.Del(key)
}

func (s *RistrettoStore) TTL() time.Duration { return s.ttl }

func (s *RistrettoStore) Close() {
	s.c.Close()
}
