package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fluffyriot/rpinsights/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func TrendKey(account uuid.UUID, days int) string {
	return fmt.Sprintf("trend:%s:%d", account, days)
}

func CardKey(account uuid.UUID) string {
	return "card:" + account.String()
}

// Fingerprint hashes the JSON encoding of v and returns it as a quoted ETag.
// Callers pass only fields that are safe to cache.
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:])[:32] + `"`, nil
}

// Matches reports whether an If-None-Match header or an fp query value
// names etag. Weak validators and unquoted values are accepted.
func Matches(etag, ifNoneMatch, fp string) bool {
	if etag == "" {
		return false
	}
	want := strings.Trim(etag, `"`)
	if fp != "" && strings.Trim(strings.TrimSpace(fp), `"`) == want {
		return true
	}
	for _, part := range strings.Split(ifNoneMatch, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "W/")
		if part == "*" || strings.Trim(part, `"`) == want {
			return true
		}
	}
	return false
}

// Entry is a memoized response body with its fingerprint.
type Entry struct {
	ETag string          `json:"etag"`
	Body json.RawMessage `json:"body"`
}

// Freshness memoizes read responses in an injected Cache for its TTL.
type Freshness struct {
	cache   Cache
	windows []int
}

// NewFreshness wraps c. windows lists every trend window so an account's
// entries can be dropped without a key scan.
func NewFreshness(c Cache, windows []int) *Freshness {
	return &Freshness{cache: c, windows: windows}
}

func (f *Freshness) Lookup(key string) (Entry, bool) {
	if f == nil || f.cache == nil {
		return Entry{}, false
	}
	raw, ok := f.cache.Get(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		f.cache.Delete(key)
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Entry{}, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e, true
}

// Remember stores body under key with etag. A nil receiver is a no-op.
func (f *Freshness) Remember(key, etag string, body []byte) {
	if f == nil || f.cache == nil {
		return
	}
	raw, err := json.Marshal(Entry{ETag: etag, Body: body})
	if err != nil {
		return
	}
	f.cache.Set(key, raw)
}

func (f *Freshness) InvalidateAccount(account uuid.UUID) {
	if f == nil || f.cache == nil {
		return
	}
	f.cache.Delete(CardKey(account))
	for _, days := range f.windows {
		f.cache.Delete(TrendKey(account, days))
	}
}
