package classify

import (
	"fmt"
	"hash/maphash"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/mathutil"
	"github.com/contentshield/contentshield/internal/cscache"
	"github.com/contentshield/contentshield/internal/rulesengine"
)

// Engine wraps one compiled matcher built from the rules of one filter list.
// Engines are immutable once built; a reload constructs brand-new engines and
// releases the old ones.
type Engine struct {
	handle  *rulesengine.Handle
	cache   resultCache
	listURL string
}

// EngineConfig is the configuration structure for an engine.
type EngineConfig struct {
	// ListURL is the URL of the list the rules came from.  It is used in
	// logging and metrics only.
	ListURL string

	// Rules are the rule strings, in list order.
	Rules []string

	// CacheCount is the maximum number of cached decisions.  Zero disables
	// the cache.
	CacheCount int
}

// NewEngine compiles the rules of one list into a new engine.  A compile
// failure returns an error, and the failed engine must not be added to
// a pool.
func NewEngine(c *EngineConfig) (e *Engine, err error) {
	h, err := rulesengine.FromRules(c.Rules)
	if err != nil {
		return nil, fmt.Errorf("compiling %d rules: %w", len(c.Rules), err)
	}

	return &Engine{
		handle:  h,
		cache:   newResultCache(c.CacheCount),
		listURL: c.ListURL,
	}, nil
}

// ListURL returns the URL of the list the engine was built from.
func (e *Engine) ListURL() (u string) {
	return e.listURL
}

// RulesCount returns the number of rules the engine was built from.
func (e *Engine) RulesCount() (n int) {
	return e.handle.RulesCount()
}

// CheckNetworkRequest matches req against the engine's rules.  First-party
// requests are exempt and always produce a successful no-match result
// without invoking the matcher.
func (e *Engine) CheckNetworkRequest(req *Request) (res Result) {
	if e == nil || e.handle == nil || !rulesengine.HasDomainResolver() {
		return newResult(StatusNotInitialized)
	}

	if !req.Valid {
		return newResult(StatusInvalidArg)
	}

	// First-party resources are not classified.  This check runs before the
	// matcher, since the overwhelming majority of loads are first-party.
	if !req.ThirdParty {
		return Result{}
	}

	key := newCacheKey(req)
	if item, ok := e.cache.Get(key); ok && item.url == req.URL {
		return resultFromCheck(item.res)
	}

	cr, err := e.handle.CheckRequest(
		req.URL,
		req.Site,
		req.SourceSite,
		string(req.RequestType),
		req.ThirdParty,
	)
	if err != nil {
		if errors.Is(err, rulesengine.ErrNotInitialized) {
			return newResult(StatusNotInitialized)
		}

		return newResult(StatusInvalidArg)
	}

	e.cache.Set(key, &cacheItem{
		res: cr,
		url: req.URL,
	})

	return resultFromCheck(cr)
}

// resultFromCheck converts the matcher's decision into a successful result.
func resultFromCheck(cr rulesengine.CheckResult) (res Result) {
	return Result{
		matched:   cr.Matched,
		exception: cr.Exception,
		important: cr.Important,
	}
}

// Close releases the engine's matcher handle.  The release happens exactly
// once; later calls are no-ops.
func (e *Engine) Close() (err error) {
	e.cache.Clear()

	return e.handle.Close()
}

// cacheKey is the cache key type for [newCacheKey].
type cacheKey uint64

// hashSeed is the seed used by all hashes to create cache keys.
var hashSeed = maphash.MakeSeed()

// newCacheKey produces a cache key from the matcher-relevant fields of req.
func newCacheKey(req *Request) (k cacheKey) {
	// Use maphash explicitly instead of using a key structure to reduce
	// allocations on the hot path.
	h := &maphash.Hash{}
	h.SetSeed(hashSeed)

	_, _ = h.WriteString(req.URL)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(req.SourceSite)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(string(req.RequestType))
	_ = h.WriteByte(mathutil.BoolToNumber[byte](req.ThirdParty))

	return cacheKey(h.Sum64())
}

// cacheItem is a cached matcher decision.
type cacheItem struct {
	// url is the request URL kept for cache key collision checks.
	url string

	// res is the matcher's decision.
	res rulesengine.CheckResult
}

// resultCache is a convenient alias for cache to keep types in check.
type resultCache = cscache.Interface[cacheKey, *cacheItem]

// newResultCache returns a new decision cache holding up to count items.  If
// count is zero, it returns a cache implementation that does nothing.
func newResultCache(count int) (cache resultCache) {
	if count == 0 {
		return cscache.Empty[cacheKey, *cacheItem]{}
	}

	return cscache.NewLRU[cacheKey, *cacheItem](&cscache.LRUConfig{
		Count: count,
	})
}
