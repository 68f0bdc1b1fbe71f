package classify

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/c2h5oh/datasize"
	"github.com/contentshield/contentshield/internal/errcoll"
	"github.com/contentshield/contentshield/internal/listfeed"
	"github.com/contentshield/contentshield/internal/prefs"
	"github.com/contentshield/contentshield/internal/shutdown"
)

// initPhase is the lifecycle phase of the service.
type initPhase uint8

// initPhase values.  Only [phaseInitSucceeded] permits classification.
const (
	phaseNotInited initPhase = iota
	phaseInitFailed
	phaseInitSucceeded
	phaseShutdownStarted
	phaseShutdownEnded
)

// String implements the [fmt.Stringer] interface for initPhase.
func (p initPhase) String() (s string) {
	switch p {
	case phaseNotInited:
		return "not_inited"
	case phaseInitFailed:
		return "init_failed"
	case phaseInitSucceeded:
		return "init_succeeded"
	case phaseShutdownStarted:
		return "shutdown_started"
	case phaseShutdownEnded:
		return "shutdown_ended"
	default:
		return fmt.Sprintf("!bad_phase_%d", p)
	}
}

// Config is the configuration structure for the classification service.
type Config struct {
	// Logger is used to log the operation of the service.  It must not be
	// nil.
	Logger *slog.Logger

	// ErrColl collects reload errors.  It must not be nil.
	ErrColl errcoll.Interface

	// Metrics collects classification statistics.  It must not be nil.
	Metrics Metrics

	// Prefs holds the list-URL preferences the service reloads on.  It must
	// not be nil.
	Prefs *prefs.Store

	// Shutdown is the client of the process-wide teardown barrier.  It must
	// not be nil.
	Shutdown *shutdown.Client

	// CacheDir is the directory for cached list texts.  If empty, lists are
	// always fetched from their URLs.
	CacheDir string

	// ListStaleness is the time after which a cached list text is considered
	// stale.
	ListStaleness time.Duration

	// ListTimeout is the timeout of a single list fetch.
	ListTimeout time.Duration

	// ListMaxSize is the maximum size of a downloadable list text.
	ListMaxSize datasize.ByteSize

	// ResultCacheCount is the maximum number of cached decisions per engine.
	// Zero disables the decision cache.
	ResultCacheCount int
}

// Service is the content classification service.  It owns the two engine
// pools, reloads them when the list-URL preferences change, and answers
// classification calls from the networking path.
//
// A single mutex guards the lifecycle phase and both pools as one unit, so
// classification always observes either the previous complete pools or the
// next complete pools, never a partial state.
type Service struct {
	logger  *slog.Logger
	errColl errcoll.Interface
	metrics Metrics
	prefs   *prefs.Store
	shutd   *shutdown.Client

	cacheDir         string
	listStaleness    time.Duration
	listTimeout      time.Duration
	listMaxSize      datasize.ByteSize
	resultCacheCount int

	// mu protects phase, blockPool, annotatePool, blockCBID, and
	// annotateCBID.
	mu           *sync.Mutex
	phase        initPhase
	blockPool    []*Engine
	annotatePool []*Engine
	blockCBID    prefs.CallbackID
	annotateCBID prefs.CallbackID
}

// New returns a new, not yet initialized, classification service.  c must
// not be nil.  There is no lazily constructed process-wide instance; the
// caller constructs the service once and hands it to the call sites.
func New(c *Config) (s *Service) {
	return &Service{
		logger:           c.Logger,
		errColl:          c.ErrColl,
		metrics:          c.Metrics,
		prefs:            c.Prefs,
		shutd:            c.Shutdown,
		cacheDir:         c.CacheDir,
		listStaleness:    c.ListStaleness,
		listTimeout:      c.ListTimeout,
		listMaxSize:      c.ListMaxSize,
		resultCacheCount: c.ResultCacheCount,
		mu:               &sync.Mutex{},
		phase:            phaseNotInited,
	}
}

// Init prepares the service for classification.  It is idempotent: calls
// after the phase has left the initial one are no-ops.  On success the
// service registers itself on the teardown barrier, subscribes to the two
// list-URL preferences, and starts the first list load in the background.
func (s *Service) Init(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != phaseNotInited {
		return nil
	}

	defer func() {
		if err != nil {
			s.phase = phaseInitFailed
		}
	}()

	if s.shutd.Closed() {
		return errors.Error("init: teardown already started")
	}

	err = s.shutd.AddBlocker(s)
	if err != nil {
		return fmt.Errorf("init: registering blocker: %w", err)
	}

	s.blockCBID = s.prefs.RegisterCallback(prefs.BlockListURLs, s.onPrefChange)
	s.annotateCBID = s.prefs.RegisterCallback(prefs.AnnotateListURLs, s.onPrefChange)

	s.phase = phaseInitSucceeded

	s.loadAsync(ctx)

	return nil
}

// onPrefChange is the callback for both list-URL preferences.  Reloads are
// not debounced: overlapping changes start overlapping loads, and the later
// swap wins.
func (s *Service) onPrefChange(ctx context.Context, name string) {
	s.logger.InfoContext(ctx, "list pref changed", "name", name)

	s.loadAsync(ctx)
}

// loadAsync starts one full list load in the background.
func (s *Service) loadAsync(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer slogutil.RecoverAndLog(ctx, s.logger)

		err := s.LoadFilterLists(ctx)
		if err != nil {
			errcoll.Collect(ctx, s.errColl, s.logger, "loading filter lists", err)
		}
	}()
}

// LoadFilterLists reads the two list-URL preferences, fetches every list
// concurrently, compiles one engine per successfully loaded list, and swaps
// both pools atomically.  A list that fails to fetch or compile contributes
// zero engines but never aborts its siblings.  The mutex is held only around
// the final swap, never across the fetches.
func (s *Service) LoadFilterLists(ctx context.Context) (err error) {
	blockURLs := splitListPref(s.prefs.GetString(prefs.BlockListURLs))
	annotateURLs := splitListPref(s.prefs.GetString(prefs.AnnotateListURLs))

	blockRules := s.loadAll(ctx, blockURLs)
	annotateRules := s.loadAll(ctx, annotateURLs)

	blockPool := s.compilePool(ctx, blockURLs, blockRules)
	annotatePool := s.compilePool(ctx, annotateURLs, annotateRules)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != phaseInitSucceeded {
		s.closePools(ctx, blockPool, annotatePool)

		return fmt.Errorf("not swapping pools: phase is %s", s.phase)
	}

	prevBlock, prevAnnotate := s.blockPool, s.annotatePool
	s.blockPool, s.annotatePool = blockPool, annotatePool

	s.closePools(ctx, prevBlock, prevAnnotate)

	s.logger.InfoContext(
		ctx,
		"pools swapped",
		"block_engines", len(blockPool),
		"annotate_engines", len(annotatePool),
	)

	return nil
}

// splitListPref splits a pipe-delimited list-URL preference value, skipping
// empty segments.
func splitListPref(val string) (urls []string) {
	for _, u := range strings.Split(val, "|") {
		if u != "" {
			urls = append(urls, u)
		}
	}

	return urls
}

// loadListResult is the outcome of loading one list.
type loadListResult struct {
	err   error
	rules []string
	idx   int
}

// loadAll fetches every list concurrently and joins all outcomes regardless
// of individual failures.  ruleSets is parallel to urls; a failed list has a
// nil entry.
func (s *Service) loadAll(ctx context.Context, urls []string) (ruleSets [][]string) {
	ruleSets = make([][]string, len(urls))

	resCh := make(chan loadListResult, len(urls))
	for i, u := range urls {
		go func() {
			defer slogutil.RecoverAndLog(ctx, s.logger)

			rules, err := s.loadOne(ctx, u)
			resCh <- loadListResult{
				err:   err,
				rules: rules,
				idx:   i,
			}
		}()
	}

	for range urls {
		res := <-resCh
		if res.err != nil {
			listURL := urls[res.idx]
			errcoll.Collect(ctx, s.errColl, s.logger, "loading list", res.err)
			s.metrics.ObserveListUpdate(ctx, listURL, 0, res.err)

			continue
		}

		ruleSets[res.idx] = res.rules
	}

	return ruleSets
}

// loadOne fetches and parses one list.
func (s *Service) loadOne(ctx context.Context, listURL string) (rules []string, err error) {
	u, err := url.Parse(listURL)
	if err != nil {
		return nil, fmt.Errorf("parsing list url: %w", err)
	}

	l, err := listfeed.NewLoader(&listfeed.Config{
		Logger:    s.logger,
		URL:       u,
		CachePath: s.listCachePath(listURL),
		Staleness: s.listStaleness,
		Timeout:   s.listTimeout,
		MaxSize:   s.listMaxSize,
	})
	if err != nil {
		return nil, err
	}

	return l.Load(ctx, false)
}

// listCachePath returns the cache-file path for one list URL, or an empty
// string if list caching is disabled.
func (s *Service) listCachePath(listURL string) (p string) {
	if s.cacheDir == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(listURL))

	return filepath.Join(s.cacheDir, fmt.Sprintf("%x.txt", sum[:8]))
}

// compilePool compiles one engine per successfully loaded list, preserving
// the configured list order.  A compile failure drops only that list.
func (s *Service) compilePool(
	ctx context.Context,
	urls []string,
	ruleSets [][]string,
) (pool []*Engine) {
	for i, rules := range ruleSets {
		if rules == nil {
			continue
		}

		listURL := urls[i]
		e, err := NewEngine(&EngineConfig{
			ListURL:    listURL,
			Rules:      rules,
			CacheCount: s.resultCacheCount,
		})
		if err != nil {
			errcoll.Collect(ctx, s.errColl, s.logger, "compiling list", err)
			s.metrics.ObserveListUpdate(ctx, listURL, 0, err)

			continue
		}

		s.metrics.ObserveListUpdate(ctx, listURL, e.RulesCount(), nil)
		pool = append(pool, e)
	}

	return pool
}

// closePools releases the engines of the given pools, logging close errors.
func (s *Service) closePools(ctx context.Context, pools ...[]*Engine) {
	for _, pool := range pools {
		for _, e := range pool {
			err := e.Close()
			if err != nil {
				s.logger.WarnContext(ctx, "closing engine", slogutil.KeyError, err)
			}
		}
	}
}

// ClassifyForCancel decides whether req should be blocked, using the block
// pool.  It is safe for concurrent use and never blocks on network I/O.
func (s *Service) ClassifyForCancel(ctx context.Context, req *Request) (res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res = s.classifyWithEngines(s.blockPool, req)
	s.metrics.ObserveClassification(ctx, ModeCancel, res)
	s.logger.DebugContext(
		ctx,
		"classified for cancel",
		"url", req.URL,
		"hit", res.Hit(),
		"exception", res.Exception(),
	)

	return res
}

// ClassifyForAnnotate decides whether req should be flagged but allowed,
// using the annotate pool.  It is safe for concurrent use and never blocks
// on network I/O.
func (s *Service) ClassifyForAnnotate(ctx context.Context, req *Request) (res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res = s.classifyWithEngines(s.annotatePool, req)
	s.metrics.ObserveClassification(ctx, ModeAnnotate, res)
	s.logger.DebugContext(
		ctx,
		"classified for annotate",
		"url", req.URL,
		"hit", res.Hit(),
		"exception", res.Exception(),
	)

	return res
}

// classifyWithEngines fans req out across pool in insertion order,
// accumulating per-engine results and stopping early once the accumulated
// decision is important.  It must be called with the mutex held.
func (s *Service) classifyWithEngines(pool []*Engine, req *Request) (res Result) {
	if s.phase != phaseInitSucceeded {
		return newResult(StatusNotInitialized)
	}

	if !req.Valid {
		return newResult(StatusInvalidArg)
	}

	for _, e := range pool {
		res.Accumulate(e.CheckNetworkRequest(req))
		if res.Important() {
			break
		}
	}

	return res
}

// type check
var _ shutdown.Blocker = (*Service)(nil)

// Name implements the [shutdown.Blocker] interface for *Service.
func (s *Service) Name() (name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fmt.Sprintf("content classifier (%s)", s.phase)
}

// BlockShutdown implements the [shutdown.Blocker] interface for *Service.
// It stops further classification, unsubscribes from the preferences,
// releases every engine, and removes the service from the barrier.  Repeated
// calls are no-ops.
func (s *Service) BlockShutdown(ctx context.Context, client *shutdown.Client) (err error) {
	s.mu.Lock()

	if s.phase == phaseShutdownStarted || s.phase == phaseShutdownEnded {
		s.mu.Unlock()

		return nil
	}

	s.phase = phaseShutdownStarted

	s.prefs.UnregisterCallback(prefs.BlockListURLs, s.blockCBID)
	s.prefs.UnregisterCallback(prefs.AnnotateListURLs, s.annotateCBID)

	s.closePools(ctx, s.blockPool, s.annotatePool)
	s.blockPool, s.annotatePool = nil, nil

	s.mu.Unlock()

	err = client.RemoveBlocker(s)

	s.mu.Lock()
	s.phase = phaseShutdownEnded
	s.mu.Unlock()

	return err
}

// type check
var _ service.Refresher = (*Service)(nil)

// Refresh implements the [service.Refresher] interface for *Service.  It
// performs one full synchronous list load, keeping remote list changes
// picked up without a preference change.
func (s *Service) Refresh(ctx context.Context) (err error) {
	s.logger.InfoContext(ctx, "refresh started")
	defer s.logger.InfoContext(ctx, "refresh finished")

	return s.LoadFilterLists(ctx)
}
