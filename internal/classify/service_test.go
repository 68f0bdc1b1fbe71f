package classify_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/contentshield/contentshield/internal/classify"
	"github.com/contentshield/contentshield/internal/classify/classifytest"
	"github.com/contentshield/contentshield/internal/errcoll"
	"github.com/contentshield/contentshield/internal/prefs"
	"github.com/contentshield/contentshield/internal/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is the assembled test fixture for service tests.
type testEnv struct {
	svc     *classify.Service
	prefs   *prefs.Store
	barrier *shutdown.Barrier
}

// newTestEnv builds a service over the given list-URL preference values and
// initializes it.  blockLists and annotateLists are already pipe-delimited
// preference values.
func newTestEnv(t testing.TB, blockLists, annotateLists string) (env *testEnv) {
	t.Helper()

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	store := prefs.NewStore()
	store.SetString(ctx, prefs.BlockListURLs, blockLists)
	store.SetString(ctx, prefs.AnnotateListURLs, annotateLists)

	logger := slogutil.NewDiscardLogger()
	barrier := shutdown.NewBarrier(logger)

	svc := classify.New(&classify.Config{
		Logger:           logger,
		ErrColl:          errcoll.NewWriterErrorCollector(io.Discard),
		Metrics:          classify.EmptyMetrics{},
		Prefs:            store,
		Shutdown:         barrier.Client(),
		ListTimeout:      classifytest.Timeout,
		ListMaxSize:      classifytest.ListMaxSize,
		ResultCacheCount: 100,
	})

	require.NoError(t, svc.Init(ctx))

	// Load synchronously so that the tests below observe a settled pool.
	require.NoError(t, svc.LoadFilterLists(ctx))

	t.Cleanup(func() {
		cleanupCtx := testutil.ContextWithTimeout(t, classifytest.Timeout)
		_ = barrier.Shutdown(cleanupCtx)
	})

	return &testEnv{
		svc:     svc,
		prefs:   store,
		barrier: barrier,
	}
}

func TestService_ClassifyForCancel(t *testing.T) {
	t.Parallel()

	_, srvURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)
	env := newTestEnv(t, srvURL.String(), "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	res := env.svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.True(t, res.Hit())

	// First-party requests are exempt regardless of pool contents.
	res = env.svc.ClassifyForCancel(ctx, newTestRequest(false))
	assert.Equal(t, classify.StatusOK, res.Status())
	assert.False(t, res.Hit())

	// The annotate pool is independent and empty here.
	res = env.svc.ClassifyForAnnotate(ctx, newTestRequest(true))
	assert.False(t, res.Hit())
}

func TestService_ClassifyForAnnotate(t *testing.T) {
	t.Parallel()

	_, srvURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)
	env := newTestEnv(t, "", srvURL.String())

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	res := env.svc.ClassifyForAnnotate(ctx, newTestRequest(true))
	assert.True(t, res.Hit())

	res = env.svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.False(t, res.Hit())
}

func TestService_ClassifyForCancel_invalid(t *testing.T) {
	t.Parallel()

	_, srvURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)
	env := newTestEnv(t, srvURL.String(), "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	res := env.svc.ClassifyForCancel(ctx, &classify.Request{})
	assert.Equal(t, classify.StatusInvalidArg, res.Status())
	assert.False(t, res.Hit())
}

func TestService_notInitialized(t *testing.T) {
	t.Parallel()

	logger := slogutil.NewDiscardLogger()
	svc := classify.New(&classify.Config{
		Logger:   logger,
		ErrColl:  errcoll.NewWriterErrorCollector(io.Discard),
		Metrics:  classify.EmptyMetrics{},
		Prefs:    prefs.NewStore(),
		Shutdown: shutdown.NewBarrier(logger).Client(),
	})

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	res := svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.Equal(t, classify.StatusNotInitialized, res.Status())
}

func TestService_Init_idempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "", "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)
	require.NoError(t, env.svc.Init(ctx))
	require.NoError(t, env.svc.Init(ctx))
}

func TestService_Init_closedBarrier(t *testing.T) {
	t.Parallel()

	logger := slogutil.NewDiscardLogger()
	barrier := shutdown.NewBarrier(logger)

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)
	require.NoError(t, barrier.Shutdown(ctx))

	svc := classify.New(&classify.Config{
		Logger:   logger,
		ErrColl:  errcoll.NewWriterErrorCollector(io.Discard),
		Metrics:  classify.EmptyMetrics{},
		Prefs:    prefs.NewStore(),
		Shutdown: barrier.Client(),
	})

	err := svc.Init(ctx)
	testutil.AssertErrorMsg(t, "init: teardown already started", err)

	res := svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.Equal(t, classify.StatusNotInitialized, res.Status())
}

func TestService_LoadFilterLists_failedListIsolation(t *testing.T) {
	t.Parallel()

	_, goodURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)
	_, badURL := classifytest.PrepareListServer(t, nil, "", http.StatusInternalServerError)

	env := newTestEnv(t, badURL.String()+"|"+goodURL.String(), "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	// The failed list contributes zero engines but the good one still does.
	res := env.svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.True(t, res.Hit())
}

func TestService_ClassifyForCancel_importantShortCircuit(t *testing.T) {
	t.Parallel()

	_, firstURL := classifytest.PrepareListServer(
		t,
		nil,
		classifytest.RuleImportant+"\n",
		http.StatusOK,
	)
	_, secondURL := classifytest.PrepareListServer(
		t,
		nil,
		"@@||"+classifytest.Host+"^\n",
		http.StatusOK,
	)

	env := newTestEnv(t, firstURL.String()+"|"+secondURL.String(), "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	// The first list's important match locks the decision before the second
	// list's exception is consulted.
	res := env.svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.True(t, res.Hit())
	assert.True(t, res.Important())
}

func TestService_OnPrefChange(t *testing.T) {
	t.Parallel()

	const otherHost = "other-tracker.example"

	_, firstURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)
	_, secondURL := classifytest.PrepareListServer(t, nil, "||"+otherHost+"^\n", http.StatusOK)

	env := newTestEnv(t, firstURL.String(), "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)
	require.True(t, env.svc.ClassifyForCancel(ctx, newTestRequest(true)).Hit())

	// Changing the preference starts a reload in the background; the
	// previous pool keeps serving until the swap.
	env.prefs.SetString(ctx, prefs.BlockListURLs, secondURL.String())

	assert.Eventually(t, func() (ok bool) {
		evCtx := testutil.ContextWithTimeout(t, classifytest.Timeout)

		hitOld := env.svc.ClassifyForCancel(evCtx, newTestRequest(true)).Hit()
		hitNew := env.svc.ClassifyForCancel(evCtx, newTestRequestFor(otherHost)).Hit()

		return !hitOld && hitNew
	}, classifytest.Timeout, 10*time.Millisecond)
}

func TestService_OnPrefChange_doubleChange(t *testing.T) {
	t.Parallel()

	const (
		hostB1 = "b-one.example"
		hostB2 = "b-two.example"
		hostC1 = "c-one.example"
		hostC2 = "c-two.example"
	)

	_, b1URL := classifytest.PrepareListServer(t, nil, "||"+hostB1+"^\n", http.StatusOK)
	_, b2URL := classifytest.PrepareListServer(t, nil, "||"+hostB2+"^\n", http.StatusOK)
	_, c1URL := classifytest.PrepareListServer(t, nil, "||"+hostC1+"^\n", http.StatusOK)
	_, c2URL := classifytest.PrepareListServer(t, nil, "||"+hostC2+"^\n", http.StatusOK)

	env := newTestEnv(t, "", "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)
	env.prefs.SetString(ctx, prefs.BlockListURLs, b1URL.String()+"|"+b2URL.String())
	env.prefs.SetString(ctx, prefs.BlockListURLs, c1URL.String()+"|"+c2URL.String())

	// Two overlapping reloads settle on one configuration in full, never a
	// mixture of both.
	assert.Eventually(t, func() (ok bool) {
		evCtx := testutil.ContextWithTimeout(t, classifytest.Timeout)

		hitB := env.svc.ClassifyForCancel(evCtx, newTestRequestFor(hostB1)).Hit() &&
			env.svc.ClassifyForCancel(evCtx, newTestRequestFor(hostB2)).Hit()
		hitC := env.svc.ClassifyForCancel(evCtx, newTestRequestFor(hostC1)).Hit() &&
			env.svc.ClassifyForCancel(evCtx, newTestRequestFor(hostC2)).Hit()

		return hitB != hitC
	}, classifytest.Timeout, 10*time.Millisecond)
}

// syncBuffer is a goroutine-safe log output buffer.  The background reload
// goroutines share the service logger with the test goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements the [io.Writer] interface for *syncBuffer.
func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// String returns the written log output.
func (b *syncBuffer) String() (s string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestService_Classify_logging(t *testing.T) {
	t.Parallel()

	_, srvURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)

	store := prefs.NewStore()
	store.SetString(ctx, prefs.BlockListURLs, srvURL.String())

	logOutput := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	barrier := shutdown.NewBarrier(slogutil.NewDiscardLogger())
	svc := classify.New(&classify.Config{
		Logger:           logger,
		ErrColl:          errcoll.NewWriterErrorCollector(io.Discard),
		Metrics:          classify.EmptyMetrics{},
		Prefs:            store,
		Shutdown:         barrier.Client(),
		ListTimeout:      classifytest.Timeout,
		ListMaxSize:      classifytest.ListMaxSize,
		ResultCacheCount: 100,
	})

	require.NoError(t, svc.Init(ctx))
	require.NoError(t, svc.LoadFilterLists(ctx))

	t.Cleanup(func() {
		cleanupCtx := testutil.ContextWithTimeout(t, classifytest.Timeout)
		_ = barrier.Shutdown(cleanupCtx)
	})

	// Each decision is logged at debug level with the outcome.
	require.True(t, svc.ClassifyForCancel(ctx, newTestRequest(true)).Hit())
	assert.Contains(t, logOutput.String(), "classified for cancel")
	assert.Contains(t, logOutput.String(), "hit=true")

	svc.ClassifyForAnnotate(ctx, newTestRequest(true))
	assert.Contains(t, logOutput.String(), "classified for annotate")
}

func TestService_BlockShutdown(t *testing.T) {
	t.Parallel()

	_, srvURL := classifytest.PrepareListServer(t, nil, classifytest.RuleBlock+"\n", http.StatusOK)
	env := newTestEnv(t, srvURL.String(), "")

	ctx := testutil.ContextWithTimeout(t, classifytest.Timeout)
	require.True(t, env.svc.ClassifyForCancel(ctx, newTestRequest(true)).Hit())

	require.NoError(t, env.barrier.Shutdown(ctx))

	res := env.svc.ClassifyForCancel(ctx, newTestRequest(true))
	assert.Equal(t, classify.StatusNotInitialized, res.Status())

	// Reloads after teardown refuse to swap.
	err := env.svc.LoadFilterLists(ctx)
	testutil.AssertErrorMsg(t, "not swapping pools: phase is shutdown_ended", err)
}
