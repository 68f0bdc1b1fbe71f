package debugsvc_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/contentshield/contentshield/internal/cshttp"
	"github.com/contentshield/contentshield/internal/debugsvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is a common timeout for tests.
const testTimeout = 1 * time.Second

// testRefresher is a [service.Refresher] for tests.
type testRefresher struct {
	onRefresh func(ctx context.Context) (err error)
}

// Refresh implements the [service.Refresher] interface for *testRefresher.
func (r *testRefresher) Refresh(ctx context.Context) (err error) {
	return r.onRefresh(ctx)
}

func TestService_Start(t *testing.T) {
	const addr = "127.0.0.1:8082"

	refreshed := false
	c := &debugsvc.Config{
		Logger: slogutil.NewDiscardLogger(),
		Refreshers: debugsvc.Refreshers{
			"lists": &testRefresher{
				onRefresh: func(_ context.Context) (err error) {
					refreshed = true

					return nil
				},
			},
		},
		Addr: addr,
	}

	svc := debugsvc.New(c)
	require.NotNil(t, svc)

	var err error
	require.NotPanics(t, func() {
		err = svc.Start(testutil.ContextWithTimeout(t, testTimeout))
	})
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, func() (err error) {
		return svc.Shutdown(testutil.ContextWithTimeout(t, testTimeout))
	})

	client := http.Client{
		Timeout: 2 * time.Second,
	}

	var resp *http.Response
	var body []byte

	// First check health-check service URL.  As the service could not be
	// ready yet, check for it periodically.
	require.Eventually(t, func() bool {
		resp, err = client.Get(fmt.Sprintf("http://%s/health-check", addr))
		return err == nil
	}, 1*time.Second, 100*time.Millisecond)

	body = readRespBody(t, resp)
	assert.Equal(t, []byte("OK\n"), body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, cshttp.HdrValTextPlain, resp.Header.Get(httphdr.ContentType))

	// Check pprof service URL.
	resp, err = client.Get(fmt.Sprintf("http://%s/debug/pprof/", addr))
	require.NoError(t, err)

	body = readRespBody(t, resp)
	assert.True(t, len(body) > 0)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Check prometheus service URL.
	resp, err = client.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)

	body = readRespBody(t, resp)
	assert.True(t, len(body) > 0)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Check refresh API.
	reqBody := strings.NewReader(`{"ids":["lists"]}`)
	urlStr := fmt.Sprintf("http://%s/debug/api/refresh", addr)
	resp, err = client.Post(urlStr, "application/json", reqBody)
	require.NoError(t, err)

	assert.True(t, refreshed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, cshttp.HdrValApplicationJSON, resp.Header.Get(httphdr.ContentType))

	body = readRespBody(t, resp)
	assert.Equal(t, []byte(`{"results":{"lists":"ok"}}`+"\n"), body)
}

// readRespBody is a helper function that reads and returns body from
// response.
func readRespBody(t testing.TB, resp *http.Response) (body []byte) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}
