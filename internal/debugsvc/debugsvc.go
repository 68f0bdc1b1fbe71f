// Package debugsvc contains the debug HTTP API of ContentShield.
package debugsvc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/contentshield/contentshield/internal/cshttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the debug HTTP service of ContentShield.  It serves prometheus
// metrics, pprof, the health check, and the manual-refresh endpoint.
type Service struct {
	log      *slog.Logger
	refrHdlr *refreshHandler
	http     *http.Server
}

// Config is the debug HTTP service configuration structure.
type Config struct {
	// Logger is used to log the operation of the service.  It must not be
	// nil.
	Logger *slog.Logger

	// Refreshers are the refreshers to expose on the manual-refresh
	// endpoint.
	Refreshers Refreshers

	// Addr is the address the service listens on.
	Addr string
}

// New returns a new properly initialized *Service.
func New(c *Config) (svc *Service) {
	svc = &Service{
		log: c.Logger,
		refrHdlr: &refreshHandler{
			refrs: c.Refreshers,
		},
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health-check", svc.middleware(
		http.HandlerFunc(serveHealthCheck),
		slog.LevelDebug,
	))
	mux.Handle("GET /metrics", svc.middleware(promhttp.Handler(), slog.LevelDebug))
	mux.Handle("POST /debug/api/refresh", svc.middleware(svc.refrHdlr, slog.LevelInfo))
	httputil.RoutePprof(mux)

	// #nosec G112 -- Do not set the timeouts, since debug/pprof and similar
	// debug APIs may be busy for a long time.
	svc.http = &http.Server{
		Addr:     c.Addr,
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
	}

	return svc
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// serving but does not wait for the listener to actually go online.  err is
// always nil.
func (svc *Service) Start(ctx context.Context) (err error) {
	go func() {
		defer slogutil.RecoverAndLog(ctx, svc.log)

		svc.log.InfoContext(ctx, "listening", "addr", svc.http.Addr)

		srvErr := svc.http.ListenAndServe()
		if !errors.Is(srvErr, http.ErrServerClosed) {
			svc.log.ErrorContext(ctx, "listening", slogutil.KeyError, srvErr)
		}
	}()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.http.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("debug api shutdown: %w", err)
	}

	svc.log.InfoContext(ctx, "server is shutdown")

	return nil
}

// serveHealthCheck handles the GET /health-check endpoint.
func serveHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(httphdr.ContentType, cshttp.HdrValTextPlain)
	w.WriteHeader(http.StatusOK)

	_, err := io.WriteString(w, "OK\n")
	if err != nil {
		ctx := r.Context()
		l := slogutil.MustLoggerFromContext(ctx)
		l.DebugContext(ctx, "writing health-check response", slogutil.KeyError, err)
	}
}
