// Package cmd is the ContentShield entry point.  It contains the on-disk
// configuration file utilities, signal processing logic, and so on.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/contentshield/contentshield/internal/classify"
	"github.com/contentshield/contentshield/internal/debugsvc"
	"github.com/contentshield/contentshield/internal/metrics"
	"github.com/contentshield/contentshield/internal/prefs"
	"github.com/contentshield/contentshield/internal/rulesengine"
	"github.com/contentshield/contentshield/internal/shutdown"
	"github.com/contentshield/contentshield/internal/sitename"
	"github.com/contentshield/contentshield/internal/version"
	"golang.org/x/sys/unix"
)

// shutdownTimeout is the default shutdown timeout for all services.
const shutdownTimeout = 5 * time.Second

// listCacheDirPerm is the permission bits for the list cache directory.
const listCacheDirPerm = 0o700

// Main is the entry point of application.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)

	envs := errors.Must(parseEnvironment())
	errors.Check(envs.Validate())

	lvl := errors.Must(slogutil.VerbosityToLevel(envs.Verbosity))
	baseLogger := slogutil.New(&slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: bool(envs.LogTimestamp),
		Level:        lvl,
	})

	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	// Signal service startup now that we have the logs set up.
	branch := version.Branch()
	commitTime := version.CommitTime()
	buildVersion := version.Version()
	revision := version.Revision()
	mainLogger.InfoContext(
		ctx,
		"contentshield starting",
		"version", buildVersion,
		"revision", revision,
		"branch", branch,
		"commit_time", commitTime,
	)

	errColl := errors.Must(envs.buildErrColl(baseLogger))

	c := errors.Must(parseConfig(envs.ConfPath))
	errors.Check(c.Validate())

	errors.Check(os.MkdirAll(envs.ListCachePath, listCacheDirPerm))

	sigHdlr := service.NewSignalHandler(&service.SignalHandlerConfig{
		Logger:          baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
		ShutdownTimeout: shutdownTimeout,
	})

	// The matcher requires the domain resolver before any request check.
	rulesengine.SetDomainResolver(sitename.Resolver{})

	store := prefs.NewStore()
	store.SetString(ctx, prefs.BlockListURLs, envs.BlockListURLs)
	store.SetString(ctx, prefs.AnnotateListURLs, envs.AnnotateListURLs)
	store.SetBool(ctx, prefs.Enabled, bool(envs.ClassifierEnabled))

	barrier := shutdown.NewBarrier(baseLogger.With(slogutil.KeyPrefix, "shutdown"))
	sigHdlr.AddService(barrier)

	svc := classify.New(&classify.Config{
		Logger:           baseLogger.With(slogutil.KeyPrefix, "classify"),
		ErrColl:          errColl,
		Metrics:          metrics.Classify{},
		Prefs:            store,
		Shutdown:         barrier.Client(),
		CacheDir:         envs.ListCachePath,
		ListStaleness:    time.Duration(c.Lists.Staleness),
		ListTimeout:      time.Duration(c.Lists.RefreshTimeout),
		ListMaxSize:      c.Lists.MaxSize,
		ResultCacheCount: c.ResultCache.count(),
	})

	errors.Check(svc.Init(ctx))
	errors.Check(svc.Refresh(ctx))

	refrWorker := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(
			time.Duration(c.Lists.RefreshTimeout),
		),
		ErrorHandler:      newSlogErrorHandler(baseLogger, "list_refresh"),
		Refresher:         svc,
		Schedule:          timeutil.NewConstSchedule(time.Duration(c.Lists.RefreshIvl)),
		RefreshOnShutdown: false,
	})
	errors.Check(refrWorker.Start(context.WithoutCancel(ctx)))
	sigHdlr.AddService(refrWorker)

	debugSvc := debugsvc.New(envs.debugConf(baseLogger, debugsvc.Refreshers{
		"lists": svc,
	}))
	errors.Check(debugSvc.Start(context.WithoutCancel(ctx)))
	sigHdlr.AddService(debugSvc)

	// Signal that the server is started.
	metrics.SetUpGauge(buildVersion, commitTime, branch, revision, runtime.Version())

	// Unregister the signal behavior for ctx.
	stop()
	ctx = context.WithoutCancel(ctx)

	os.Exit(sigHdlr.Handle(ctx))
}

// newSlogErrorHandler is a convenient wrapper around
// [service.NewSlogErrorHandler].
func newSlogErrorHandler(baseLogger *slog.Logger, prefix string) (h *service.SlogErrorHandler) {
	return service.NewSlogErrorHandler(
		baseLogger.With(slogutil.KeyPrefix, prefix),
		slog.LevelError,
		"refreshing",
	)
}
