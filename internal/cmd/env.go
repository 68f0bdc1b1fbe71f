package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/caarlos0/env/v7"
	"github.com/contentshield/contentshield/internal/debugsvc"
	"github.com/contentshield/contentshield/internal/errcoll"
	"github.com/contentshield/contentshield/internal/version"
	"github.com/getsentry/sentry-go"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	AnnotateListURLs string `env:"ANNOTATE_LIST_URLS"`
	BlockListURLs    string `env:"BLOCK_LIST_URLS"`
	ConfPath         string `env:"CONFIG_PATH" envDefault:"./config.yaml"`
	ListCachePath    string `env:"LIST_CACHE_PATH" envDefault:"./lists/"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"text"`
	SentryDSN        string `env:"SENTRY_DSN" envDefault:"stderr"`

	ListenAddr net.IP `env:"LISTEN_ADDR" envDefault:"127.0.0.1"`

	ListenPort uint16 `env:"LISTEN_PORT" envDefault:"8181"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	ClassifierEnabled strictBool `env:"CLASSIFIER_ENABLED" envDefault:"1"`
	LogTimestamp      strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	var errs []error

	errs = envs.validateListURLs(errs, "BLOCK_LIST_URLS", envs.BlockListURLs)
	errs = envs.validateListURLs(errs, "ANNOTATE_LIST_URLS", envs.AnnotateListURLs)

	errs = append(errs, validate.NotEmpty("LIST_CACHE_PATH", envs.ListCachePath))

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	return errors.Join(errs...)
}

// validateListURLs appends validation errors to the given errs if the
// pipe-separated list of filter-list URLs in the environment variable named
// name contains invalid entries.  Empty entries are skipped, since the
// classifier skips them as well.
func (envs *environment) validateListURLs(errs []error, name, urls string) (res []error) {
	res = errs
	for _, s := range strings.Split(urls, "|") {
		if s == "" {
			continue
		}

		u, err := url.Parse(s)
		if err != nil {
			res = append(res, fmt.Errorf("env %s: %w", name, err))

			continue
		}

		if !strings.EqualFold(u.Scheme, urlutil.SchemeFile) &&
			!urlutil.IsValidHTTPURLScheme(u.Scheme) {
			res = append(res, fmt.Errorf(
				"env %s: url %q: not a valid http(s) url or file uri",
				name,
				s,
			))
		}
	}

	return res
}

// buildErrColl builds and returns an error collector from environment.
// baseLogger must not be nil.
func (envs *environment) buildErrColl(
	baseLogger *slog.Logger,
) (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, err
	}

	l := baseLogger.With(slogutil.KeyPrefix, "sentry_errcoll")

	return errcoll.NewSentryErrorCollector(cli, l), nil
}

// debugConf returns a debug HTTP service configuration from environment.
func (envs *environment) debugConf(
	logger *slog.Logger,
	refrs debugsvc.Refreshers,
) (conf *debugsvc.Config) {
	return &debugsvc.Config{
		Logger:     logger.With(slogutil.KeyPrefix, "debugsvc"),
		Refreshers: refrs,
		Addr:       netutil.JoinHostPort(envs.ListenAddr.String(), envs.ListenPort),
	}
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) == 1 {
		switch b[0] {
		case '0':
			*sb = false

			return nil
		case '1':
			*sb = true

			return nil
		default:
			// Go on and return an error.
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
}
