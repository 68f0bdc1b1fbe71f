// Package listfeed fetches filter-list texts from file and HTTP(S) URLs and
// splits them into rules.
package listfeed

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/c2h5oh/datasize"
	"github.com/contentshield/contentshield/internal/cshttp"
	renameio "github.com/google/renameio/v2"
)

// Loader loads the text of a single filter list from a file or an HTTP(S)
// URL, optionally keeping a cached copy on disk.
type Loader struct {
	logger    *slog.Logger
	http      *cshttp.Client
	url       *url.URL
	cachePath string
	staleness time.Duration
	maxSize   datasize.ByteSize
}

// Config is the configuration structure for a list loader.
type Config struct {
	// Logger is used to log the progress of loads.  It must not be nil.
	Logger *slog.Logger

	// URL is the URL the list text is loaded from.  It should be either
	// a file URL or an HTTP(S) URL and should not be nil.
	URL *url.URL

	// CachePath is the path to the file containing the cached list text.  If
	// empty, the text is always loaded from the URL.
	CachePath string

	// Staleness is the time after which a cached file is considered stale.
	Staleness time.Duration

	// Timeout is the timeout for the HTTP client used by this loader.
	Timeout time.Duration

	// MaxSize is the maximum size of the downloadable list text.
	MaxSize datasize.ByteSize
}

// NewLoader returns a new list loader.  c must not be nil.  Malformed and
// unsupported URLs are rejected here, before any loading takes place.
func NewLoader(c *Config) (l *Loader, err error) {
	if c.URL == nil {
		return nil, errors.Error("listfeed.NewLoader: nil url")
	} else if s := c.URL.Scheme; !strings.EqualFold(s, urlutil.SchemeFile) &&
		!urlutil.IsValidHTTPURLScheme(s) {
		return nil, fmt.Errorf("listfeed.NewLoader: bad url scheme %q", s)
	}

	return &Loader{
		logger: c.Logger,
		http: cshttp.NewClient(&cshttp.ClientConfig{
			Timeout: c.Timeout,
		}),
		url:       c.URL,
		cachePath: c.CachePath,
		staleness: c.Staleness,
		maxSize:   c.MaxSize,
	}, nil
}

// URL returns the URL this loader loads from.  The URL must not be modified.
func (l *Loader) URL() (u *url.URL) {
	return l.url
}

// Load fetches the list text and splits it into rules.  Empty lines are
// skipped; the order of the remaining lines is preserved.  If acceptStale is
// true, Load doesn't try to fetch the text from its URL when there is already
// a file in the cache directory, regardless of its staleness.
func (l *Loader) Load(ctx context.Context, acceptStale bool) (rules []string, err error) {
	defer func() { err = errors.Annotate(err, "%s: %w", urlutil.RedactUserinfo(l.url)) }()

	var text string
	if strings.EqualFold(l.url.Scheme, urlutil.SchemeFile) {
		text, err = l.loadFromFileOnly(ctx)
	} else {
		text, err = l.useCachedOrLoadFromURL(ctx, acceptStale)
	}
	if err != nil {
		return nil, err
	}

	return splitRules(text), nil
}

// splitRules splits text into lines, skipping the empty ones.
func splitRules(text string) (rules []string) {
	for line := range strings.Lines(text) {
		line = strings.TrimSuffix(line, "\n")
		if line != "" {
			rules = append(rules, line)
		}
	}

	return rules
}

// loadFromFileOnly loads the text from the file in the URL.  It must only be
// called when the URL of this loader is a file URI.
func (l *Loader) loadFromFileOnly(ctx context.Context) (text string, err error) {
	filePath := l.url.Path
	l.logger.InfoContext(ctx, "using list text from file", "path", filePath)

	text, err = l.loadFromFile(true, filePath, time.Time{})
	if err != nil {
		return "", fmt.Errorf("loading from file %q: %w", filePath, err)
	}

	return text, nil
}

// useCachedOrLoadFromURL loads the text from the cache file or the HTTP URL.
// It must only be called when the URL of this loader is an HTTP(S) URL.
func (l *Loader) useCachedOrLoadFromURL(
	ctx context.Context,
	acceptStale bool,
) (text string, err error) {
	now := time.Now()

	if l.cachePath != "" {
		text, err = l.loadFromFile(acceptStale, l.cachePath, now)
		if err != nil {
			return "", fmt.Errorf("loading from cache file %q: %w", l.cachePath, err)
		}
	}

	if text == "" {
		ru := urlutil.RedactUserinfo(l.url)
		l.logger.InfoContext(ctx, "loading list from url", "url", ru)

		text, err = l.loadFromURL(ctx, now)
		if err != nil {
			return "", fmt.Errorf("loading from url %q: %w", ru, err)
		}
	} else {
		l.logger.InfoContext(ctx, "using cached list text", "path", l.cachePath)
	}

	return text, nil
}

// loadFromFile loads the text from filePath if the file's mtime shows that
// it's still fresh relative to updTime.  If acceptStale is true, and the file
// exists, the text is read from there regardless of its staleness.  If err is
// nil and text is empty, a load from the URL is required.
func (l *Loader) loadFromFile(
	acceptStale bool,
	filePath string,
	updTime time.Time,
) (text string, err error) {
	// #nosec G304 -- Assume that filePath is always either the configured
	// cache path or a path from a file URL the operator set.
	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		// File does not exist.  Load from the URL.
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("opening list file: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, file.Close()) }()

	if !acceptStale {
		var fi fs.FileInfo
		fi, err = file.Stat()
		if err != nil {
			return "", fmt.Errorf("reading list file stat: %w", err)
		}

		if mtime := fi.ModTime(); !mtime.Add(l.staleness).After(updTime) {
			return "", nil
		}
	}

	b := &strings.Builder{}
	_, err = io.Copy(b, file)
	if err != nil {
		return "", fmt.Errorf("reading list file: %w", err)
	}

	return b.String(), nil
}

// loadFromURL loads the text from the loader's URL and, if a cache path is
// configured, puts it into the cache file, setting its atime and mtime to
// updTime.
func (l *Loader) loadFromURL(ctx context.Context, updTime time.Time) (text string, err error) {
	var tmpFile *renameio.PendingFile
	if l.cachePath != "" {
		tmpDir := renameio.TempDir(filepath.Dir(l.cachePath))
		tmpFile, err = renameio.TempFile(tmpDir, l.cachePath)
		if err != nil {
			return "", fmt.Errorf("creating temporary list file: %w", err)
		}
		defer func() { err = l.withDeferredTmpCleanup(err, tmpFile, updTime) }()
	}

	resp, err := l.http.Get(ctx, l.url)
	if err != nil {
		return "", fmt.Errorf("requesting: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	l.logger.InfoContext(
		ctx,
		"got list from url",
		"code", resp.StatusCode,
		"content-length", resp.ContentLength,
		"server", resp.Header.Get(httphdr.Server),
		"url", urlutil.RedactUserinfo(l.url),
	)

	err = cshttp.CheckStatus(resp, http.StatusOK)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return "", err
	}

	b := &strings.Builder{}
	var w io.Writer = b
	if tmpFile != nil {
		w = io.MultiWriter(b, tmpFile)
	}

	_, err = io.Copy(w, ioutil.LimitReader(resp.Body, l.maxSize.Bytes()))
	if err != nil {
		return "", cshttp.WrapServerError(fmt.Errorf("reading list body: %w", err), resp)
	}

	if b.Len() == 0 {
		return "", cshttp.WrapServerError(errors.Error("empty list text"), resp)
	}

	return b.String(), nil
}

// withDeferredTmpCleanup is a helper that performs the necessary cleanups and
// finalizations of the temporary cache file based on the returned error.
func (l *Loader) withDeferredTmpCleanup(
	returned error,
	tmpFile *renameio.PendingFile,
	updTime time.Time,
) (err error) {
	if returned != nil {
		return errors.WithDeferred(returned, tmpFile.Cleanup())
	}

	err = tmpFile.CloseAtomicallyReplace()
	if err != nil {
		return errors.WithDeferred(nil, err)
	}

	// Set the modification and access times to the moment the load started.
	return errors.WithDeferred(nil, os.Chtimes(l.cachePath, updTime, updTime))
}
