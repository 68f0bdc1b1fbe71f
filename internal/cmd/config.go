package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v2"
)

// configuration represents the on-disk configuration of ContentShield.  The
// order of the fields should generally not be altered.
type configuration struct {
	// Lists is the filter-list downloading and refreshing configuration.
	Lists *listsConfig `yaml:"lists"`

	// ResultCache is the configuration of the per-engine classification
	// result cache.
	ResultCache *resultCacheConfig `yaml:"result_cache"`
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	// Keep this in the same order as the fields in the config.
	validators := container.KeyValues[string, validate.Interface]{{
		Key:   "lists",
		Value: c.Lists,
	}, {
		Key:   "result_cache",
		Value: c.ResultCache,
	}}

	var errs []error
	for _, kv := range validators {
		errs = validate.Append(errs, kv.Key, kv.Value)
	}

	return errors.Join(errs...)
}

// listsConfig is the filter-list downloading and refreshing configuration.
type listsConfig struct {
	// RefreshIvl defines how often the filter lists are refreshed from their
	// URLs.
	RefreshIvl timeutil.Duration `yaml:"refresh_interval"`

	// RefreshTimeout is the timeout for one whole refresh of all lists.
	RefreshTimeout timeutil.Duration `yaml:"refresh_timeout"`

	// Staleness is how long a cached list file remains fresh enough to be
	// used instead of fetching the URL again.
	Staleness timeutil.Duration `yaml:"staleness"`

	// MaxSize is the maximum size of the downloadable content of a single
	// filter list.
	MaxSize datasize.ByteSize `yaml:"max_size"`
}

// type check
var _ validate.Interface = (*listsConfig)(nil)

// Validate implements the [validate.Interface] interface for *listsConfig.
func (c *listsConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.Positive("refresh_interval", c.RefreshIvl),
		validate.Positive("refresh_timeout", c.RefreshTimeout),
		validate.Positive("staleness", c.Staleness),
		validate.Positive("max_size", c.MaxSize),
		validate.NoGreaterThan("max_size", c.MaxSize, math.MaxInt),
	)
}

// resultCacheConfig is the configuration of the per-engine classification
// result cache.
type resultCacheConfig struct {
	// Size defines the maximum number of cached classification results per
	// engine.
	Size int `yaml:"size"`

	// Enabled shows if the result cache is enabled.  If it is false, the
	// size is ignored.
	Enabled bool `yaml:"enabled"`
}

// type check
var _ validate.Interface = (*resultCacheConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *resultCacheConfig.
func (c *resultCacheConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	} else if !c.Enabled {
		return nil
	}

	return validate.Positive("size", c.Size)
}

// count returns the result-cache entry count to use, zero when the cache is
// disabled.
func (c *resultCacheConfig) count() (n int) {
	if !c.Enabled {
		return 0
	}

	return c.Size
}

// parseConfig reads the configuration.
func parseConfig(confPath string) (c *configuration, err error) {
	// #nosec G304 -- Trust the path to the configuration file that is given
	// from the environment.
	yamlFile, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &configuration{}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}
