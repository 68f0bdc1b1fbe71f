// Package rulesengine wraps the urlfilter filtering engine behind the narrow
// boundary the classifier uses: rule compilation in, match decision out.  The
// rule syntax and the matching algorithm themselves are owned by the engine
// and are deliberately not re-exposed here.
package rulesengine

import (
	"sync/atomic"

	"github.com/AdguardTeam/golibs/errors"
)

// Common errors returned by this package.
const (
	// ErrNotInitialized is returned when a check is attempted before the
	// engine or the domain resolver is ready, or after the handle has been
	// released.
	ErrNotInitialized errors.Error = "rulesengine: not initialized"

	// ErrBadRequest is returned when the request data cannot be used for
	// matching, for example when the URL does not parse.
	ErrBadRequest errors.Error = "rulesengine: bad request"
)

// DomainResolver resolves a host into its registrable domain.  It is the
// analogue of the domain-resolution service the matcher requires before any
// request can be checked.
type DomainResolver interface {
	SiteFromHost(host string) (site string, err error)
}

// domainResolver is the process-wide resolver used by all handles.  It must
// be set once, before the first check, see [SetDomainResolver].
var domainResolver atomic.Pointer[DomainResolver]

// SetDomainResolver installs r as the domain resolver for all engine handles.
// It must be called once before any [Handle.CheckRequest] call.  r must not
// be nil.
func SetDomainResolver(r DomainResolver) {
	domainResolver.Store(&r)
}

// HasDomainResolver reports whether the domain resolver has been installed.
func HasDomainResolver() (ok bool) {
	return domainResolver.Load() != nil
}

// resolveSite returns the schemeless site for host using the installed
// resolver, falling back to the host itself on errors.
func resolveSite(host string) (site string) {
	rp := domainResolver.Load()
	if rp == nil {
		return host
	}

	site, err := (*rp).SiteFromHost(host)
	if err != nil {
		return host
	}

	return site
}
