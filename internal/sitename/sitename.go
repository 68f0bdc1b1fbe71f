// Package sitename resolves hosts into their schemeless sites, that is, their
// registrable domains (eTLD+1), independently of the URL scheme.
package sitename

import (
	"net/netip"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/net/publicsuffix"
)

// ErrEmptyHost is returned by [FromHost] when the host is empty.
const ErrEmptyHost errors.Error = "empty host"

// FromHost returns the schemeless site of host.  IP addresses are returned as
// is.  If the public-suffix data cannot produce a registrable domain, for
// example when the host itself is a public suffix or an unlisted single
// label, the whole host is used, which mirrors the fallback behavior of the
// underlying matcher's domain resolution.
func FromHost(host string) (site string, err error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", ErrEmptyHost
	}

	if _, parseErr := netip.ParseAddr(host); parseErr == nil {
		return host, nil
	}

	site, err = publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Fall back to the whole host.
		return host, nil
	}

	return site, nil
}

// Resolver is the default domain resolver built on the embedded public-suffix
// data.  Its zero value is ready for use.
type Resolver struct{}

// SiteFromHost returns the schemeless site of host.  It is the method form of
// [FromHost] for use behind resolver interfaces.
func (Resolver) SiteFromHost(host string) (site string, err error) {
	return FromHost(host)
}
