package rulesengine

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/AdguardTeam/urlfilter"
	"github.com/AdguardTeam/urlfilter/filterlist"
	"github.com/AdguardTeam/urlfilter/rules"
)

// Handle owns one compiled filtering engine.  A handle is immutable once
// built and must be released exactly once with [Handle.Close]; it must not be
// copied or shared between owners.
type Handle struct {
	engine     *urlfilter.Engine
	rulesCount int
	closed     atomic.Bool
}

// FromRules compiles the ordered rule strings into a new engine handle.  The
// caller owns the returned handle and must release it with [Handle.Close].
func FromRules(ruleStrs []string) (h *Handle, err error) {
	rulesText := strings.Join(ruleStrs, "\n")

	lists := []filterlist.Interface{
		filterlist.NewBytes(&filterlist.BytesConfig{
			RulesText:      []byte(rulesText),
			IgnoreCosmetic: true,
		}),
	}

	s, err := filterlist.NewRuleStorage(lists)
	if err != nil {
		return nil, fmt.Errorf("rulesengine: compiling storage: %w", err)
	}

	return &Handle{
		engine:     urlfilter.NewEngine(s),
		rulesCount: len(ruleStrs),
	}, nil
}

// CheckResult is the matcher's decision for one request.
type CheckResult struct {
	// Matched is true if a blocking rule matched the request.
	Matched bool

	// Important is true if the matching rule has the "important" modifier,
	// meaning that no later engine may override this result.
	Important bool

	// Exception is true if an allow-listing rule defeated the match.
	Exception bool
}

// CheckRequest matches one preparsed request against the compiled rules.
// site and sourceSite are the schemeless sites of the request target and the
// initiating context, sourceSite may be empty.  requestType is one of the
// coarse request-type tags, see [typeFromTag].
func (h *Handle) CheckRequest(
	reqURL string,
	site string,
	sourceSite string,
	requestType string,
	thirdParty bool,
) (res CheckResult, err error) {
	if h == nil || h.closed.Load() || !HasDomainResolver() {
		return CheckResult{}, ErrNotInitialized
	}

	u, err := url.Parse(reqURL)
	if err != nil || u.Hostname() == "" {
		return CheckResult{}, fmt.Errorf("%w: parsing %q", ErrBadRequest, reqURL)
	}

	hostname := strings.ToLower(u.Hostname())
	if site == "" {
		site = resolveSite(hostname)
	}

	r := &rules.Request{
		RequestType:  typeFromTag(requestType),
		ThirdParty:   thirdParty,
		URL:          reqURL,
		URLLowerCase: strings.ToLower(reqURL),
		Hostname:     hostname,
		Domain:       site,
	}

	if sourceSite != "" {
		r.SourceURL = "//" + sourceSite + "/"
		r.SourceHostname = sourceSite
		r.SourceDomain = sourceSite
	}

	mres := h.engine.MatchRequest(r)
	rule := mres.GetBasicResult()
	if rule == nil {
		return CheckResult{}, nil
	}

	res = CheckResult{
		Matched:   !rule.Whitelist,
		Important: rule.IsOptionEnabled(rules.OptionImportant),
		Exception: rule.Whitelist,
	}

	return res, nil
}

// RulesCount returns the number of rule strings the handle was compiled from.
func (h *Handle) RulesCount() (n int) {
	return h.rulesCount
}

// Close releases the compiled engine.  Only the first call has any effect;
// the handle cannot be used after it.
func (h *Handle) Close() (err error) {
	if h.closed.CompareAndSwap(false, true) {
		h.engine = nil
	}

	return nil
}

// typeFromTag converts a coarse request-type tag into the engine's request
// type.  Unrecognized tags fall back to the generic type.
func typeFromTag(tag string) (t rules.RequestType) {
	switch tag {
	case "document":
		return rules.TypeDocument
	case "subdocument":
		return rules.TypeSubdocument
	case "script":
		return rules.TypeScript
	case "stylesheet":
		return rules.TypeStylesheet
	case "image":
		return rules.TypeImage
	case "font":
		return rules.TypeFont
	case "media":
		return rules.TypeMedia
	case "object":
		return rules.TypeObject
	case "websocket":
		return rules.TypeWebsocket
	case "xmlhttprequest":
		return rules.TypeXmlhttprequest
	case "ping":
		return rules.TypePing
	default:
		return rules.TypeOther
	}
}
