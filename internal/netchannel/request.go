package netchannel

import (
	"github.com/contentshield/contentshield/internal/classify"
	"github.com/contentshield/contentshield/internal/rulesengine"
)

// NewRequest derives an immutable classification request snapshot from ch.
// The snapshot is marked valid only once the URL, the target site, and the
// request type have all been resolved; the initiating site is best-effort
// and left empty on any failure.  When the third-party check itself fails,
// the request is conservatively assumed to be third-party.
func NewRequest(ch Channel, resolver rulesengine.DomainResolver) (req *classify.Request) {
	req = &classify.Request{}

	u, err := ch.URL()
	if err != nil || u == nil {
		return req
	}

	req.URL = u.String()

	site, err := resolver.SiteFromHost(u.Hostname())
	if err != nil {
		return req
	}

	req.Site = site

	li := ch.LoadInfo()
	if li == nil {
		return req
	}

	req.RequestType = requestTypeFromPolicy(li.PolicyType())

	if srcURL, srcErr := li.LoadingURL(); srcErr == nil && srcURL != nil {
		if srcSite, siteErr := resolver.SiteFromHost(srcURL.Hostname()); siteErr == nil {
			req.SourceSite = srcSite
		}
	}

	tp, err := ch.ThirdParty()
	if err != nil {
		tp = true
	}

	req.ThirdParty = tp
	req.Valid = true

	return req
}

// requestTypeFromPolicy converts a content-policy type into the coarse
// request-type tag.  Unrecognized types fall back to the generic one.
func requestTypeFromPolicy(t PolicyType) (rt classify.RequestType) {
	switch t {
	case PolicyTypeDocument:
		return classify.RequestTypeDocument
	case PolicyTypeSubdocument:
		return classify.RequestTypeSubdocument
	case PolicyTypeScript:
		return classify.RequestTypeScript
	case PolicyTypeStylesheet:
		return classify.RequestTypeStylesheet
	case PolicyTypeImage, PolicyTypeImageset:
		return classify.RequestTypeImage
	case PolicyTypeFont:
		return classify.RequestTypeFont
	case PolicyTypeMedia:
		return classify.RequestTypeMedia
	case PolicyTypeObject:
		return classify.RequestTypeObject
	case PolicyTypeWebSocket:
		return classify.RequestTypeWebSocket
	case PolicyTypeXMLHTTPRequest:
		return classify.RequestTypeXMLHTTPRequest
	case PolicyTypeBeacon, PolicyTypePing:
		return classify.RequestTypePing
	case PolicyTypeCSPReport:
		return classify.RequestTypeCSPReport
	default:
		return classify.RequestTypeOther
	}
}
