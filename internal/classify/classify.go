// Package classify implements the content classification service.  It
// decides, for outgoing third-party requests, whether a request should be
// blocked, annotated, or let through, based on rules drawn from remotely
// fetched filter lists.
package classify

// RequestType is a coarse tag describing what kind of resource a request
// loads.
type RequestType string

// RequestType values.
const (
	RequestTypeDocument       RequestType = "document"
	RequestTypeSubdocument    RequestType = "subdocument"
	RequestTypeScript         RequestType = "script"
	RequestTypeStylesheet     RequestType = "stylesheet"
	RequestTypeImage          RequestType = "image"
	RequestTypeFont           RequestType = "font"
	RequestTypeMedia          RequestType = "media"
	RequestTypeObject         RequestType = "object"
	RequestTypeWebSocket      RequestType = "websocket"
	RequestTypeXMLHTTPRequest RequestType = "xmlhttprequest"
	RequestTypePing           RequestType = "ping"
	RequestTypeCSPReport      RequestType = "csp_report"
	RequestTypeOther          RequestType = "other"
)

// Request is an immutable snapshot of an outgoing network request, extracted
// once at classification time.
type Request struct {
	// URL is the normalized request URL.
	URL string

	// Site is the schemeless site of the request target.
	Site string

	// SourceSite is the schemeless site of the initiating context.  It may
	// be empty when the initiator is unavailable.
	SourceSite string

	// RequestType is the coarse resource-type tag of the request.
	RequestType RequestType

	// ThirdParty is true if the request target site differs from the site of
	// the context that initiated it.
	ThirdParty bool

	// Valid is true only if the URL, the target site, and the request type
	// have all been resolved successfully.  Invalid requests short-circuit
	// classification with [StatusInvalidArg].
	Valid bool
}
