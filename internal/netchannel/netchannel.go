// Package netchannel defines the boundary between the classification service
// and the network layer: the channel capability requests are derived from,
// and the effects a decision has on a channel.
package netchannel

import (
	"net/url"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrTracking is the error a channel is cancelled with when the classifier
// blocks it.
const ErrTracking errors.Error = "netchannel: request blocked by content classifier"

// Flags are the classification flags attached to a channel.
type Flags uint32

// Flags values.
const (
	// FlagTrackingContent marks the channel as carrying tracking content.
	FlagTrackingContent Flags = 1 << iota
)

// State is the tracking state of a channel's document.
type State uint32

// State values.
const (
	// StateLoadedTrackingContent means tracking content was loaded but
	// allowed.
	StateLoadedTrackingContent State = 1 << iota

	// StateBlockedTrackingContent means tracking content was blocked.
	StateBlockedTrackingContent
)

// PolicyType is the content-policy type of a channel's load.
type PolicyType uint8

// PolicyType values.
const (
	PolicyTypeOther PolicyType = iota
	PolicyTypeDocument
	PolicyTypeSubdocument
	PolicyTypeScript
	PolicyTypeStylesheet
	PolicyTypeImage
	PolicyTypeImageset
	PolicyTypeFont
	PolicyTypeMedia
	PolicyTypeObject
	PolicyTypeWebSocket
	PolicyTypeXMLHTTPRequest
	PolicyTypeBeacon
	PolicyTypePing
	PolicyTypeCSPReport
)

// LoadInfo describes the context a channel's load was initiated from.
type LoadInfo interface {
	// PolicyType returns the content-policy type of the load.
	PolicyType() (t PolicyType)

	// LoadingURL returns the URL of the initiating context, if any.
	LoadingURL() (u *url.URL, err error)
}

// Channel is the capability the network layer exposes for one outgoing
// request.
type Channel interface {
	// URL returns the request URL.
	URL() (u *url.URL, err error)

	// LoadInfo returns the load context of the channel.  It may be nil.
	LoadInfo() (li LoadInfo)

	// ThirdParty reports whether the request target site differs from the
	// initiating site.
	ThirdParty() (ok bool, err error)

	// SetClassificationFlags attaches classification flags to the channel.
	SetClassificationFlags(fl Flags)

	// SetTrackingState sets the tracking state of the channel's document.
	SetTrackingState(st State)

	// SetBlockedError sets the blocked-content error marker on the channel.
	SetBlockedError(err error)

	// Cancel aborts the channel's load with the given error.
	Cancel(err error)
}

// Annotate flags ch as tracking content but lets the load proceed.
func Annotate(ch Channel) {
	ch.SetClassificationFlags(FlagTrackingContent)
	ch.SetTrackingState(StateLoadedTrackingContent)
}

// Cancel aborts ch's load as blocked tracking content.
func Cancel(ch Channel) {
	ch.SetTrackingState(StateBlockedTrackingContent)
	ch.SetBlockedError(ErrTracking)
	ch.Cancel(ErrTracking)
}
