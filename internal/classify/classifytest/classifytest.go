// Package classifytest contains common constants and utilities for testing
// the classification packages.
package classifytest

import (
	"time"

	"github.com/c2h5oh/datasize"
)

// Common hostnames and sites for tests.
const (
	Host        = "tracker.example"
	HostAllowed = "allowed.example"
	HostSocial  = "social.example"

	Site       = "tracker.example"
	SourceHost = "news.example"
	SourceSite = "news.example"
)

// Common URLs for tests.
const (
	URL       = "https://" + Host + "/collect.js"
	URLSource = "https://" + SourceHost + "/article"
)

// Common rules for tests.
const (
	RuleBlock     = "||" + Host + "^"
	RuleImportant = "||" + Host + "^$important"
	RuleException = "@@||" + HostAllowed + "^"
	RuleSocial    = "||" + HostSocial + "^$third-party"
)

// ServerName is the name of the server for tests.
const ServerName = "classifytest/1.0"

// Timeout is the common timeout for tests.
const Timeout = 1 * time.Second

// Staleness is the common long staleness for tests.
const Staleness = 1 * time.Hour

// ListMaxSize is the maximum size of a downloadable filter list for tests.
const ListMaxSize = 1 * datasize.MB
