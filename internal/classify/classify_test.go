package classify_test

import (
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/contentshield/contentshield/internal/classify"
	"github.com/contentshield/contentshield/internal/classify/classifytest"
	"github.com/contentshield/contentshield/internal/rulesengine"
	"github.com/contentshield/contentshield/internal/sitename"
)

func TestMain(m *testing.M) {
	rulesengine.SetDomainResolver(sitename.Resolver{})

	testutil.DiscardLogOutput(m)
}

// newTestRequest returns a valid request for [classifytest.URL] with the
// given third-party flag.
func newTestRequest(thirdParty bool) (req *classify.Request) {
	return &classify.Request{
		URL:         classifytest.URL,
		Site:        classifytest.Site,
		SourceSite:  classifytest.SourceSite,
		RequestType: classify.RequestTypeScript,
		ThirdParty:  thirdParty,
		Valid:       true,
	}
}

// newTestRequestFor is like [newTestRequest] but for an arbitrary host.
func newTestRequestFor(host string) (req *classify.Request) {
	return &classify.Request{
		URL:         "https://" + host + "/asset.js",
		Site:        host,
		SourceSite:  classifytest.SourceSite,
		RequestType: classify.RequestTypeScript,
		ThirdParty:  true,
		Valid:       true,
	}
}
