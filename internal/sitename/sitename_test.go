package sitename_test

import (
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/contentshield/contentshield/internal/sitename"
	"github.com/stretchr/testify/assert"
)

func TestFromHost(t *testing.T) {
	testCases := []struct {
		name       string
		in         string
		want       string
		wantErrMsg string
	}{{
		name: "simple",
		in:   "example.com",
		want: "example.com",
	}, {
		name: "subdomain",
		in:   "a.b.tracker.example.com",
		want: "example.com",
	}, {
		name: "multi_label_suffix",
		in:   "www.site.co.uk",
		want: "site.co.uk",
	}, {
		name: "fqdn",
		in:   "example.com.",
		want: "example.com",
	}, {
		name: "upper",
		in:   "EXAMPLE.COM",
		want: "example.com",
	}, {
		name: "ipv4",
		in:   "192.0.2.1",
		want: "192.0.2.1",
	}, {
		name: "ipv6",
		in:   "2001:db8::1",
		want: "2001:db8::1",
	}, {
		name: "single_label",
		in:   "localhost",
		want: "localhost",
	}, {
		name:       "empty",
		in:         "",
		want:       "",
		wantErrMsg: "empty host",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sitename.FromHost(tc.in)
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
