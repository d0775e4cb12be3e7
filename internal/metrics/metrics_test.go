package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/ticker/AAPL", "/api/ticker/:ticker"},
		{"/api/ticker/AAPL/snapshot", "/api/ticker/:ticker/snapshot"},
		{"/api/ticker/MSFT/financials", "/api/ticker/:ticker/financials"},
		{"/api/ticker/MSFT/history", "/api/ticker/:ticker/history"},
		{"/api/ticker/MSFT/price-summary", "/api/ticker/:ticker/price-summary"},
		{"/api/user/admin", "/api/user/:user"},
		{"/api/system/status", "/api/system/status"},
		{"/api/salesforce/query", "/api/salesforce/query"},
		{"/auth/salesforce/callback", "/auth/salesforce/callback"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, canonicalPath(tc.path))
		})
	}
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	RecordCacheLookup("overview", true)
	RecordCacheLookup("overview", false)
	RecordUpstreamRequest("yahoo", "history", 5*time.Millisecond, nil)
	RecordUpstreamRequest("polygon", "overview", 10*time.Millisecond, errors.New("boom"))
}
