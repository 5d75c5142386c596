package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDomain(t *testing.T) {
	ignored := []string{"chrome", "chrome-extension"}

	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://example.com/path?q=1", "example.com", true},
		{"http://sub.example.co.uk", "sub.example.co.uk", true},
		{"https://WWW.Example.com/", "WWW.Example.com", true},
		{"https://user:pw@host.test:8080/", "host.test", true},
		{"http://[::1]:3000/", "::1", true},
		{"chrome://extensions", "", false},
		{"chrome-extension://id/page.html", "", false},
		{"Chrome://settings", "", false},
		{"about:blank", "", false},
		{"file:///tmp/x", "", false},
		{"/relative/path", "", false},
		{"", "", false},
		{"http://%zz", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			got, ok := ExtractDomain(tc.url, ignored)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractDomain_BrowserSchemesAlwaysRejected(t *testing.T) {
	for _, raw := range []string{"chrome://settings", "chrome-extension://id/page.html", "CHROME://newtab/"} {
		got, ok := ExtractDomain(raw, nil)
		assert.False(t, ok, raw)
		assert.Empty(t, got, raw)
	}

	got, ok := ExtractDomain("edge://settings", []string{"edge"})
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = ExtractDomain("edge://settings", nil)
	assert.True(t, ok)
	assert.Equal(t, "settings", got)
}
