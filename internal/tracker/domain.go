package tracker

import (
	"net/url"
	"strings"
)

// browserSchemes are never tracked, whatever the configuration says.
var browserSchemes = map[string]bool{
	"chrome":           true,
	"chrome-extension": true,
}

// ExtractDomain returns the hostname of rawURL verbatim. It reports false
// when the URL does not parse or has no host. Browser-internal schemes are
// always rejected; ignoredSchemes adds more.
func ExtractDomain(rawURL string, ignoredSchemes []string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" || browserSchemes[scheme] {
		return "", false
	}
	for _, s := range ignoredSchemes {
		if scheme == s {
			return "", false
		}
	}

	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}
