package identity

import (
	"net/url"
	"strings"
)

const (
	PageHomepage = "homepage"
	PageOther    = "other"
)

// Visitor is the per-request view of who is talking to the assistant.
type Visitor struct {
	Identity  Identity
	ClientIP  string
	UserAgent string
	Referrer  string
	Page      string
	Country   string
	Segment   string
}

// PageType reduces a storefront URL or path to its first path segment.
// The root path is "homepage".
func PageType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PageOther
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
		if path == "" && u.Host != "" {
			path = "/"
		}
	}
	if path == "/" {
		return PageHomepage
	}
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			return strings.ToLower(segment)
		}
	}
	return PageOther
}
