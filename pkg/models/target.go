package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is a seed URL supplied by the operator.
type Target struct {
	Raw       string
	URL       string // normalized, always carries a scheme
	Authority string // scheme://host[:port]
	Host      string // lowercase, no port
	Index     int    // position in the input list
}

// ParseTarget normalizes a raw seed. A missing scheme defaults to https.
func ParseTarget(raw string, index int) (Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Target{}, fmt.Errorf("empty target")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("unsupported scheme in target %q", raw)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return Target{}, fmt.Errorf("no host in target %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment, u.RawFragment = "", ""
	if u.Path == "" {
		u.Path = "/"
	}

	return Target{
		Raw:       raw,
		URL:       u.String(),
		Authority: u.Scheme + "://" + u.Host,
		Host:      host,
		Index:     index,
	}, nil
}

// CookieKey is the host with a leading "www." stripped. Sessions for
// example.com and www.example.com share cookies.
func (t Target) CookieKey() string {
	return strings.TrimPrefix(t.Host, "www.")
}

func (t Target) String() string {
	return t.URL
}
