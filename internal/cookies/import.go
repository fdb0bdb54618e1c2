package cookies

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// exportedCookie is one entry of a browser extension cookie export.
type exportedCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
	ExpirationDate float64 `json:"expirationDate"`
	Session        bool    `json:"session"`
	SameSite       string  `json:"sameSite"`
}

// Import reads a cookie export. Entries without a name or domain are
// skipped.
func Import(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []exportedCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode cookie export %s: %w", path, err)
	}

	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: normalizeSameSite(c.SameSite),
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		if !c.Session {
			cookie.Expires = c.ExpirationDate
		}
		out = append(out, cookie)
	}
	return out, nil
}

func normalizeSameSite(v string) string {
	switch strings.ToLower(v) {
	case "no_restriction", "none":
		return "None"
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	default:
		return ""
	}
}

// ForHost returns the cookies that a browser would send to host.
func ForHost(all []Cookie, host string) []Cookie {
	host = strings.ToLower(host)
	var out []Cookie
	for _, c := range all {
		d := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			out = append(out, c)
		}
	}
	return out
}
