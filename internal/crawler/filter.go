package crawler

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// URLFilter decides which links a crawl of target follows.
type URLFilter interface {
	Filter(target models.Target, link string) bool
}

var staticExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".css": {}, ".js": {},
	".ico": {}, ".svg": {}, ".xml": {}, ".pdf": {}, ".zip": {}, ".woff": {}, ".woff2": {},
	".mp4": {},
}

// Pages that log the browser out, trigger prompts or need an account.
var authPaths = []string{"/login", "/logout", "/register", "/signup", "/account", "/settings", "/notifications", "/submit"}

// Query parameters that only change presentation.
var variationParams = map[string]struct{}{
	"feed": {}, "view": {}, "feedviewtype": {}, "sort": {}, "time": {}, "layout": {},
}

var localeSegment = regexp.MustCompile(`^/[a-z]{2}-[a-z]{2}(/|$)`)

// SiteFilter follows http(s) pages that share the target's root domain,
// skipping static assets and account pages. Hosts under another target's
// root are left to that target's own crawl.
type SiteFilter struct{}

func (SiteFilter) Filter(target models.Target, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !sameSite(target.Host, u.Hostname()) {
		return false
	}

	p := strings.ToLower(u.Path)
	if _, static := staticExtensions[path.Ext(p)]; static {
		return false
	}
	for _, auth := range authPaths {
		if p == auth || strings.HasPrefix(p, auth+"/") {
			return false
		}
	}
	return true
}

func sameSite(targetHost, host string) bool {
	host = classify.Normalize(host)
	if host == "" {
		return false
	}
	root := classify.RootDomain(targetHost)
	if root == "" {
		return host == classify.Normalize(targetHost)
	}
	return classify.RootDomain(host) == root
}

// DedupKey collapses URLs that render the same content into one key. It
// returns "" for links that cannot be parsed.
func DedupKey(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}

	p := u.EscapedPath()
	if loc := localeSegment.FindString(strings.ToLower(p)); loc != "" {
		p = "/" + p[len(loc):]
	}
	p = strings.TrimSuffix(p, "/")

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		if _, skip := variationParams[strings.ToLower(k)]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(p)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		vals := query[k]
		sort.Strings(vals)
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(strings.Join(vals, ",")))
	}
	return b.String()
}
