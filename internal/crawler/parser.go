package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// linkAttrs lists, per element, the attribute that carries a URL.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"area":   "href",
	"script": "src",
	"img":    "src",
	"iframe": "src",
	"source": "src",
}

// Parser pulls absolute URLs out of rendered HTML.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ExtractLinks is Extract over a string. Parse errors yield no links.
func (p *Parser) ExtractLinks(document, baseURL string) []string {
	links, err := p.Extract(strings.NewReader(document), baseURL)
	if err != nil {
		return nil
	}
	return links
}

// Extract walks the document and returns every resolvable link in document
// order. Duplicates are kept; callers dedup by their own key.
func (p *Parser) Extract(r io.Reader, baseURL string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	base := baseURL
	var links []string

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "base" {
				if href := attr(n, "href"); href != "" {
					if resolved := resolveURL(baseURL, href); resolved != "" {
						base = resolved
					}
				}
			}
			if key, ok := linkAttrs[n.Data]; ok {
				if val := attr(n, key); val != "" {
					if absoluteURL := resolveURL(base, val); absoluteURL != "" {
						links = append(links, absoluteURL)
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}

	visit(doc)
	return links, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolveURL makes href absolute against base. Non-navigational schemes and
// fragment-only references resolve to "".
func resolveURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:", "data:", "about:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
