package crawler

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JameZUK/fqdn-builder/internal/classify"
)

// The site manifest is a JSON array of [host, flags] pairs assigned to
// "__map" inside an inline script.
var manifestKey = regexp.MustCompile(`"__map"\s*:\s*\[\s*\[`)

// ManifestExtractor reads the domain manifest some sites embed for their own
// client code.
type ManifestExtractor struct{}

func NewManifestExtractor() *ManifestExtractor {
	return &ManifestExtractor{}
}

// Extract returns the manifest hosts in order, normalized and deduplicated.
// found is false when no script carries a usable manifest.
func (m *ManifestExtractor) Extract(document string) (hosts []string, found bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, false
	}

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		hosts = decodeManifest(s.Text())
		return len(hosts) == 0
	})
	return hosts, len(hosts) > 0
}

func decodeManifest(script string) []string {
	for offset := 0; offset < len(script); {
		loc := manifestKey.FindStringIndex(script[offset:])
		if loc == nil {
			return nil
		}
		match := script[offset+loc[0] : offset+loc[1]]
		start := offset + loc[0] + strings.Index(match, "[")

		var pairs [][]json.RawMessage
		if err := json.NewDecoder(strings.NewReader(script[start:])).Decode(&pairs); err == nil {
			if hosts := manifestHosts(pairs); len(hosts) > 0 {
				return hosts
			}
		}
		offset += loc[1]
	}
	return nil
}

func manifestHosts(pairs [][]json.RawMessage) []string {
	seen := make(map[string]struct{}, len(pairs))
	var hosts []string
	for _, pair := range pairs {
		if len(pair) == 0 {
			continue
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			continue
		}
		h := classify.Normalize(name)
		if h == "" || !strings.Contains(h, ".") {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
	}
	return hosts
}
