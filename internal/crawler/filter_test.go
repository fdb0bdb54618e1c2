package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

func TestSiteFilter(t *testing.T) {
	target, err := models.ParseTarget("https://www.example.com/", 0)
	require.NoError(t, err)

	tests := []struct {
		link string
		want bool
	}{
		{"https://www.example.com/products", true},
		{"http://blog.example.com/post/1", true},
		{"https://example.com/", true},
		{"https://cdn.example.net/page", false},
		{"https://www.example.org/", false},
		{"https://www.example.com/logo.PNG", false},
		{"https://www.example.com/assets/app.js", false},
		{"https://www.example.com/login", false},
		{"https://www.example.com/account/profile", false},
		{"https://www.example.com/logins-explained", true},
		{"ftp://www.example.com/", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			assert.Equal(t, tt.want, SiteFilter{}.Filter(target, tt.link))
		})
	}
}

func TestDedupKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{name: "case and fragment", a: "HTTPS://Example.com/Path#frag", b: "https://example.com/Path", same: true},
		{name: "trailing slash", a: "https://example.com/docs/", b: "https://example.com/docs", same: true},
		{name: "default port", a: "https://example.com:443/", b: "https://example.com/", same: true},
		{name: "custom port", a: "https://example.com:8443/", b: "https://example.com/", same: false},
		{name: "query order", a: "https://example.com/s?b=2&a=1", b: "https://example.com/s?a=1&b=2", same: true},
		{name: "variation params", a: "https://example.com/r?sort=new&view=card", b: "https://example.com/r", same: true},
		{name: "meaningful params", a: "https://example.com/r?page=2", b: "https://example.com/r", same: false},
		{name: "locale prefix", a: "https://example.com/en-us/about", b: "https://example.com/de-de/about", same: true},
		{name: "locale root", a: "https://example.com/fr-fr/", b: "https://example.com/", same: true},
		{name: "path case matters", a: "https://example.com/About", b: "https://example.com/about", same: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := DedupKey(tt.a), DedupKey(tt.b)
			assert.NotEmpty(t, ka)
			if tt.same {
				assert.Equal(t, ka, kb)
			} else {
				assert.NotEqual(t, ka, kb)
			}
		})
	}

	assert.Empty(t, DedupKey("not a url"))
}
