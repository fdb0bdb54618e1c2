package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantHosts []string
		wantFound bool
	}{
		{
			name: "inline config",
			html: `<html><head><script>window.__cfg = {"env":"prod","__map": [["a.org",1],["B.org",0],["a.org",2]],"v":3};</script></head></html>`,
			wantHosts: []string{"a.org", "b.org"},
			wantFound: true,
		},
		{
			name: "whitespace and later script",
			html: `<script>var x = 1;</script><script>
				init({ "__map" :
					[ ["cdn.a.org", 4], ["login.a.org", 0] ] })
			</script>`,
			wantHosts: []string{"cdn.a.org", "login.a.org"},
			wantFound: true,
		},
		{
			name:      "no manifest",
			html:      `<html><body><script>console.log("hi")</script><a href="/x">x</a></body></html>`,
			wantFound: false,
		},
		{
			name:      "manifest outside scripts ignored",
			html:      `<html><body><pre>"__map": [["a.org",1]]</pre></body></html>`,
			wantFound: false,
		},
		{
			name:      "broken json",
			html:      `<script>{"__map": [["a.org",1],["b.org"</script>`,
			wantFound: false,
		},
		{
			name:      "empty entries",
			html:      `<script>{"__map": [[]]}</script>`,
			wantFound: false,
		},
		{
			name:      "second occurrence valid",
			html:      `<script>{"__map": [[1,2]], "other": {"__map": [["x.org",1]]}}</script>`,
			wantHosts: []string{"x.org"},
			wantFound: true,
		},
	}

	m := NewManifestExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, found := m.Extract(tt.html)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantHosts, hosts)
			} else {
				assert.Empty(t, hosts)
			}
		})
	}
}
