package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

func newTestCrawler(budget int) *FallbackCrawler {
	return NewFallbackCrawler(NewParser(), SiteFilter{}, NewDomainManager(0), budget, zerolog.Nop())
}

func renderSeed(t *testing.T, site *fakeSite, target models.Target) (Session, models.Page) {
	t.Helper()
	session, err := site.NewSession(context.Background(), models.FamilyV4, target)
	require.NoError(t, err)
	seed, err := session.Render(context.Background(), target.URL)
	require.NoError(t, err)
	return session, seed
}

func TestFallbackCrawler_RespectsBudget(t *testing.T) {
	site := newFakeSite()
	// a chain of 20 pages, each linking to the next and to a unique third party
	for i := 0; i < 20; i++ {
		site.page(fmt.Sprintf("https://example.com/p%d", i),
			fmt.Sprintf(`<a href="/p%d">next</a><img src="https://cdn%d.example.net/x.png">`, i+1, i))
	}
	target, err := models.ParseTarget("https://example.com/p0", 0)
	require.NoError(t, err)

	for _, budget := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("budget %d", budget), func(t *testing.T) {
			site.renders = nil
			session, seed := renderSeed(t, site, target)

			res := newTestCrawler(budget).Crawl(context.Background(), session, target, seed)

			assert.Equal(t, budget, res.PagesVisited)
			assert.Equal(t, budget, site.renderCount(), "seed render plus crawl renders")
			assert.Contains(t, res.Hosts, fmt.Sprintf("cdn%d.example.net", budget-1))
			assert.NotContains(t, res.Hosts, fmt.Sprintf("cdn%d.example.net", budget))
		})
	}
}

func TestFallbackCrawler_BreadthFirstAndDedup(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/", `
		<a href="/a">a</a>
		<a href="/b">b</a>
		<a href="/a/">a again</a>
		<a href="/en-us/a">a localized</a>
		<a href="https://partner.example.org/">partner</a>
		<a href="/login">login</a>
		<a href="/logo.png">logo</a>`)
	site.page("https://example.com/a", `<a href="/a/deep">deep</a><script src="https://js.example.io/x.js"></script>`)
	site.page("https://example.com/b", `<a href="https://shop.example.com/">shop</a>`)
	site.page("https://shop.example.com/", `<a href="https://pay.example.net/">pay</a>`)

	target, err := models.ParseTarget("https://example.com/", 0)
	require.NoError(t, err)
	session, seed := renderSeed(t, site, target)

	res := newTestCrawler(10).Crawl(context.Background(), session, target, seed)

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/a/deep",
		"https://shop.example.com/",
	}, site.renders)
	assert.Equal(t, 5, res.PagesVisited)
	assert.Equal(t, []string{"example.com", "partner.example.org", "js.example.io", "shop.example.com", "pay.example.net"}, res.Hosts)
}

func TestFallbackCrawler_PageFailuresDoNotAbort(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/", `<a href="/missing">x</a><a href="/ok">ok</a><a href="/file">f</a>`)
	site.pages["https://example.com/file"] = models.Page{
		URL: "https://example.com/file", StatusCode: 200, MIMEType: "application/octet-stream",
		HTML: `<a href="https://hidden.example.net">nope</a>`,
	}
	site.page("https://example.com/ok", `<a href="https://found.example.net">yes</a>`)

	target, err := models.ParseTarget("https://example.com/", 0)
	require.NoError(t, err)
	session, seed := renderSeed(t, site, target)

	res := newTestCrawler(10).Crawl(context.Background(), session, target, seed)

	assert.Equal(t, 4, res.PagesVisited)
	assert.Contains(t, res.Hosts, "found.example.net")
	assert.NotContains(t, res.Hosts, "hidden.example.net")
}

func TestFallbackCrawler_StopsOnCancel(t *testing.T) {
	site := newFakeSite()
	var b strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, `<a href="/p%d">p</a>`, i)
	}
	site.page("https://example.com/", b.String())

	target, err := models.ParseTarget("https://example.com/", 0)
	require.NoError(t, err)
	session, seed := renderSeed(t, site, target)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newTestCrawler(10).Crawl(ctx, session, target, seed)
	assert.Equal(t, 1, res.PagesVisited)
}

func TestFallbackCrawler_StaysOnTargetSite(t *testing.T) {
	site := newFakeSite()
	site.page("https://www.example.com/", `<a href="https://www.example.org/">sister</a><a href="https://shop.example.com/">shop</a>`)
	site.page("https://www.example.org/", `<a href="https://deep.example.org/">deep</a>`)
	site.page("https://shop.example.com/", `<p>shop</p>`)

	target, err := models.ParseTarget("https://www.example.com/", 0)
	require.NoError(t, err)
	session, seed := renderSeed(t, site, target)

	res := newTestCrawler(10).Crawl(context.Background(), session, target, seed)

	assert.Equal(t, []string{"https://www.example.com/", "https://shop.example.com/"}, site.renders)
	assert.Contains(t, res.Hosts, "www.example.org", "hosts of other sites are still recorded")
	assert.NotContains(t, res.Hosts, "deep.example.org")
}
