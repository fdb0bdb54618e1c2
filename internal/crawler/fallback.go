package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// FallbackCrawler walks a site breadth-first within a page budget and
// collects every host its pages link to.
type FallbackCrawler struct {
	links  LinkExtractor
	filter URLFilter
	pacer  *DomainManager
	budget int
	logger zerolog.Logger
}

func NewFallbackCrawler(links LinkExtractor, filter URLFilter, pacer *DomainManager, budget int, logger zerolog.Logger) *FallbackCrawler {
	if budget < 1 {
		budget = 1
	}
	return &FallbackCrawler{
		links:  links,
		filter: filter,
		pacer:  pacer,
		budget: budget,
		logger: logger.With().Str("component", "fallback_crawler").Logger(),
	}
}

// CrawlResult is what one crawl of a target produced.
type CrawlResult struct {
	Hosts        []string // in discovery order
	PagesVisited int
}

type crawlState struct {
	target    models.Target
	seenKeys  map[string]struct{}
	seenHosts map[string]struct{}
	queue     []string
	result    CrawlResult
}

// Crawl continues from an already rendered seed page, which counts against
// the budget. Page failures never abort the crawl.
func (c *FallbackCrawler) Crawl(ctx context.Context, session Session, target models.Target, seed models.Page) CrawlResult {
	st := &crawlState{
		target:    target,
		seenKeys:  make(map[string]struct{}),
		seenHosts: make(map[string]struct{}),
	}
	st.markSeen(target.URL)
	st.result.PagesVisited = 1
	c.harvest(st, seed)

	for len(st.queue) > 0 && st.result.PagesVisited < c.budget {
		if ctx.Err() != nil {
			break
		}
		next := st.queue[0]
		st.queue = st.queue[1:]

		if c.pacer != nil {
			if err := c.pacer.Wait(ctx, next); err != nil {
				break
			}
		}

		page, err := session.Render(ctx, next)
		st.result.PagesVisited++
		if err != nil {
			c.logger.Debug().Err(err).Str("url", next).Msg("page load failed")
			continue
		}
		if page.Failed() {
			c.logger.Debug().Int("status", page.StatusCode).Str("url", next).Msg("page returned error status")
			continue
		}
		if !page.IsHTML() {
			continue
		}
		c.harvest(st, page)
	}

	c.logger.Debug().
		Str("target", target.URL).
		Int("pages", st.result.PagesVisited).
		Int("hosts", len(st.result.Hosts)).
		Int("unvisited", len(st.queue)).
		Msg("crawl finished")
	return st.result
}

func (c *FallbackCrawler) harvest(st *crawlState, page models.Page) {
	if page.URL != "" {
		st.markSeen(page.URL)
		st.addHost(page.URL)
	}

	links := c.links.ExtractLinks(page.HTML, page.URL)
	links = append(links, page.Links...)

	for _, link := range links {
		st.addHost(link)
		if !c.filter.Filter(st.target, link) {
			continue
		}
		key := DedupKey(link)
		if key == "" {
			continue
		}
		if _, seen := st.seenKeys[key]; seen {
			continue
		}
		st.seenKeys[key] = struct{}{}
		st.queue = append(st.queue, link)
	}
}

func (st *crawlState) markSeen(link string) {
	if key := DedupKey(link); key != "" {
		st.seenKeys[key] = struct{}{}
	}
}

func (st *crawlState) addHost(link string) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return
	}
	if _, seen := st.seenHosts[host]; seen {
		return
	}
	st.seenHosts[host] = struct{}{}
	st.result.Hosts = append(st.result.Hosts, host)
}
