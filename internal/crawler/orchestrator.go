package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// Orchestrator discovers the domains of one target: manifest first, crawl
// as a fallback, over one or both IP families.
type Orchestrator struct {
	sessions   SessionFactory
	manifest   *ManifestExtractor
	crawler    *FallbackCrawler
	classifier *classify.Classifier
	pacer      *DomainManager
	logger     zerolog.Logger
}

func NewOrchestrator(
	sessions SessionFactory,
	manifest *ManifestExtractor,
	crawler *FallbackCrawler,
	classifier *classify.Classifier,
	pacer *DomainManager,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		manifest:   manifest,
		crawler:    crawler,
		classifier: classifier,
		pacer:      pacer,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Discover runs the target in the given mode. In dual mode both families run
// concurrently; the result degrades to whichever family succeeded.
func (o *Orchestrator) Discover(ctx context.Context, target models.Target, mode models.Mode) models.CrawlOutcome {
	families := mode.Families()
	if len(families) == 1 {
		return o.discoverFamily(ctx, target, families[0])
	}

	outcomes := make([]models.CrawlOutcome, len(families))
	var wg sync.WaitGroup
	for i, family := range families {
		i, family := i, family
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = o.discoverFamily(ctx, target, family)
		}()
	}
	wg.Wait()

	return combine(target, outcomes)
}

// combine unions successful outcomes in family order.
func combine(target models.Target, outcomes []models.CrawlOutcome) models.CrawlOutcome {
	var ok []models.CrawlOutcome
	var errs []error
	for _, oc := range outcomes {
		if oc.Success {
			ok = append(ok, oc)
		} else if oc.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", oc.Family, oc.Err))
		}
	}

	switch len(ok) {
	case 0:
		return models.FailedOutcome(target, models.FamilyBoth, errors.Join(errs...))
	case 1:
		return ok[0]
	}

	merged := models.CrawlOutcome{
		Target:  target,
		Family:  models.FamilyBoth,
		Domains: models.NewDomainSet(),
		Source:  ok[0].Source,
		Success: true,
	}
	for _, oc := range ok {
		merged.Domains = merged.Domains.Union(oc.Domains)
		merged.PagesVisited += oc.PagesVisited
		if oc.Source == models.SourceManifest {
			merged.Source = models.SourceManifest
		}
	}
	return merged
}

func (o *Orchestrator) discoverFamily(ctx context.Context, target models.Target, family models.IPFamily) models.CrawlOutcome {
	logger := o.logger.With().Str("target", target.URL).Stringer("family", family).Logger()

	session, err := o.sessions.NewSession(ctx, family, target)
	if err != nil {
		return models.FailedOutcome(target, family, fmt.Errorf("open session: %w", err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing session")
		}
	}()

	if o.pacer != nil {
		if err := o.pacer.Wait(ctx, target.URL); err != nil {
			return models.FailedOutcome(target, family, err)
		}
	}

	seed, err := session.Render(ctx, target.URL)
	if err != nil {
		return models.FailedOutcome(target, family, fmt.Errorf("%w: %v", ErrSeedUnreachable, err))
	}
	if seed.Failed() {
		return models.FailedOutcome(target, family, fmt.Errorf("%w: HTTP %d", ErrSeedUnreachable, seed.StatusCode))
	}

	// the root is recorded so later runs can skip this target
	hosts := []string{target.Host}
	if root := classify.RootDomain(target.Host); root != "" && root != target.Host {
		hosts = append(hosts, root)
	}
	if h := hostOf(seed.URL); h != "" {
		hosts = append(hosts, h)
	}

	outcome := models.CrawlOutcome{Target: target, Family: family, Success: true}

	if manifestHosts, found := o.manifest.Extract(seed.HTML); found {
		logger.Info().Int("hosts", len(manifestHosts)).Msg("site manifest found")
		hosts = append(hosts, manifestHosts...)
		outcome.Source = models.SourceManifest
		outcome.PagesVisited = 1
	} else {
		res := o.crawler.Crawl(ctx, session, target, seed)
		hosts = append(hosts, res.Hosts...)
		outcome.Source = models.SourceCrawl
		outcome.PagesVisited = res.PagesVisited
		logger.Info().Int("pages", res.PagesVisited).Int("hosts", len(res.Hosts)).Msg("crawl finished")
	}

	outcome.Domains = o.classifier.ClassifyAll(hosts)
	return outcome
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
