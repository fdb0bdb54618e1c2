// Package runner executes one discovery run from persisted state to the
// written result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/internal/config"
	"github.com/JameZUK/fqdn-builder/internal/crawler"
	"github.com/JameZUK/fqdn-builder/internal/crawler/engine"
	"github.com/JameZUK/fqdn-builder/internal/dns"
	"github.com/JameZUK/fqdn-builder/internal/state"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// StateStore loads and saves the persisted domain list.
type StateStore interface {
	Load(c *classify.Classifier) (models.PersistedState, error)
	Save(st models.PersistedState) error
}

// SnapshotMirror receives the final list of a run.
type SnapshotMirror interface {
	SaveSnapshot(ctx context.Context, domains *models.DomainSet, stats models.RunStatistics) error
}

// Dependencies are the outside capabilities a run needs. Store, Mirror
// and OutcomeSink are optional. An empty RunID gets a fresh UUID.
type Dependencies struct {
	RunID       string
	Sessions    crawler.SessionFactory
	Checker     dns.Checker
	Store       StateStore
	Mirror      SnapshotMirror
	OutcomeSink engine.Sink[models.CrawlOutcome]
}

type Result struct {
	State    models.PersistedState
	Stats    models.RunStatistics
	Outcomes []models.CrawlOutcome
}

type Runner struct {
	cfg     *config.Config
	deps    Dependencies
	logger  zerolog.Logger
	now     func() time.Time
	shuffle func([]models.Target)
	runID   string
}

func New(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Runner {
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
		shuffle: func(ts []models.Target) {
			rand.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
		},
		runID: runID,
	}
}

// RunID identifies this run in logs, the output header and the database.
func (r *Runner) RunID() string {
	return r.runID
}

// Run discovers targets and reconciles the result with persisted state. If
// ctx is cancelled before the merge, nothing is written.
func (r *Runner) Run(ctx context.Context, targets []models.Target) (Result, error) {
	start := r.now()
	logger := r.logger.With().Str("run_id", r.runID).Logger()
	mode := r.cfg.Mode()

	classifier := classify.FromTargets(targets)

	prior := models.EmptyState()
	if r.deps.Store != nil {
		loaded, err := r.deps.Store.Load(classifier)
		switch {
		case errors.Is(err, state.ErrCorrupt):
			logger.Warn().Err(err).Msg("existing output unreadable, starting from empty state")
		case err != nil:
			return Result{}, fmt.Errorf("load state: %w", err)
		default:
			prior = loaded
		}
	}
	for i, raw := range prior.Targets {
		if t, err := models.ParseTarget(raw, i); err == nil {
			classifier.AddRoot(classify.RootDomain(t.Host))
		}
	}
	persisted := classifier.Reclassify(prior.Domains)

	validator := dns.NewValidator(r.deps.Checker, dns.ValidatorConfig{
		Concurrency:  r.cfg.DNSConcurrency(),
		Retries:      r.cfg.DNS.Retries,
		Backoff:      r.cfg.DNS.Backoff,
		Conservative: r.cfg.DNS.Conservative,
	}, logger)

	logger.Info().Int("domains", persisted.Len()).Msg("revalidating existing domains")
	persistedValidation, err := validator.Validate(ctx, persisted)
	if err != nil {
		return Result{}, err
	}

	toCrawl, skipped := targets, []models.Target(nil)
	if r.cfg.SkipKnown && mode != models.ModeDual {
		toCrawl, skipped = state.Partition(targets, persisted, persistedValidation.Alive)
	}
	for _, t := range skipped {
		logger.Info().Str("target", t.URL).Msg("organization domain already known, skipping")
	}

	queue := append([]models.Target(nil), toCrawl...)
	if r.cfg.ShuffleTargets {
		r.shuffle(queue)
	}

	outcomes, err := r.crawl(ctx, queue, classifier, mode, logger)
	if err != nil {
		return Result{}, err
	}

	discovered := models.NewDomainSet()
	for _, oc := range outcomes {
		if !oc.Success {
			continue
		}
		for _, d := range oc.Domains.Domains() {
			if !persisted.Has(d.Name) {
				discovered.Add(d)
			}
		}
	}
	logger.Info().Int("domains", discovered.Len()).Msg("validating newly discovered domains")
	discoveredValidation, err := validator.Validate(ctx, discovered)
	if err != nil {
		return Result{}, err
	}

	domains, stats := state.Merge(persisted, outcomes, persistedValidation.Merge(discoveredValidation),
		state.MergeOptions{OrganizationOnly: r.cfg.FQDNOnly})

	stats.RunID = r.runID
	stats.TargetsTotal = len(targets)
	stats.TargetsSkipped = len(skipped)
	for _, oc := range outcomes {
		if oc.Success {
			stats.TargetsCrawled++
		} else {
			stats.TargetsFailed++
		}
	}
	stats.Concurrency = r.cfg.Concurrency
	stats.PageBudget = r.cfg.Pages
	stats.Mode = mode.String()
	stats.Duration = r.now().Sub(start)

	next := models.PersistedState{
		Domains:     domains,
		Targets:     mergeTargets(prior.Targets, targets),
		Stats:       stats,
		GeneratedAt: r.now().UTC(),
	}

	if r.deps.Store != nil {
		if err := r.deps.Store.Save(next); err != nil {
			return Result{}, fmt.Errorf("save state: %w", err)
		}
	}
	if r.deps.Mirror != nil {
		if err := r.deps.Mirror.SaveSnapshot(ctx, domains, stats); err != nil {
			logger.Warn().Err(err).Msg("database mirror failed")
		}
	}

	logger.Info().
		Int("targets", stats.TargetsTotal).
		Int("skipped", stats.TargetsSkipped).
		Int("crawled", stats.TargetsCrawled).
		Int("failed", stats.TargetsFailed).
		Int("domains", stats.DomainsTotal).
		Int("added", len(stats.Added)).
		Int("removed", len(stats.Removed)).
		Dur("duration", stats.Duration).
		Msg("run complete")

	return Result{State: next, Stats: stats, Outcomes: outcomes}, nil
}

func (r *Runner) crawl(ctx context.Context, queue []models.Target, classifier *classify.Classifier, mode models.Mode, logger zerolog.Logger) ([]models.CrawlOutcome, error) {
	if len(queue) == 0 {
		return nil, nil
	}

	collector := engine.NewCollector[models.CrawlOutcome]()
	var sink engine.Sink[models.CrawlOutcome] = collector
	if r.deps.OutcomeSink != nil {
		sink = engine.Tee[models.CrawlOutcome](collector, r.deps.OutcomeSink)
	}

	pacer := crawler.NewDomainManager(r.cfg.Browser.RateLimit)
	fallback := crawler.NewFallbackCrawler(crawler.NewParser(), crawler.SiteFilter{}, pacer, r.cfg.Pages, logger)
	orchestrator := crawler.NewOrchestrator(r.deps.Sessions, crawler.NewManifestExtractor(), fallback, classifier, pacer, logger)

	eng := engine.NewEngine[models.CrawlOutcome](
		engine.Config{Workers: r.cfg.Concurrency, BatchSize: r.cfg.Concurrency, FlushInterval: 2 * time.Second},
		&crawler.TargetProcessor{Orchestrator: orchestrator, Mode: mode},
		sink,
		logger,
	)
	if err := eng.Run(ctx, queue); err != nil {
		return nil, err
	}

	outcomes := collector.Items()
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Target.Index < outcomes[j].Target.Index })
	for _, oc := range outcomes {
		if !oc.Success {
			logger.Warn().Str("target", oc.Target.URL).Str("reason", oc.Reason()).Msg("target failed")
		}
	}
	return outcomes, nil
}

// mergeTargets keeps previously seen inputs and appends new ones.
func mergeTargets(prior []string, current []models.Target) []string {
	seen := make(map[string]struct{}, len(prior)+len(current))
	out := make([]string, 0, len(prior)+len(current))
	for _, t := range prior {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range current {
		if _, ok := seen[t.URL]; !ok {
			seen[t.URL] = struct{}{}
			out = append(out, t.URL)
		}
	}
	return out
}
