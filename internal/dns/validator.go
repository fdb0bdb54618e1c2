package dns

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// Checker is the resolve capability. A nil error with false is a definitive
// "does not exist"; an error is inconclusive.
type Checker interface {
	Resolves(ctx context.Context, host string) (bool, error)
}

type ValidatorConfig struct {
	Concurrency  int
	Retries      int
	Backoff      time.Duration
	Conservative bool // keep names whose checks never got a definitive answer
}

// Result partitions a validated set. Both halves keep input order.
type Result struct {
	Alive *models.DomainSet
	Dead  *models.DomainSet
}

func EmptyResult() Result {
	return Result{Alive: models.NewDomainSet(), Dead: models.NewDomainSet()}
}

// Merge returns the union of two results. Alive wins if a name appears in
// both halves.
func (r Result) Merge(other Result) Result {
	alive := r.Alive.Union(other.Alive)
	return Result{
		Alive: alive,
		Dead:  r.Dead.Union(other.Dead).Difference(alive),
	}
}

type Validator struct {
	checker Checker
	cfg     ValidatorConfig
	logger  zerolog.Logger
	sleep   func(context.Context, time.Duration) error
}

func NewValidator(checker Checker, cfg ValidatorConfig, logger zerolog.Logger) *Validator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Validator{
		checker: checker,
		cfg:     cfg,
		logger:  logger.With().Str("component", "dns_validator").Logger(),
		sleep:   sleepContext,
	}
}

// Validate checks every domain with bounded parallelism. It only fails when
// ctx is cancelled.
func (v *Validator) Validate(ctx context.Context, domains *models.DomainSet) (Result, error) {
	if err := ctx.Err(); err != nil {
		return EmptyResult(), err
	}
	list := domains.Domains()
	alive := make([]bool, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)

	var mu sync.Mutex
	transient := 0

	for i, d := range list {
		i, d := i, d
		if d.IP {
			alive[i] = true
			continue
		}
		g.Go(func() error {
			ok, err := v.check(gctx, d.Name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				transient++
				mu.Unlock()
				ok = v.cfg.Conservative
				v.logger.Debug().Err(err).Str("domain", d.Name).Bool("kept", ok).Msg("no definitive answer")
			}
			alive[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EmptyResult(), err
	}

	res := EmptyResult()
	for i, d := range list {
		if alive[i] {
			res.Alive.Add(d)
		} else {
			res.Dead.Add(d)
		}
	}

	v.logger.Info().
		Int("checked", len(list)).
		Int("alive", res.Alive.Len()).
		Int("dead", res.Dead.Len()).
		Int("inconclusive", transient).
		Msg("dns validation finished")
	return res, nil
}

func (v *Validator) check(ctx context.Context, host string) (bool, error) {
	backoff := v.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= v.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := v.sleep(ctx, backoff); err != nil {
				return false, err
			}
			backoff *= 2
		}
		ok, err := v.checker.Resolves(ctx, host)
		if err == nil {
			return ok, nil
		}
		lastErr = err
	}
	if !errors.Is(lastErr, ErrTransient) {
		lastErr = errors.Join(ErrTransient, lastErr)
	}
	return false, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
