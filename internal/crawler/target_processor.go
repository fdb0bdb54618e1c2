package crawler

import (
	"context"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// TargetProcessor implements engine.Processor for domain discovery.
type TargetProcessor struct {
	Orchestrator *Orchestrator
	Mode         models.Mode
}

// Process discovers one target. A failed target is still reported as an
// outcome so it can be counted; the error return is reserved for
// cancellation.
func (p *TargetProcessor) Process(ctx context.Context, target models.Target) ([]models.CrawlOutcome, error) {
	outcome := p.Orchestrator.Discover(ctx, target, p.Mode)
	if err := ctx.Err(); err != nil && !outcome.Success {
		return nil, err
	}
	return []models.CrawlOutcome{outcome}, nil
}
