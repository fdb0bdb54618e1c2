package storage

import (
	"context"
	"time"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// SaveSnapshot mirrors the final domain list of a run. Domains in
// stats.Removed are deleted; everything else is upserted.
func (s *Storage) SaveSnapshot(ctx context.Context, domains *models.DomainSet, stats models.RunStatistics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO fqdn_domains (name, root, organization, first_seen_run, last_seen_run, updated_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			root = EXCLUDED.root, organization = EXCLUDED.organization,
			last_seen_run = EXCLUDED.last_seen_run, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	for _, d := range domains.Domains() {
		if _, err := upsert.ExecContext(ctx, d.Name, d.Root, d.Organization, stats.RunID, now); err != nil {
			return err
		}
	}

	for _, name := range stats.Removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fqdn_domains WHERE name = $1`, name); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fqdn_runs (run_id, finished_at, targets_total, targets_skipped, targets_crawled,
			targets_failed, domains_total, domains_added, domains_removed, duration_ms, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO NOTHING`,
		stats.RunID, now, stats.TargetsTotal, stats.TargetsSkipped, stats.TargetsCrawled,
		stats.TargetsFailed, stats.DomainsTotal, len(stats.Added), len(stats.Removed),
		stats.Duration.Milliseconds(), stats.Mode)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info().Str("run_id", stats.RunID).Int("domains", domains.Len()).Msg("snapshot mirrored")
	return nil
}
