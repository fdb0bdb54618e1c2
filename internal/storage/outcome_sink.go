package storage

import (
	"fmt"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// OutcomeSink implements engine.Sink and records per-target outcomes. A batch
// is written in one transaction; one bad row fails the whole batch.
type OutcomeSink struct {
	*Storage
	RunID string
}

func (s *OutcomeSink) Save(batch []models.CrawlOutcome) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO fqdn_outcomes (run_id, target, family, source, pages, success, reason, domains)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, target) DO UPDATE SET
			family = EXCLUDED.family, source = EXCLUDED.source, pages = EXCLUDED.pages,
			success = EXCLUDED.success, reason = EXCLUDED.reason, domains = EXCLUDED.domains`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, oc := range batch {
		_, err := stmt.Exec(s.RunID, oc.Target.URL, oc.Family.String(), string(oc.Source),
			oc.PagesVisited, oc.Success, oc.Reason(), oc.Domains.Len())
		if err != nil {
			return fmt.Errorf("save outcome for %s: %w", oc.Target.URL, err)
		}
	}

	return tx.Commit()
}
