package state

import (
	"github.com/JameZUK/fqdn-builder/internal/dns"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

type MergeOptions struct {
	// OrganizationOnly drops third-party and IP-literal domains from the
	// result.
	OrganizationOnly bool
}

// Merge reconciles persisted domains with this run's outcomes. Persisted
// domains that validation marked dead are removed; discovered domains are
// added unless they are dead. Outcomes are applied in the given order, so
// the first observation of a name decides its position and classification.
// Removed lists every persisted name missing from the result: dead ones and,
// in organization-only mode, filtered third-party and IP entries.
func Merge(persisted *models.DomainSet, outcomes []models.CrawlOutcome, validation dns.Result, opts MergeOptions) (*models.DomainSet, models.RunStatistics) {
	kept := persisted.Difference(validation.Dead)

	result := kept.Clone()
	for _, oc := range outcomes {
		if !oc.Success {
			continue
		}
		for _, d := range oc.Domains.Domains() {
			if validation.Dead.Has(d.Name) {
				continue
			}
			result.Add(d)
		}
	}

	if opts.OrganizationOnly {
		result = result.Filter(func(d models.Domain) bool { return d.Organization && !d.IP })
	}

	stats := models.RunStatistics{
		DomainsTotal: result.Len(),
		Added:        result.Difference(kept).Names(),
		Removed:      persisted.Difference(result).Names(),
	}
	for _, d := range result.Domains() {
		if d.Organization {
			stats.OrganizationDomains++
		}
	}
	return result, stats
}
