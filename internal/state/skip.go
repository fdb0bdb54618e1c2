package state

import (
	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// ShouldSkip reports whether target's root domain is already known as an
// organization domain and was confirmed alive this run. It must be called
// with the post-validation alive set.
func ShouldSkip(target models.Target, persisted, alive *models.DomainSet) bool {
	root := classify.RootDomain(target.Host)
	if root == "" {
		return false
	}
	d, ok := persisted.Get(root)
	if !ok || !d.Organization {
		return false
	}
	return alive.Has(root)
}

// Partition splits targets into the ones to crawl and the ones to skip,
// keeping input order.
func Partition(targets []models.Target, persisted, alive *models.DomainSet) (crawl, skipped []models.Target) {
	for _, t := range targets {
		if ShouldSkip(t, persisted, alive) {
			skipped = append(skipped, t)
		} else {
			crawl = append(crawl, t)
		}
	}
	return crawl, skipped
}
