package models

import "time"

// RunStatistics summarizes one run. It is also the header block of the
// persisted artifact.
type RunStatistics struct {
	RunID string

	TargetsTotal   int
	TargetsSkipped int
	TargetsCrawled int
	TargetsFailed  int

	DomainsTotal        int
	OrganizationDomains int
	Added               []string
	Removed             []string

	Duration    time.Duration
	Concurrency int
	PageBudget  int
	Mode        string
}

// PersistedState is the durable result set carried between runs.
type PersistedState struct {
	Domains     *DomainSet
	Targets     []string
	Stats       RunStatistics
	GeneratedAt time.Time
}

func EmptyState() PersistedState {
	return PersistedState{Domains: NewDomainSet()}
}
