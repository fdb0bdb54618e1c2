package models

// Source tells how an outcome's domains were found.
type Source string

const (
	SourceNone     Source = ""
	SourceManifest Source = "manifest"
	SourceCrawl    Source = "crawl"
)

// CrawlOutcome is the result of discovering one target.
type CrawlOutcome struct {
	Target       Target
	Family       IPFamily
	Domains      *DomainSet
	Source       Source
	PagesVisited int
	Success      bool
	Err          error
}

func FailedOutcome(t Target, family IPFamily, err error) CrawlOutcome {
	return CrawlOutcome{
		Target:  t,
		Family:  family,
		Domains: NewDomainSet(),
		Err:     err,
	}
}

// Reason is the failure message, empty for successful outcomes.
func (o CrawlOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
