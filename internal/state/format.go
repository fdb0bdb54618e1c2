// Package state reads, reconciles and writes the persisted domain list.
package state

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// ErrCorrupt means the persisted file exists but cannot be trusted.
var ErrCorrupt = errors.New("persisted state is corrupt")

const (
	timeLayout    = "2006-01-02 15:04:05 MST"
	thirdPartyTag = "third-party"
)

var (
	validName    = regexp.MustCompile(`^[a-z0-9.-]+\.(?:[a-z]{2,}|xn--[a-z0-9-]+)$`)
	numberedLine = regexp.MustCompile(`^\d+\.\s+(\S+)$`)
	statLine     = regexp.MustCompile(`^-\s+(.+?):\s+(.+)$`)
)

// WriteOptions controls how the domain list is rendered.
type WriteOptions struct {
	FQDNOnly           bool
	AnnotateThirdParty bool
	HeadlessBrowser    bool
	PersistCookies     bool
	Backup             bool
}

// Encode writes the header and one domain per line. In FQDN-only mode only
// organization hostnames are listed.
func Encode(w io.Writer, st models.PersistedState, opts WriteOptions) error {
	bw := bufio.NewWriter(w)
	stats := st.Stats

	format := "full (organization and third-party)"
	if opts.FQDNOnly {
		format = "FQDN-only (organization hostnames)"
	}

	fmt.Fprintln(bw, "# Organization FQDN List")
	fmt.Fprintln(bw, "# Generated by fqdn-builder")
	fmt.Fprintf(bw, "# Last updated: %s\n", st.GeneratedAt.UTC().Format(timeLayout))
	if stats.RunID != "" {
		fmt.Fprintf(bw, "# Run ID: %s\n", stats.RunID)
	}
	fmt.Fprintln(bw, "#")
	fmt.Fprintln(bw, "# Input Sources:")
	for i, t := range st.Targets {
		fmt.Fprintf(bw, "#   %d. %s\n", i+1, t)
	}
	fmt.Fprintln(bw, "#")
	fmt.Fprintln(bw, "# Statistics:")
	fmt.Fprintf(bw, "#   - Total domains: %d\n", stats.DomainsTotal)
	fmt.Fprintf(bw, "#   - Organization domains: %d\n", stats.OrganizationDomains)
	fmt.Fprintf(bw, "#   - Added this run: %d\n", len(stats.Added))
	fmt.Fprintf(bw, "#   - Removed this run: %d\n", len(stats.Removed))
	fmt.Fprintf(bw, "#   - Targets crawled: %d\n", stats.TargetsCrawled)
	fmt.Fprintf(bw, "#   - Targets skipped: %d\n", stats.TargetsSkipped)
	fmt.Fprintf(bw, "#   - Targets failed: %d\n", stats.TargetsFailed)
	fmt.Fprintf(bw, "#   - Concurrency: %d\n", stats.Concurrency)
	fmt.Fprintf(bw, "#   - Max pages per site: %d\n", stats.PageBudget)
	fmt.Fprintf(bw, "#   - Discovery mode: %s\n", stats.Mode)
	fmt.Fprintf(bw, "#   - Run duration: %s\n", stats.Duration.Round(time.Second))
	fmt.Fprintln(bw, "#")
	fmt.Fprintln(bw, "# Configuration:")
	fmt.Fprintf(bw, "#   - Headless browser: %t\n", opts.HeadlessBrowser)
	fmt.Fprintf(bw, "#   - Cookie persistence: %t\n", opts.PersistCookies)
	fmt.Fprintf(bw, "#   - Backup: %t\n", opts.Backup)
	fmt.Fprintf(bw, "#   - Format: %s\n", format)
	fmt.Fprintln(bw, "#")
	fmt.Fprintln(bw, "# "+strings.Repeat("=", 60))
	fmt.Fprintln(bw)

	for _, d := range st.Domains.Domains() {
		if opts.FQDNOnly && (!d.Organization || d.IP) {
			continue
		}
		if opts.AnnotateThirdParty && !d.Organization {
			fmt.Fprintf(bw, "%s  # %s\n", d.Name, thirdPartyTag)
			continue
		}
		fmt.Fprintln(bw, d.Name)
	}
	return bw.Flush()
}

// Decode reads a persisted list. Unparseable lines are skipped and logged.
// Invalid UTF-8, or a body in which no line is a valid hostname, is
// ErrCorrupt. Classification of the returned domains uses c.
func Decode(r io.Reader, c *classify.Classifier, logger zerolog.Logger) (models.PersistedState, error) {
	st := models.EmptyState()

	data, err := io.ReadAll(r)
	if err != nil {
		return st, err
	}
	if !utf8.Valid(data) {
		return st, fmt.Errorf("%w: not valid UTF-8", ErrCorrupt)
	}

	candidates, invalid := 0, 0
	section := ""
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			section = readHeader(&st, section, strings.TrimSpace(strings.TrimPrefix(line, "#")))
			continue
		}

		// inline comments, including the third-party annotation
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))
		if line == "" {
			continue
		}

		candidates++
		name := classify.Normalize(line)
		if !validName.MatchString(name) && !classify.IsIP(name) {
			invalid++
			logger.Warn().Int("line", lineNo).Str("value", line).Msg("skipping invalid domain line")
			continue
		}
		d, ok := c.Classify(name)
		if !ok {
			invalid++
			continue
		}
		st.Domains.Add(d)
	}
	if err := scanner.Err(); err != nil {
		return models.EmptyState(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if candidates > 0 && invalid == candidates {
		return models.EmptyState(), fmt.Errorf("%w: no valid domain in %d lines", ErrCorrupt, candidates)
	}
	return st, nil
}

// readHeader picks metadata out of a comment line and returns the current
// header section.
func readHeader(st *models.PersistedState, section, text string) string {
	switch {
	case strings.HasPrefix(text, "Last updated:"):
		v := strings.TrimSpace(strings.TrimPrefix(text, "Last updated:"))
		if t, err := time.Parse(timeLayout, v); err == nil {
			st.GeneratedAt = t
		}
		return section
	case strings.HasPrefix(text, "Run ID:"):
		st.Stats.RunID = strings.TrimSpace(strings.TrimPrefix(text, "Run ID:"))
		return section
	case strings.HasSuffix(text, ":") && !strings.HasPrefix(text, "-"):
		return strings.TrimSuffix(text, ":")
	}

	switch section {
	case "Input Sources":
		if m := numberedLine.FindStringSubmatch(text); m != nil {
			st.Targets = append(st.Targets, m[1])
		}
	case "Statistics":
		if m := statLine.FindStringSubmatch(text); m != nil {
			readStat(&st.Stats, m[1], m[2])
		}
	}
	return section
}

func readStat(stats *models.RunStatistics, key, value string) {
	n, err := strconv.Atoi(value)
	switch key {
	case "Concurrency":
		if err == nil {
			stats.Concurrency = n
		}
	case "Max pages per site":
		if err == nil {
			stats.PageBudget = n
		}
	case "Discovery mode":
		stats.Mode = value
	case "Total domains":
		if err == nil {
			stats.DomainsTotal = n
		}
	case "Organization domains":
		if err == nil {
			stats.OrganizationDomains = n
		}
	}
}
