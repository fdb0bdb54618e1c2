// Package classify decides which hostnames belong to the organization being
// mapped.
package classify

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// Normalize lowercases a hostname and strips a trailing dot, a port and IPv6
// brackets. It returns "" for input that cannot be a hostname.
func Normalize(host string) string {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "[") {
		if end := strings.Index(h, "]"); end > 0 {
			return h[1:end]
		}
		return ""
	}
	if strings.Count(h, ":") == 1 {
		if hostPart, _, err := net.SplitHostPort(h); err == nil {
			h = hostPart
		}
	}
	h = strings.TrimSuffix(h, ".")
	if strings.ContainsAny(h, " /\\?#@") {
		return ""
	}
	return h
}

// IsIP reports whether host is an IPv4 or IPv6 literal.
func IsIP(host string) bool {
	return net.ParseIP(host) != nil
}

// RootDomain returns the registrable domain (eTLD+1). A host that is itself a
// public suffix is its own root. IP literals have no root.
func RootDomain(host string) string {
	h := Normalize(host)
	if h == "" || IsIP(h) {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return root
}

// Classifier holds the organization's root domains.
type Classifier struct {
	roots map[string]struct{}
}

func New(roots ...string) *Classifier {
	c := &Classifier{roots: make(map[string]struct{})}
	for _, r := range roots {
		c.AddRoot(r)
	}
	return c
}

// FromTargets builds a classifier whose organization roots are the roots of
// every target host.
func FromTargets(targets []models.Target) *Classifier {
	c := New()
	for _, t := range targets {
		c.AddRoot(RootDomain(t.Host))
	}
	return c
}

func (c *Classifier) AddRoot(root string) {
	r := Normalize(root)
	if r == "" {
		return
	}
	c.roots[r] = struct{}{}
}

func (c *Classifier) Roots() []string {
	out := make([]string, 0, len(c.roots))
	for r := range c.roots {
		out = append(out, r)
	}
	return out
}

// IsOrganization reports whether a host shares a root with any target.
func (c *Classifier) IsOrganization(host string) bool {
	root := RootDomain(host)
	if root == "" {
		return false
	}
	_, ok := c.roots[root]
	return ok
}

// Classify turns a raw hostname into a Domain. ok is false when the input is
// not a usable hostname.
func (c *Classifier) Classify(host string) (models.Domain, bool) {
	h := Normalize(host)
	if h == "" {
		return models.Domain{}, false
	}
	if IsIP(h) {
		return models.Domain{Name: h, IP: true}, true
	}
	if !strings.Contains(h, ".") {
		return models.Domain{}, false
	}
	root := RootDomain(h)
	_, org := c.roots[root]
	return models.Domain{Name: h, Root: root, Organization: org}, true
}

// ClassifyAll classifies hosts in order, dropping unusable ones.
func (c *Classifier) ClassifyAll(hosts []string) *models.DomainSet {
	set := models.NewDomainSet()
	for _, h := range hosts {
		if d, ok := c.Classify(h); ok {
			set.Add(d)
		}
	}
	return set
}

// Reclassify recomputes classification for an existing set. Used on persisted
// domains when the target list changes between runs.
func (c *Classifier) Reclassify(set *models.DomainSet) *models.DomainSet {
	out := models.NewDomainSet()
	for _, d := range set.Domains() {
		if nd, ok := c.Classify(d.Name); ok {
			out.Add(nd)
		}
	}
	return out
}
