package crawler

import (
	"context"
	"errors"
	"sync"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// fakeSite serves canned pages by URL.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]models.Page
	fail    map[models.IPFamily]bool
	renders []string
	closed  int
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: map[string]models.Page{}, fail: map[models.IPFamily]bool{}}
}

func (s *fakeSite) page(url, html string) {
	s.pages[url] = models.Page{URL: url, StatusCode: 200, MIMEType: "text/html", HTML: html}
}

func (s *fakeSite) renderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.renders)
}

func (s *fakeSite) NewSession(_ context.Context, family models.IPFamily, _ models.Target) (Session, error) {
	return &fakeSession{site: s, family: family}, nil
}

type fakeSession struct {
	site   *fakeSite
	family models.IPFamily
}

func (f *fakeSession) Render(_ context.Context, url string) (models.Page, error) {
	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	f.site.renders = append(f.site.renders, url)
	if f.site.fail[f.family] {
		return models.Page{}, errors.New("network unreachable")
	}
	p, ok := f.site.pages[url]
	if !ok {
		return models.Page{URL: url, StatusCode: 404, MIMEType: "text/html"}, nil
	}
	return p, nil
}

func (f *fakeSession) Close() error {
	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	f.site.closed++
	return nil
}

// familySites routes each IP family to its own site.
type familySites map[models.IPFamily]*fakeSite

func (fs familySites) NewSession(ctx context.Context, family models.IPFamily, t models.Target) (Session, error) {
	return fs[family].NewSession(ctx, family, t)
}
