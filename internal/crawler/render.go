package crawler

import (
	"context"
	"errors"

	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// ErrSeedUnreachable marks a target whose first page could not be loaded.
var ErrSeedUnreachable = errors.New("seed unreachable")

// Session renders pages inside one browser context pinned to an IP family.
// A session is owned by a single goroutine.
type Session interface {
	Render(ctx context.Context, url string) (models.Page, error)
	Close() error
}

// SessionFactory opens sessions. The target selects the cookie jar.
type SessionFactory interface {
	NewSession(ctx context.Context, family models.IPFamily, target models.Target) (Session, error)
}

// LinkExtractor pulls absolute URLs from rendered HTML.
type LinkExtractor interface {
	ExtractLinks(document, baseURL string) []string
}
