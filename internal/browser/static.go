package browser

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/JameZUK/fqdn-builder/internal/cookies"
	"github.com/JameZUK/fqdn-builder/internal/crawler"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// StaticFactory fetches pages over plain HTTP without running scripts. It
// pins connections to the session's IP family at dial time.
type StaticFactory struct {
	opts     Options
	store    *cookies.Store
	imported []cookies.Cookie
	logger   zerolog.Logger
}

func NewStaticFactory(opts Options, store *cookies.Store, imported []cookies.Cookie, logger zerolog.Logger) *StaticFactory {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &StaticFactory{
		opts:     opts,
		store:    store,
		imported: imported,
		logger:   logger.With().Str("component", "static_fetcher").Logger(),
	}
}

func dialNetwork(family models.IPFamily) string {
	switch family {
	case models.FamilyV4:
		return "tcp4"
	case models.FamilyV6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (f *StaticFactory) NewSession(ctx context.Context, family models.IPFamily, target models.Target) (crawler.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	seedURL, err := url.Parse(target.Authority)
	if err != nil {
		return nil, err
	}
	var initial []cookies.Cookie
	if f.opts.PersistCookies && f.store != nil {
		saved, err := f.store.Load(target.CookieKey())
		if err != nil {
			f.logger.Warn().Err(err).Str("site", target.CookieKey()).Msg("ignoring saved cookies")
		}
		initial = append(initial, saved...)
	}
	initial = append(initial, cookies.ForHost(f.imported, target.Host)...)
	jar.SetCookies(seedURL, toHTTPCookies(initial))

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, dialNetwork(family), addr)
	}

	return &staticSession{
		client: &http.Client{
			Timeout:   f.opts.NavigationTimeout,
			Transport: transport,
			Jar:       jar,
		},
		jar:     jar,
		seed:    seedURL,
		key:     target.CookieKey(),
		factory: f,
	}, nil
}

type staticSession struct {
	client  *http.Client
	jar     *cookiejar.Jar
	seed    *url.URL
	key     string
	factory *StaticFactory
}

func (s *staticSession) Render(ctx context.Context, targetURL string) (models.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return models.Page{URL: targetURL}, err
	}
	req.Header.Set("User-Agent", s.factory.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Page{URL: targetURL}, err
	}
	defer resp.Body.Close()

	page := models.Page{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		page.MIMEType = mt
	}
	if page.Failed() || !page.IsHTML() {
		return page, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return page, fmt.Errorf("read %s: %w", targetURL, err)
	}
	page.HTML = string(body)
	return page, nil
}

// Close persists the jar's cookies for the seed host. Only name and value
// survive a cookiejar round trip, so they are stored as host cookies.
func (s *staticSession) Close() error {
	s.client.CloseIdleConnections()
	if !s.factory.opts.PersistCookies || s.factory.store == nil {
		return nil
	}
	var out []cookies.Cookie
	for _, c := range s.jar.Cookies(s.seed) {
		out = append(out, cookies.Cookie{Name: c.Name, Value: c.Value, Domain: s.seed.Hostname(), Path: "/"})
	}
	return s.factory.store.Save(s.key, out)
}

func toHTTPCookies(in []cookies.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}
