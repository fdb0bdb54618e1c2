// Package browser renders pages for the crawler, either in headless Chrome
// or over plain HTTP.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/internal/cookies"
	"github.com/JameZUK/fqdn-builder/internal/crawler"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// collects every URL the DOM knows about, resolved by the browser
const linksScript = `(() => {
	const out = [];
	for (const a of document.links) out.push(a.href);
	for (const el of document.querySelectorAll('script[src], img[src], iframe[src]')) out.push(el.src);
	for (const el of document.querySelectorAll('link[href]')) out.push(el.href);
	return out;
})()`

type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	PersistCookies    bool
	ExecPath          string
}

// ChromeFactory opens one Chrome process per session.
type ChromeFactory struct {
	opts     Options
	store    *cookies.Store
	imported []cookies.Cookie
	logger   zerolog.Logger
}

func NewChromeFactory(opts Options, store *cookies.Store, imported []cookies.Cookie, logger zerolog.Logger) *ChromeFactory {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &ChromeFactory{
		opts:     opts,
		store:    store,
		imported: imported,
		logger:   logger.With().Str("component", "chrome").Logger(),
	}
}

func allocatorOptions(opts Options, family models.IPFamily) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1366, 768),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("headless", opts.Headless),
	)
	switch family {
	case models.FamilyV4:
		out = append(out, chromedp.Flag("disable-ipv6", true))
	case models.FamilyV6:
		out = append(out, chromedp.Flag("disable-ipv4", true), chromedp.Flag("force-ipv6-only", true))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

func (f *ChromeFactory) NewSession(ctx context.Context, family models.IPFamily, target models.Target) (crawler.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(f.opts, family)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx:     browserCtx,
		key:     target.CookieKey(),
		factory: f,
		logger:  f.logger.With().Str("target", target.URL).Stringer("family", family).Logger(),
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	// the first Run starts the browser; it must not be tied to a request timeout
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	params := toCookieParams(f.sessionCookies(target), target.Authority)
	if len(params) > 0 {
		err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(params).Do(ctx)
		}))
		if err != nil {
			s.logger.Warn().Err(err).Int("cookies", len(params)).Msg("could not load cookies")
		}
	}
	return s, nil
}

func (f *ChromeFactory) sessionCookies(target models.Target) []cookies.Cookie {
	var out []cookies.Cookie
	if f.opts.PersistCookies && f.store != nil {
		saved, err := f.store.Load(target.CookieKey())
		if err != nil {
			f.logger.Warn().Err(err).Str("site", target.CookieKey()).Msg("ignoring saved cookies")
		}
		out = append(out, saved...)
	}
	return append(out, cookies.ForHost(f.imported, target.Host)...)
}

type chromeSession struct {
	ctx     context.Context
	cancel  func()
	key     string
	factory *ChromeFactory
	logger  zerolog.Logger
}

func (s *chromeSession) Render(ctx context.Context, url string) (models.Page, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.factory.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("navigate %s: %w", url, err)
	}

	page := models.Page{URL: url}
	if resp != nil {
		page.StatusCode = int(resp.Status)
		page.MIMEType = resp.MimeType
	}
	if page.Failed() || !page.IsHTML() {
		return page, nil
	}

	err = chromedp.Run(runCtx,
		chromedp.Sleep(s.factory.opts.SettleDelay),
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
		chromedp.Evaluate(linksScript, &page.Links),
	)
	if err != nil {
		return page, fmt.Errorf("read %s: %w", url, err)
	}
	return page, nil
}

// Close saves the session's cookies when persistence is on and shuts the
// browser down.
func (s *chromeSession) Close() error {
	defer s.cancel()

	if !s.factory.opts.PersistCookies || s.factory.store == nil {
		return nil
	}

	var got []*network.Cookie
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		got, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("read cookies: %w", err)
	}
	return s.factory.store.Save(s.key, fromNetworkCookies(got))
}

func toCookieParams(in []cookies.Cookie, authority string) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(in))
	for _, c := range in {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Domain == "" {
			p.URL = authority
		}
		switch c.SameSite {
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			expires := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			p.Expires = &expires
		}
		out = append(out, p)
	}
	return out
}

func fromNetworkCookies(in []*network.Cookie) []cookies.Cookie {
	out := make([]cookies.Cookie, 0, len(in))
	for _, c := range in {
		cookie := cookies.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite.String(),
		}
		if !c.Session && c.Expires > 0 {
			cookie.Expires = c.Expires
		}
		out = append(out, cookie)
	}
	return out
}
