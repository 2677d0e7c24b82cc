package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/jmylchreest/jobsweep/internal/logger"
)

// PlaywrightFetcher drives Chromium through playwright-go. One browser is
// shared; every session is its own browser context.
type PlaywrightFetcher struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywright starts the playwright driver and launches Chromium.
func NewPlaywright(opts Options) (*PlaywrightFetcher, error) {
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Stealth {
		launch.Args = []string{"--disable-blink-features=AutomationControlled"}
	}
	if opts.BrowserPath != "" {
		launch.ExecutablePath = playwright.String(opts.BrowserPath)
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	logger.Debug("playwright fetcher created",
		"headless", opts.Headless,
		"stealth", opts.Stealth,
		"timeout", opts.Timeout)

	return &PlaywrightFetcher{opts: opts, pw: pw, browser: browser}, nil
}

// NewSession opens a fresh browser context with a single page.
func (f *PlaywrightFetcher) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(ErrFatal, "", err)
	}
	bctx, err := f.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(f.opts.UserAgent),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return nil, Wrap(ErrFatal, "", fmt.Errorf("could not create browser context: %w", err))
	}
	if len(f.opts.Headers) > 0 {
		if err := bctx.SetExtraHTTPHeaders(f.opts.Headers); err != nil {
			logger.Debug("failed to set extra headers", "error", err)
		}
	}
	if f.opts.Stealth {
		if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
			logger.Debug("stealth script injection failed", "error", err)
		}
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, Wrap(ErrFatal, "", fmt.Errorf("could not create page: %w", err))
	}
	return &playwrightSession{bctx: bctx, page: page, timeout: f.opts.Timeout}, nil
}

// Close shuts down the browser and the driver.
func (f *PlaywrightFetcher) Close() error {
	if err := f.browser.Close(); err != nil {
		logger.Debug("failed to close browser", "error", err)
	}
	return f.pw.Stop()
}

// Type returns the fetcher type.
func (f *PlaywrightFetcher) Type() string {
	return ModePlaywright
}

type playwrightSession struct {
	bctx    playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
}

// millis converts d to playwright's millisecond timeout, capped by the
// deadline of ctx. playwright-go calls are not context aware.
func millis(ctx context.Context, d time.Duration) *float64 {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// classify maps a playwright failure onto the fetch error kinds.
func classify(ctx context.Context, url string, err error, fallback error) error {
	switch {
	case ctx.Err() != nil:
		return Wrap(ErrFatal, url, ctx.Err())
	case errors.Is(err, playwright.ErrTargetClosed):
		return Wrap(ErrFatal, url, err)
	case errors.Is(err, playwright.ErrTimeout):
		return Wrap(fallback, url, err)
	default:
		return Wrap(ErrTransient, url, err)
	}
}

func (s *playwrightSession) Open(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(ErrFatal, url, err)
	}
	logger.Debug("playwright navigate", "url", url)
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(ctx, s.timeout),
	})
	if err != nil {
		return nil, classify(ctx, url, err, ErrTransient)
	}
	if resp != nil {
		if st := resp.Status(); st >= 400 {
			return nil, classifyStatus(url, st, fmt.Errorf("status %d", st))
		}
	}
	return &playwrightPage{s: s, url: url}, nil
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}

type playwrightPage struct {
	s   *playwrightSession
	url string
}

func (p *playwrightPage) URL() string { return p.url }

func (p *playwrightPage) WaitFor(ctx context.Context, sel string, timeout time.Duration) error {
	err := p.s.page.Locator(sel).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: millis(ctx, timeout),
	})
	if err != nil {
		return classify(ctx, p.url, err, ErrTimeout)
	}
	return nil
}

func (p *playwrightPage) FindOne(ctx context.Context, sel string) (Element, error) {
	return first(p.FindAll(ctx, sel))
}

func (p *playwrightPage) FindAll(ctx context.Context, sel string) ([]Element, error) {
	return p.wrap(ctx, p.s.page.Locator(sel))
}

func (p *playwrightPage) wrap(ctx context.Context, loc playwright.Locator) ([]Element, error) {
	all, err := loc.All()
	if err != nil {
		return nil, classify(ctx, p.url, err, ErrTimeout)
	}
	out := make([]Element, 0, len(all))
	for _, l := range all {
		out = append(out, &playwrightElement{p: p, loc: l})
	}
	return out, nil
}

func (p *playwrightPage) Close() error { return nil }

type playwrightElement struct {
	p   *playwrightPage
	loc playwright.Locator
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	s, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: millis(ctx, e.p.s.timeout)})
	if err != nil {
		return "", classify(ctx, e.p.url, err, ErrTimeout)
	}
	return s, nil
}

func (e *playwrightElement) HTML(ctx context.Context) (string, error) {
	s, err := e.loc.InnerHTML(playwright.LocatorInnerHTMLOptions{Timeout: millis(ctx, e.p.s.timeout)})
	if err != nil {
		return "", classify(ctx, e.p.url, err, ErrTimeout)
	}
	return s, nil
}

// Attribute treats an empty value as absent; playwright does not
// distinguish the two.
func (e *playwrightElement) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: millis(ctx, e.p.s.timeout)})
	if err != nil {
		return "", classify(ctx, e.p.url, err, ErrTimeout)
	}
	if v == "" {
		return "", Wrap(ErrNotFound, e.p.url, fmt.Errorf("attribute %q", name))
	}
	return v, nil
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := e.loc.Click(playwright.LocatorClickOptions{Timeout: millis(ctx, e.p.s.timeout)}); err != nil {
		return classify(ctx, e.p.url, err, ErrTimeout)
	}
	return nil
}

func (e *playwrightElement) FindOne(ctx context.Context, sel string) (Element, error) {
	return first(e.FindAll(ctx, sel))
}

func (e *playwrightElement) FindAll(ctx context.Context, sel string) ([]Element, error) {
	return e.p.wrap(ctx, e.loc.Locator(sel))
}
