package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/jobsweep/internal/logger"
)

// ChromeFetcher drives a headless Chrome through chromedp. One browser
// process is shared; every session is its own tab.
type ChromeFetcher struct {
	opts Options

	allocCtx    context.Context
	cancelAlloc context.CancelFunc

	once          sync.Once
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	startErr      error
}

// NewChrome creates a chrome fetcher. The browser starts on the first session.
func NewChrome(opts Options) (*ChromeFetcher, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.Stealth {
		allocOpts = append(allocOpts, stealthAllocatorOptions()...)
	}

	path := opts.BrowserPath
	if path == "" {
		path = FindChromePath()
	}
	if path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	logger.Debug("chrome fetcher created",
		"stealth", opts.Stealth,
		"headless", opts.Headless,
		"exec_path", path,
		"timeout", opts.Timeout)

	return &ChromeFetcher{
		opts:        opts,
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
	}, nil
}

func (f *ChromeFetcher) start() error {
	f.once.Do(func() {
		f.browserCtx, f.cancelBrowser = chromedp.NewContext(f.allocCtx,
			chromedp.WithLogf(func(format string, args ...any) {
				logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
			}),
		)
		// An empty Run launches the browser.
		if err := chromedp.Run(f.browserCtx); err != nil {
			f.startErr = err
		}
	})
	return f.startErr
}

// NewSession opens a new tab.
func (f *ChromeFetcher) NewSession(ctx context.Context) (Session, error) {
	if err := f.start(); err != nil {
		return nil, Wrap(ErrFatal, "", fmt.Errorf("failed to start browser: %w", err))
	}
	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, Wrap(ErrFatal, "", fmt.Errorf("failed to open tab: %w", err))
	}
	if f.opts.Stealth {
		if err := chromedp.Run(tabCtx, injectStealthScript()); err != nil {
			logger.Debug("stealth script injection failed", "error", err)
		}
	}
	return &chromeSession{tabCtx: tabCtx, cancel: cancel, timeout: f.opts.Timeout}, nil
}

// Close shuts down the browser.
func (f *ChromeFetcher) Close() error {
	if f.cancelBrowser != nil {
		f.cancelBrowser()
	}
	f.cancelAlloc()
	return nil
}

// Type returns the fetcher type.
func (f *ChromeFetcher) Type() string {
	return ModeChrome
}

type chromeSession struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, url string, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	switch {
	case s.tabCtx.Err() != nil, errors.Is(err, chromedp.ErrInvalidContext):
		return Wrap(ErrFatal, url, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return Wrap(ErrFatal, url, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrTimeout, url, err)
	default:
		return Wrap(ErrTransient, url, err)
	}
}

func (s *chromeSession) Open(ctx context.Context, url string) (Page, error) {
	logger.Debug("chrome navigate", "url", url)
	err := s.run(ctx, url, s.timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			// A page that never became ready is a load failure, not a wait.
			return nil, Wrap(ErrTransient, url, err)
		}
		return nil, err
	}
	return &chromePage{s: s, url: url}, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

type chromePage struct {
	s   *chromeSession
	url string
}

func (p *chromePage) URL() string { return p.url }

func (p *chromePage) WaitFor(ctx context.Context, sel string, timeout time.Duration) error {
	return p.s.run(ctx, p.url, timeout, chromedp.WaitReady(sel, chromedp.ByQuery))
}

func (p *chromePage) FindOne(ctx context.Context, sel string) (Element, error) {
	return first(p.FindAll(ctx, sel))
}

func (p *chromePage) FindAll(ctx context.Context, sel string) ([]Element, error) {
	return p.query(ctx, sel)
}

func (p *chromePage) query(ctx context.Context, sel string, opts ...chromedp.QueryOption) ([]Element, error) {
	var nodes []*cdp.Node
	opts = append(opts, chromedp.ByQueryAll, chromedp.AtLeast(0))
	if err := p.s.run(ctx, p.url, p.s.timeout, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeElement{p: p, node: n})
	}
	return out, nil
}

func (p *chromePage) Close() error { return nil }

type chromeElement struct {
	p    *chromePage
	node *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var s string
	err := e.p.s.run(ctx, e.p.url, e.p.s.timeout, chromedp.Text(e.ids(), &s, chromedp.ByNodeID))
	return s, err
}

func (e *chromeElement) HTML(ctx context.Context) (string, error) {
	var s string
	err := e.p.s.run(ctx, e.p.url, e.p.s.timeout, chromedp.InnerHTML(e.ids(), &s, chromedp.ByNodeID))
	return s, err
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	var (
		v  string
		ok bool
	)
	err := e.p.s.run(ctx, e.p.url, e.p.s.timeout, chromedp.AttributeValue(e.ids(), name, &v, &ok, chromedp.ByNodeID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", Wrap(ErrNotFound, e.p.url, fmt.Errorf("attribute %q", name))
	}
	return v, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.p.s.run(ctx, e.p.url, e.p.s.timeout, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) FindOne(ctx context.Context, sel string) (Element, error) {
	return first(e.FindAll(ctx, sel))
}

func (e *chromeElement) FindAll(ctx context.Context, sel string) ([]Element, error) {
	return e.p.query(ctx, sel, chromedp.FromNode(e.node))
}

func first(els []Element, err error) (Element, error) {
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

// stealthScript hides the most common automation fingerprints.
const stealthScript = `(() => {
    Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
    Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
    Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
    window.chrome = window.chrome || { runtime: {} };
    const query = window.navigator.permissions && window.navigator.permissions.query;
    if (query) {
        window.navigator.permissions.query = (p) =>
            p.name === 'notifications'
                ? Promise.resolve({ state: Notification.permission })
                : query(p);
    }
})();`

func stealthAllocatorOptions() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", "en-US,en"),
	}
}

func injectStealthScript() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}

var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath searches PATH and common install locations for a Chrome
// binary. Returns "" when none is found and lets chromedp use its own lookup.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found - chrome fetch mode may not work")
	return ""
}
