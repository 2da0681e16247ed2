package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/neboloop/wikirace/internal/logging"
)

var (
	// Playwright instance (singleton)
	pwOnce     sync.Once
	pwInstance *playwright.Playwright
	pwErr      error
)

// getPlaywright returns the singleton Playwright instance.
func getPlaywright(install bool) (*playwright.Playwright, error) {
	pwOnce.Do(func() {
		opts := &playwright.RunOptions{Browsers: []string{"chromium"}}
		if install {
			if err := playwright.Install(opts); err != nil {
				pwErr = fmt.Errorf("failed to install playwright browsers: %w", err)
				return
			}
		}

		pw, err := playwright.Run(opts)
		if err != nil {
			pwErr = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		pwInstance = pw
	})

	return pwInstance, pwErr
}

type playwrightDriver struct {
	mu      sync.Mutex
	browser playwright.Browser
	page    playwright.Page
	timeout time.Duration
	owned   bool // launched by us, so Close shuts it down
	closed  bool
}

func openPlaywright(ctx context.Context, cfg Config) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := getPlaywright(cfg.InstallDeps)
	if err != nil {
		return nil, err
	}

	d := &playwrightDriver{timeout: cfg.Timeout}

	if cfg.CDPURL != "" {
		d.browser, err = pw.Chromium.ConnectOverCDP(cfg.CDPURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to CDP at %s: %w", cfg.CDPURL, err)
		}
	} else {
		opts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(cfg.Headless),
		}
		if cfg.ExecutablePath != "" {
			opts.ExecutablePath = playwright.String(cfg.ExecutablePath)
		}
		if cfg.NoSandbox {
			opts.Args = []string{"--no-sandbox", "--disable-dev-shm-usage"}
		}
		d.browser, err = pw.Chromium.Launch(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to launch chromium: %w", err)
		}
		d.owned = true
	}

	d.page, err = d.browser.NewPage()
	if err != nil {
		if d.owned {
			_ = d.browser.Close()
		}
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	logging.Infof("[Browser] playwright session ready (headless=%v)", cfg.Headless)
	return d, nil
}

func (d *playwrightDriver) timeoutMs() *float64 {
	return playwright.Float(float64(d.timeout.Milliseconds()))
}

func (d *playwrightDriver) GoTo(ctx context.Context, locator string) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return Page{}, err
	}

	_, err := d.page.Goto(locator, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   d.timeoutMs(),
	})
	if err != nil {
		return Page{}, fmt.Errorf("navigation failed: %w", err)
	}
	return d.current()
}

func (d *playwrightDriver) ActivateLink(ctx context.Context, text string, exact bool) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return Page{}, err
	}

	link := d.page.Locator(LinkScope+" a").GetByText(text, playwright.LocatorGetByTextOptions{
		Exact: playwright.Bool(exact),
	}).First()

	n, err := link.Count()
	if err != nil {
		return Page{}, fmt.Errorf("locate %q: %w", text, err)
	}
	if n == 0 {
		return Page{}, fmt.Errorf("%w: %q", ErrLinkNotFound, text)
	}

	before := d.page.URL()
	if err := link.Click(playwright.LocatorClickOptions{Timeout: d.timeoutMs()}); err != nil {
		return Page{}, fmt.Errorf("click failed: %w", err)
	}
	err = d.page.WaitForURL(func(u string) bool { return u != before }, playwright.PageWaitForURLOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   d.timeoutMs(),
	})
	if err != nil {
		return Page{}, fmt.Errorf("click did not navigate: %w", err)
	}
	return d.current()
}

// Current does not wait for an in-flight action, so a poller can observe
// the page while the navigator is clicking.
func (d *playwrightDriver) Current(ctx context.Context) (Page, error) {
	d.mu.Lock()
	err := d.check(ctx)
	d.mu.Unlock()
	if err != nil {
		return Page{}, err
	}
	return d.current()
}

func (d *playwrightDriver) Back(ctx context.Context) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx); err != nil {
		return Page{}, err
	}

	_, err := d.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   d.timeoutMs(),
	})
	if err != nil {
		return Page{}, fmt.Errorf("go back failed: %w", err)
	}
	return d.current()
}

func (d *playwrightDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	_ = d.page.Close()
	// Don't close a browser we only attached to
	if d.owned {
		return d.browser.Close()
	}
	return nil
}

func (d *playwrightDriver) check(ctx context.Context) error {
	if d.closed {
		return fmt.Errorf("page is closed")
	}
	return ctx.Err()
}

func (d *playwrightDriver) current() (Page, error) {
	title, err := d.page.Title()
	if err != nil {
		return Page{}, fmt.Errorf("read title: %w", err)
	}
	return Page{URL: d.page.URL(), Title: trimTitle(title)}, nil
}
