package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/neboloop/wikirace/internal/logging"
)

// chromedpDriver drives Chrome over the DevTools Protocol.
type chromedpDriver struct {
	mu          sync.Mutex
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	timeout     time.Duration
	closed      bool
}

func openChromedp(ctx context.Context, cfg Config) (Driver, error) {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc

	if cfg.CDPURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), cfg.CDPURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if cfg.NoSandbox {
			opts = append(opts, chromedp.NoSandbox)
		}
		if cfg.ExecutablePath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecutablePath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, cancelTab := chromedp.NewContext(allocCtx)
	d := &chromedpDriver{
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		timeout:     cfg.Timeout,
	}

	// First Run starts the browser.
	runCtx, cancel := d.opCtx(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	logging.Infof("[Browser] chromedp session ready (headless=%v)", cfg.Headless)
	return d, nil
}

// opCtx bounds one operation by the driver timeout and the caller's ctx.
func (d *chromedpDriver) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(d.browserCtx, d.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (d *chromedpDriver) GoTo(ctx context.Context, locator string) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Page{}, fmt.Errorf("page is closed")
	}

	runCtx, cancel := d.opCtx(ctx)
	defer cancel()

	var page Page
	err := chromedp.Run(runCtx,
		chromedp.Navigate(locator),
		chromedp.WaitReady("body"),
		readPage(&page),
	)
	if err != nil {
		return Page{}, fmt.Errorf("navigation failed: %w", err)
	}
	return page, nil
}

func (d *chromedpDriver) ActivateLink(ctx context.Context, text string, exact bool) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Page{}, fmt.Errorf("page is closed")
	}

	runCtx, cancel := d.opCtx(ctx)
	defer cancel()

	var before string
	var nodes []*cdp.Node
	err := chromedp.Run(runCtx,
		chromedp.Location(&before),
		chromedp.Nodes(linkXPath(text, exact), &nodes, chromedp.BySearch, chromedp.AtLeast(0)),
	)
	if err != nil {
		return Page{}, fmt.Errorf("locate %q: %w", text, err)
	}
	if len(nodes) == 0 {
		return Page{}, fmt.Errorf("%w: %q", ErrLinkNotFound, text)
	}

	var page Page
	err = chromedp.Run(runCtx,
		chromedp.MouseClickNode(nodes[0]),
		waitLocationChange(before),
		chromedp.WaitReady("body"),
		readPage(&page),
	)
	if err != nil {
		return Page{}, fmt.Errorf("click failed: %w", err)
	}
	return page, nil
}

// Current does not wait for an in-flight action, so a poller can observe
// the page while the navigator is clicking.
func (d *chromedpDriver) Current(ctx context.Context) (Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return Page{}, fmt.Errorf("page is closed")
	}

	runCtx, cancel := d.opCtx(ctx)
	defer cancel()

	var page Page
	if err := chromedp.Run(runCtx, readPage(&page)); err != nil {
		return Page{}, err
	}
	return page, nil
}

func (d *chromedpDriver) Back(ctx context.Context) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Page{}, fmt.Errorf("page is closed")
	}

	runCtx, cancel := d.opCtx(ctx)
	defer cancel()

	var page Page
	err := chromedp.Run(runCtx,
		chromedp.NavigateBack(),
		chromedp.WaitReady("body"),
		readPage(&page),
	)
	if err != nil {
		return Page{}, fmt.Errorf("go back failed: %w", err)
	}
	return page, nil
}

func (d *chromedpDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.cancelTab()
	d.cancelAlloc()
	return nil
}

func readPage(page *Page) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var title string
		if err := chromedp.Location(&page.URL).Do(ctx); err != nil {
			return err
		}
		if err := chromedp.Title(&title).Do(ctx); err != nil {
			return err
		}
		page.Title = trimTitle(title)
		return nil
	})
}

func waitLocationChange(before string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			var now string
			if err := chromedp.Location(&now).Do(ctx); err == nil && now != before {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("click did not navigate: %w", ctx.Err())
			case <-ticker.C:
			}
		}
	})
}

// linkXPath selects article-body anchors by visible text.
func linkXPath(text string, exact bool) string {
	const scope = `//div[@id='mw-content-text']//a`
	text = strings.Join(strings.Fields(text), " ")
	if exact {
		return fmt.Sprintf(`%s[normalize-space(.)=%s]`, scope, xpathLiteral(text))
	}
	const upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const lower = "abcdefghijklmnopqrstuvwxyz"
	return fmt.Sprintf(`%s[contains(translate(normalize-space(.), '%s', '%s'), %s)]`,
		scope, upper, lower, xpathLiteral(strings.ToLower(text)))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var sb strings.Builder
	sb.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(`, "'", `)
		}
		sb.WriteString("'" + p + "'")
	}
	sb.WriteString(")")
	return sb.String()
}
