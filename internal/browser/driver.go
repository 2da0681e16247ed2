// Package browser drives a real browser for the agent side of a race.
// Two backends are available: Playwright (default) and chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver types
const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

// ErrLinkNotFound is returned when no link on the page matches the requested text.
var ErrLinkNotFound = errors.New("link not found")

// LinkScope limits link activation to the article body.
const LinkScope = "#mw-content-text"

// Page is the page a driver currently shows.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Driver is one automated browser tab.
type Driver interface {
	// GoTo loads locator.
	GoTo(ctx context.Context, locator string) (Page, error)
	// ActivateLink clicks the first link whose visible text matches text.
	// exact=false matches case-insensitive substrings.
	ActivateLink(ctx context.Context, text string, exact bool) (Page, error)
	// Current reads the loaded page.
	Current(ctx context.Context) (Page, error)
	// Back goes one entry back in history.
	Back(ctx context.Context) (Page, error)
	Close() error
}

// Config configures the automation backend.
type Config struct {
	Driver         string        `yaml:"driver" json:"driver"`
	Headless       bool          `yaml:"headless" json:"headless"`
	NoSandbox      bool          `yaml:"no_sandbox" json:"noSandbox"`
	ExecutablePath string        `yaml:"executable_path" json:"executablePath,omitempty"`
	CDPURL         string        `yaml:"cdp_url" json:"cdpUrl,omitempty"` // attach to a running browser instead of launching one
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	InstallDeps    bool          `yaml:"install" json:"install"` // download Playwright browsers on first use
}

// DefaultConfig returns the default browser configuration.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverPlaywright,
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// Open starts a driver session for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Driver, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	switch strings.ToLower(cfg.Driver) {
	case "", DriverPlaywright:
		return openPlaywright(ctx, cfg)
	case DriverChromedp:
		return openChromedp(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", cfg.Driver)
	}
}

// trimTitle drops the site suffix browsers show in the tab title.
func trimTitle(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.LastIndex(title, " - Wikipedia"); i > 0 {
		return title[:i]
	}
	return title
}
