package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/xerrors"
)

type PlaywrightConfig struct {
	Headless                  bool
	Install                   bool
	Args                      []string
	ChromeDevtoolsProtocolURL string
}

func DefaultPlaywrightConfig() PlaywrightConfig {
	return PlaywrightConfig{
		Headless: true,
		Install:  false,
		// containers usually run without the user namespaces chromium's sandbox needs
		Args: []string{"--no-sandbox", "--disable-setuid-sandbox"},
	}
}

type playwrightLauncher struct {
	config PlaywrightConfig
}

func NewPlaywrightLauncher(config PlaywrightConfig) Launcher {
	return &playwrightLauncher{
		config: config,
	}
}

func (l *playwrightLauncher) Launch(ctx context.Context) (Browser, error) {
	if l.config.Install {
		if err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{"chromium"},
		}); err != nil {
			return nil, xerrors.Errorf("failed to install playwright browsers: %w", err)
		}
	}

	p, err := playwright.Run()
	if err != nil {
		return nil, xerrors.Errorf("failed to start playwright: %w", err)
	}

	var browser playwright.Browser
	if l.config.ChromeDevtoolsProtocolURL == "" {
		browser, err = p.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.config.Headless),
			Args:     l.config.Args,
		})
		if err != nil {
			_ = p.Stop()
			return nil, xerrors.Errorf("failed to launch browser: %w", err)
		}
	} else {
		browser, err = p.Chromium.ConnectOverCDP(l.config.ChromeDevtoolsProtocolURL)
		if err != nil {
			_ = p.Stop()
			return nil, xerrors.Errorf("failed to connect to browser via CDP at %s: %w", l.config.ChromeDevtoolsProtocolURL, err)
		}
	}

	return &playwrightBrowser{
		playwright: p,
		browser:    browser,
	}, nil
}

type playwrightBrowser struct {
	playwright *playwright.Playwright
	browser    playwright.Browser
}

func (b *playwrightBrowser) NewContext(options ContextOptions) (BrowsingContext, error) {
	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  options.ViewportWidth,
			Height: options.ViewportHeight,
		},
		IgnoreHttpsErrors: playwright.Bool(options.IgnoreHTTPSErrors),
	}
	if len(options.ExtraHTTPHeaders) > 0 {
		contextOptions.ExtraHttpHeaders = options.ExtraHTTPHeaders
	}
	if options.HTTPCredentials != nil {
		contextOptions.HttpCredentials = &playwright.HttpCredentials{
			Username: options.HTTPCredentials.Username,
			Password: options.HTTPCredentials.Password,
		}
	}

	c, err := b.browser.NewContext(contextOptions)
	if err != nil {
		return nil, xerrors.Errorf("failed to create browser context: %w", err)
	}
	return &playwrightContext{context: c}, nil
}

func (b *playwrightBrowser) IsConnected() bool {
	return b.browser.IsConnected()
}

func (b *playwrightBrowser) Close() error {
	closeErr := b.browser.Close()
	stopErr := b.playwright.Stop()
	if closeErr != nil {
		return xerrors.Errorf("failed to close browser: %w", closeErr)
	}
	if stopErr != nil {
		return xerrors.Errorf("failed to stop playwright: %w", stopErr)
	}
	return nil
}

type playwrightContext struct {
	context playwright.BrowserContext
}

func (c *playwrightContext) NewPage() (Page, error) {
	page, err := c.context.NewPage()
	if err != nil {
		return nil, xerrors.Errorf("failed to create new page: %w", err)
	}
	return &playwrightPage{page: page}, nil
}

func (c *playwrightContext) Close() error {
	return c.context.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) (*int, error) {
	response, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("failed to navigate to %s", url), err)
	}
	if response == nil {
		return nil, nil
	}
	status := response.Status()
	return &status, nil
}

func (p *playwrightPage) WaitForLoadState(state LoadState, timeout time.Duration) error {
	var s *playwright.LoadState
	switch state {
	case LoadStateLoad:
		s = playwright.LoadStateLoad
	case LoadStateDOMContentLoaded:
		s = playwright.LoadStateDomcontentloaded
	default:
		s = playwright.LoadStateNetworkidle
	}
	if err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   s,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return classify(fmt.Sprintf("failed to wait for %s", state), err)
	}
	return nil
}

func (p *playwrightPage) WaitForSelector(selector string, timeout time.Duration) error {
	if err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return classify(fmt.Sprintf("failed to wait for selector %q", selector), err)
	}
	return nil
}

func (p *playwrightPage) Screenshot(fullPage bool) ([]byte, error) {
	b, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, classify("failed to take screenshot", err)
	}
	return b, nil
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

// classify maps playwright timeouts onto ErrTimeout so callers need not import playwright.
func classify(message string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, message, err)
	}
	return xerrors.Errorf("%s: %w", message, err)
}
