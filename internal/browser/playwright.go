package browser

import (
	"fmt"
	"log"
	"time"

	pw "github.com/playwright-community/playwright-go"
)

// Options configures how browsers are launched.
type Options struct {
	Headless       bool
	ExecutablePath string
	Args           []string
	ViewportWidth  int
	ViewportHeight int
	InstallDriver  bool
}

// Playwright launches Chromium through a shared playwright driver. The
// driver is started once; each Launch starts its own browser process.
type Playwright struct {
	opts Options
	pw   *pw.Playwright
}

// NewPlaywright installs (if requested) and starts the playwright driver.
func NewPlaywright(opts Options) (*Playwright, error) {
	if opts.InstallDriver {
		log.Println("Installing playwright driver and chromium...")
		if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			log.Printf("Warning: playwright install failed: %v (continuing anyway)", err)
		}
	}

	instance, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return &Playwright{opts: opts, pw: instance}, nil
}

// Launch starts a new headless Chromium with a single page sized to the
// configured viewport.
func (p *Playwright) Launch() (Session, error) {
	launchOptions := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(p.opts.Headless),
		Args:     p.opts.Args,
	}
	if p.opts.ExecutablePath != "" {
		launchOptions.ExecutablePath = pw.String(p.opts.ExecutablePath)
	}

	b, err := p.pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := b.NewContext(pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: p.opts.ViewportWidth, Height: p.opts.ViewportHeight},
	})
	if err != nil {
		logClose("browser", func() error { return b.Close() })
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		logClose("browser", func() error { return b.Close() })
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &session{browser: b, page: &pwPage{p: page}}, nil
}

// logClose runs closeFn and logs a failure, for cleanup on paths that are
// already returning another error.
func logClose(what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Printf("Warning: failed to close %s: %v", what, err)
	}
}

// Close stops the playwright driver.
func (p *Playwright) Close() error {
	return p.pw.Stop()
}

type session struct {
	browser pw.Browser
	page    *pwPage
}

func (s *session) Page() Page { return s.page }

func (s *session) Close() error {
	return s.browser.Close()
}

// pwPage adapts a playwright page to the Page interface.
type pwPage struct {
	p pw.Page
}

func ms(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return pw.Float(float64(d.Milliseconds()))
}

func (pg *pwPage) Goto(url string, timeout time.Duration) error {
	_, err := pg.p.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateNetworkidle,
		Timeout:   ms(timeout),
	})
	return err
}

func (pg *pwPage) Click(selector string, timeout time.Duration) error {
	return pg.p.Locator(selector).First().Click(pw.LocatorClickOptions{Timeout: ms(timeout)})
}

// exactText makes text lookups match the whole, case-sensitive text, so
// "Risk Category II" does not also hit "Risk Category III".
var exactText = pw.PageGetByTextOptions{Exact: pw.Bool(true)}

func (pg *pwPage) ClickText(text string, timeout time.Duration) error {
	return pg.p.GetByText(text, exactText).First().Click(pw.LocatorClickOptions{Timeout: ms(timeout)})
}

func (pg *pwPage) Fill(selector, value string, timeout time.Duration) error {
	loc := pg.p.Locator(selector).First()
	if err := loc.WaitFor(pw.LocatorWaitForOptions{State: pw.WaitForSelectorStateVisible, Timeout: ms(timeout)}); err != nil {
		return err
	}
	return loc.Fill(value, pw.LocatorFillOptions{Timeout: ms(timeout)})
}

func (pg *pwPage) Check(selector string, timeout time.Duration) error {
	return pg.p.Locator(selector).First().Check(pw.LocatorCheckOptions{Timeout: ms(timeout)})
}

func (pg *pwPage) SelectOption(selector, label string, timeout time.Duration) error {
	labels := []string{label}
	_, err := pg.p.Locator(selector).First().SelectOption(
		pw.SelectOptionValues{Labels: &labels},
		pw.LocatorSelectOptionOptions{Timeout: ms(timeout)},
	)
	return err
}

func (pg *pwPage) WaitVisible(selector string, timeout time.Duration) error {
	return pg.p.Locator(selector).First().WaitFor(pw.LocatorWaitForOptions{
		State:   pw.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
}

func (pg *pwPage) Press(key string) error {
	return pg.p.Keyboard().Press(key)
}

func (pg *pwPage) Type(text string) error {
	return pg.p.Keyboard().Type(text)
}

func (pg *pwPage) Evaluate(script string, arg any) (any, error) {
	return pg.p.Evaluate(script, arg)
}

const containsTextScript = `marker => !!document.body && document.body.innerText.includes(marker)`

func (pg *pwPage) WaitForText(text string, timeout time.Duration) error {
	_, err := pg.p.WaitForFunction(containsTextScript, text, pw.PageWaitForFunctionOptions{
		Polling: pw.Float(1000),
		Timeout: ms(timeout),
	})
	return err
}

func (pg *pwPage) Wait(d time.Duration) {
	pg.p.WaitForTimeout(float64(d.Milliseconds()))
}

func (pg *pwPage) Content() (string, error) {
	return pg.p.Content()
}

func (pg *pwPage) Screenshot() ([]byte, error) {
	return pg.p.Screenshot(pw.PageScreenshotOptions{FullPage: pw.Bool(true)})
}
