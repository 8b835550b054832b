package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// DriverOptions configures a Playwright driver launch.
type DriverOptions struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int

	// StorageStatePath, when non-empty, points at an existing driver
	// storage-state export the new context is seeded from.
	StorageStatePath string

	// DownloadsPath is passed to the browser as the preferred download
	// location. The driver does not honor it for all download types;
	// the downloads reconciler compensates after the run.
	DownloadsPath string
}

// PlaywrightDriver implements Driver on top of playwright-go. Each driver
// owns its own Playwright instance so concurrent tasks never share browser
// resources.
type PlaywrightDriver struct {
	opts DriverOptions

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	started bool
	stopped bool
}

// NewPlaywrightDriver creates a driver; the browser is not launched until
// Start.
func NewPlaywrightDriver(opts DriverOptions) *PlaywrightDriver {
	return &PlaywrightDriver{opts: opts}
}

// Start launches chromium and creates the browser context, restoring the
// storage-state file into the context when one was configured.
func (d *PlaywrightDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("driver already started")
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	chromiumSandbox := false
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless:        &d.opts.Headless,
		ChromiumSandbox: &chromiumSandbox,
	}
	if d.opts.DownloadsPath != "" {
		launchOpts.DownloadsPath = &d.opts.DownloadsPath
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	acceptDownloads := true
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  d.opts.WindowWidth,
			Height: d.opts.WindowHeight,
		},
		AcceptDownloads: &acceptDownloads,
	}
	if d.opts.StorageStatePath != "" {
		contextOpts.StorageStatePath = &d.opts.StorageStatePath
	}
	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	d.pw = pw
	d.browser = browser
	d.context = browserCtx
	d.page = page
	d.started = true
	d.stopped = false
	return nil
}

// Stop closes the page, context and browser and stops the Playwright
// instance. Errors during teardown are collected but teardown always runs
// to completion; calling Stop on a stopped driver is a no-op.
func (d *PlaywrightDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return nil
	}
	d.stopped = true

	var errs []error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.context != nil {
		if err := d.context.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors stopping driver: %v", errs)
	}
	return nil
}

// CurrentPage returns the most recently opened page of the context.
func (d *PlaywrightDriver) CurrentPage() (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return nil, fmt.Errorf("driver not running")
	}
	pages := d.context.Pages()
	if len(pages) == 0 {
		return nil, fmt.Errorf("no open pages")
	}
	return &playwrightPage{page: pages[len(pages)-1]}, nil
}

// AddInitScript registers a script to run in every new document before the
// page's own scripts.
func (d *PlaywrightDriver) AddInitScript(script string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return fmt.Errorf("driver not running")
	}
	return d.context.AddInitScript(playwright.Script{Content: &script})
}

// ExportStorageState writes the context's cookies and origin storage to
// path in the driver's own export format. The blob is opaque to surf and
// round-tripped byte for byte.
func (d *PlaywrightDriver) ExportStorageState(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return fmt.Errorf("cannot export storage state: driver not running")
	}
	if _, err := d.context.StorageState(path); err != nil {
		return fmt.Errorf("storage state export failed: %w", err)
	}
	return nil
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Evaluate(script string) (interface{}, error) {
	return p.page.Evaluate(script)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}
