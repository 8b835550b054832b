// Package browser defines the boundary to the external browser automation
// driver and agent, plus a Playwright-backed driver implementation.
//
// The agent's planning loop (deciding what to do on a page) lives outside
// this service; everything here is lifecycle, page scripting, and state
// export — the operations the task orchestrator needs to supervise a run
// and persist session state.
package browser

import "context"

// Page is a live page in the running browser session.
type Page interface {
	// Evaluate runs a JavaScript expression in the page context and
	// returns its result.
	Evaluate(script string) (interface{}, error)

	// URL returns the page's current URL.
	URL() string
}

// Driver controls one browser session. A task owns exactly one driver for
// its lifetime; the supervisor's execution wrapper is responsible for
// calling Stop on every exit path, because the session is deliberately
// kept alive past the agent's run to allow post-hoc state export.
type Driver interface {
	// Start launches the browser and establishes the control channel.
	// Init scripts only take effect when added after Start and before
	// navigation begins.
	Start(ctx context.Context) error

	// Stop tears the session down. Safe to call more than once.
	Stop() error

	// CurrentPage returns the most recently active page, or an error when
	// the session has no page.
	CurrentPage() (Page, error)

	// AddInitScript registers a script evaluated in every new page before
	// any of the page's own scripts run.
	AddInitScript(script string) error

	// ExportStorageState writes the driver's cookie/local-storage export
	// to path. The session must still be open; drivers cannot export
	// state from a closed session.
	ExportStorageState(path string) error
}

// Agent runs the external planning loop against a driver and returns the
// execution history. Construction is a collaborator concern; the
// orchestrator only invokes Run.
type Agent interface {
	Run(ctx context.Context, maxSteps int) (History, error)
}
