package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/types"
)

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// DirectAgent is the built-in agent: it visits every URL named in the task
// description and extracts each page's title and text. It makes no model
// calls and exists so the service runs usefully without an external
// planner attached; deployments with a full planner replace it via the
// orchestrator's agent factory.
type DirectAgent struct {
	driver      browser.Driver
	task        string
	stepTimeout time.Duration
	partialSink func(string)
}

// Options configures a DirectAgent.
type Options struct {
	Driver      browser.Driver
	Task        string
	StepTimeout time.Duration
	PartialSink func(string)
}

// NewDirect creates the built-in agent.
func NewDirect(opts Options) *DirectAgent {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 30 * time.Second
	}
	return &DirectAgent{
		driver:      opts.Driver,
		task:        opts.Task,
		stepTimeout: opts.StepTimeout,
		partialSink: opts.PartialSink,
	}
}

// Run visits each URL found in the task, one step per URL, respecting
// maxSteps and the context deadline. The returned history is always
// non-nil, even when every step failed.
func (a *DirectAgent) Run(ctx context.Context, maxSteps int) (browser.History, error) {
	start := time.Now()
	record := NewRecord()

	targets := urlPattern.FindAllString(a.task, -1)
	if len(targets) == 0 {
		record.AddError("no target URL found in task; a planner-backed agent is required for open-ended tasks")
		record.Finish("", false, nil, time.Since(start).Seconds())
		return record, nil
	}
	if len(targets) > maxSteps {
		targets = targets[:maxSteps]
	}

	var results []string
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			record.AddError(fmt.Sprintf("run aborted: %v", err))
			break
		}

		record.AddThought(types.ModelStep{
			Step:    i + 1,
			Thought: fmt.Sprintf("navigate to %s and extract page content", target),
			Action:  "navigate",
		})

		title, err := a.visit(ctx, target)
		if err != nil {
			record.AddError(fmt.Sprintf("step %d (%s): %v", i+1, target, err))
			record.AddStep("")
			continue
		}

		record.AddStep(target)
		record.AddContent(title)
		results = append(results, fmt.Sprintf("%s: %s", target, title))
		if a.partialSink != nil {
			a.partialSink(fmt.Sprintf("visited %d/%d pages, last: %s", i+1, len(targets), target))
		}
	}

	done := len(results) == len(targets)
	record.Finish(strings.Join(results, "\n"), done, nil, time.Since(start).Seconds())
	return record, nil
}

// visit navigates the current page to target and returns the page title.
// Navigation goes through script evaluation because the driver boundary
// deliberately exposes no direct navigation call.
func (a *DirectAgent) visit(ctx context.Context, target string) (string, error) {
	page, err := a.driver.CurrentPage()
	if err != nil {
		return "", err
	}

	script := fmt.Sprintf("window.location.assign(%q)", target)
	if _, err := page.Evaluate(script); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	// Poll until the document settles or the step deadline passes.
	deadline := time.Now().Add(a.stepTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		state, err := page.Evaluate("document.readyState")
		if err == nil {
			if s, ok := state.(string); ok && s == "complete" && strings.HasPrefix(page.URL(), strings.SplitN(target, "#", 2)[0]) {
				break
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("page load timed out after %s", a.stepTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	title, err := page.Evaluate("document.title")
	if err != nil {
		return "", fmt.Errorf("title extraction failed: %w", err)
	}
	if s, ok := title.(string); ok {
		return s, nil
	}
	return "", nil
}
