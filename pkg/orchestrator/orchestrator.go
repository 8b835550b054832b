// Package orchestrator composes one task execution end to end: working
// directories, session-state restoration, the external agent run,
// post-run state export, download reconciliation, and report assembly.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/config"
	"github.com/entrhq/surf/pkg/downloads"
	"github.com/entrhq/surf/pkg/llm"
	"github.com/entrhq/surf/pkg/logging"
	"github.com/entrhq/surf/pkg/report"
	"github.com/entrhq/surf/pkg/session"
	"github.com/entrhq/surf/pkg/task"
	"github.com/entrhq/surf/pkg/types"
)

// DriverFactory builds the browser driver for one task. Injected so the
// orchestrator runs against fakes in tests.
type DriverFactory func(opts browser.DriverOptions) browser.Driver

// AgentParams is everything the external agent needs for one run.
type AgentParams struct {
	Task              string
	LLM               llm.Client
	PageExtractionLLM llm.Client
	Driver            browser.Driver
	UseVision         string
	CalculateCost     bool
	LLMTimeout        time.Duration
	StepTimeout       time.Duration

	// AvailableFilePaths restricts agent file writes to the task's
	// download directory.
	AvailableFilePaths []string

	ConversationPath string
	GIFPath          string

	// PartialSink receives state snapshots at step boundaries so a
	// cancelled or timed-out task can still report partial progress.
	PartialSink func(state string)
}

// AgentFactory builds the external planning agent for one run.
type AgentFactory func(params AgentParams) (browser.Agent, error)

// Orchestrator runs tasks. It owns no global state; everything is injected.
type Orchestrator struct {
	cfg        *config.Config
	sessions   *session.Store
	reconciler *downloads.Reconciler
	aggregator *report.Aggregator
	logger     *logging.Logger
	newDriver  DriverFactory
	newAgent   AgentFactory
}

// New creates an orchestrator.
func New(cfg *config.Config, sessions *session.Store, reconciler *downloads.Reconciler, aggregator *report.Aggregator, logger *logging.Logger, newDriver DriverFactory, newAgent AgentFactory) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		sessions:   sessions,
		reconciler: reconciler,
		aggregator: aggregator,
		logger:     logger,
		newDriver:  newDriver,
		newAgent:   newAgent,
	}
}

// Execute runs one task to completion and assembles its report. The driver
// is stopped on every exit path; session-state export happens before the
// stop because drivers cannot export from a closed session. Returned
// errors are genuinely unexpected failures — all best-effort sub-steps
// degrade internally.
func (o *Orchestrator) Execute(ctx context.Context, req *types.TaskRequest, h *task.Handle) (*types.ExecutionReport, error) {
	start := time.Now()
	identity := session.IdentityFor(req.CustomerID)

	mainLLM := llm.New(req.LLMProvider, req.LLMModel)
	var pageLLM llm.Client
	if req.PageExtractionLLMProvider != "" {
		pageLLM = llm.New(req.PageExtractionLLMProvider, req.PageExtractionLLMModel)
	}

	conversationPath, err := o.conversationPath(req, identity)
	if err != nil {
		return nil, err
	}

	downloadDir, taskDirName, err := o.downloadDir(identity)
	if err != nil {
		return nil, err
	}

	driverOpts := browser.DriverOptions{
		Headless:      req.Headless,
		WindowWidth:   req.WindowWidth,
		WindowHeight:  req.WindowHeight,
		DownloadsPath: downloadDir,
	}
	if req.SessionPersistence() {
		if path, ok := o.sessions.StorageStatePath(identity); ok {
			driverOpts.StorageStatePath = path
			o.logger.Infof("loading existing storage state for %s: %s", identity, path)
		} else {
			o.logger.Infof("no storage state for %s yet, starting fresh session", identity)
		}
	} else {
		o.logger.Infof("session persistence disabled, browser starts without state")
	}

	drv := o.newDriver(driverOpts)
	h.BindResource(drv)

	if err := drv.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := drv.Stop(); err != nil {
			o.logger.Warnf("error closing browser: %v", err)
		}
	}()
	o.logger.Infof("browser started for task %s", h.ID)
	h.SetPartialResult("browser session started")

	// Restoration must land between Start and the first navigation or the
	// init script never fires.
	if req.SessionPersistence() {
		o.sessions.RestoreSessionStorage(drv, identity)
	}

	var gifPath string
	if req.GenerateGIF {
		gifPath = filepath.Join(downloadDir, taskDirName+".gif")
	}

	agent, err := o.newAgent(AgentParams{
		Task:               req.Task,
		LLM:                mainLLM,
		PageExtractionLLM:  pageLLM,
		Driver:             drv,
		UseVision:          req.VisionMode(),
		CalculateCost:      req.CostEnabled(),
		LLMTimeout:         time.Duration(req.LLMTimeout) * time.Second,
		StepTimeout:        time.Duration(req.StepTimeout) * time.Second,
		AvailableFilePaths: []string{downloadDir},
		ConversationPath:   conversationPath,
		GIFPath:            gifPath,
		PartialSink:        h.SetPartialResult,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	history, runErr := agent.Run(ctx, req.MaxSteps)

	// Export while the session is still live, even though the agent is
	// done: the driver was kept alive exactly for this.
	if runErr == nil && req.SessionPersistence() {
		o.sessions.ExportStorageState(drv, identity)
		o.sessions.ExportSessionStorage(drv, identity)
	}

	if err := drv.Stop(); err != nil {
		o.logger.Warnf("error closing browser: %v", err)
	} else {
		o.logger.Infof("browser closed for task %s", h.ID)
	}

	if runErr != nil {
		return nil, runErr
	}

	moved := o.reconciler.Reconcile(downloadDir)

	rep := o.aggregator.Assemble(history, req, report.Inputs{
		TaskID:           h.ID,
		GIFPath:          gifPath,
		DownloadedFiles:  moved,
		ConversationPath: conversationPath,
		ExecutionTime:    time.Since(start).Seconds(),
	})
	return rep, nil
}

// conversationPath prepares the conversation file location when requested.
func (o *Orchestrator) conversationPath(req *types.TaskRequest, identity session.Identity) (string, error) {
	if !req.SaveConversation {
		return "", nil
	}
	dir := filepath.Join(o.cfg.ConversationsDir, string(identity))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create conversation directory: %w", err)
	}
	name := fmt.Sprintf("task_%s_%s.json", uuid.New().String()[:8], time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)
	o.logger.Infof("conversation will be saved to %s", path)
	return path, nil
}

// downloadDir creates the per-task download directory under the identity's
// namespace and returns it with its short task directory name.
func (o *Orchestrator) downloadDir(identity session.Identity) (string, string, error) {
	taskDirName := fmt.Sprintf("task_%s", uuid.New().String()[:8])
	dir := filepath.Join(o.cfg.DownloadsDir, string(identity), taskDirName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", "", fmt.Errorf("failed to create download directory: %w", err)
	}
	o.logger.Infof("downloads will be saved to %s", dir)
	return dir, taskDirName, nil
}
