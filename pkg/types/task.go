// Package types defines the request and report shapes shared across the
// surf service: the inbound task specification, the aggregated execution
// report, and the cancellation response.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Request field bounds. Violations are caller errors rejected at acceptance.
const (
	MinSteps = 1
	MaxSteps = 500

	MinTaskTimeout = 30
	MaxTaskTimeout = 1800

	MinCallTimeout = 30
	MaxCallTimeout = 600

	MinWindowWidth  = 800
	MaxWindowWidth  = 3840
	MinWindowHeight = 600
	MaxWindowHeight = 2160
)

// TaskRequest describes one browser automation task. It is immutable once
// accepted; callers that omit optional fields get the defaults applied by
// ApplyDefaults.
type TaskRequest struct {
	// Task is the natural-language description of what the agent should do.
	Task   string `json:"task"`
	TaskID string `json:"task_id,omitempty"`

	// LLM selection. Provider names: openai, gemini, anthropic, browseruse.
	LLMProvider string `json:"llm_provider,omitempty"`
	LLMModel    string `json:"llm_model,omitempty"`

	// Optional smaller/faster model dedicated to page content extraction.
	PageExtractionLLMProvider string `json:"page_extraction_llm_provider,omitempty"`
	PageExtractionLLMModel    string `json:"page_extraction_llm_model,omitempty"`

	// Agent behavior.
	UseVision     string `json:"use_vision,omitempty"` // "auto", "true", or "false"
	MaxSteps      int    `json:"max_steps,omitempty"`
	GenerateGIF   bool   `json:"generate_gif,omitempty"`
	CalculateCost *bool  `json:"calculate_cost,omitempty"`
	DebugMode     bool   `json:"debug_mode,omitempty"`

	// Timeouts in seconds. LLMTimeout and StepTimeout must each stay below
	// Timeout; the overall deadline always wins.
	Timeout     int `json:"timeout,omitempty"`
	LLMTimeout  int `json:"llm_timeout,omitempty"`
	StepTimeout int `json:"step_timeout,omitempty"`

	// Browser settings.
	Headless     bool `json:"headless,omitempty"`
	WindowWidth  int  `json:"window_width,omitempty"`
	WindowHeight int  `json:"window_height,omitempty"`

	// SaveConversation persists the full agent conversation to disk and
	// reports its path in the response.
	SaveConversation bool `json:"save_conversation,omitempty"`

	// CustomerID namespaces session state and downloads. Zero means the
	// shared default namespace.
	CustomerID int `json:"customer_id,omitempty"`

	// SessionEnabled preserves cookies, auth tokens and storage across
	// tasks under the same customer.
	SessionEnabled *bool `json:"session_enabled,omitempty"`
}

// ApplyDefaults fills unset fields with the service defaults. It must be
// called before Validate so that omitted optional fields pass range checks.
func (r *TaskRequest) ApplyDefaults() {
	if r.LLMProvider == "" {
		r.LLMProvider = "gemini"
	}
	if r.UseVision == "" {
		r.UseVision = "auto"
	}
	if r.MaxSteps == 0 {
		r.MaxSteps = 100
	}
	if r.Timeout == 0 {
		r.Timeout = 900
	}
	if r.LLMTimeout == 0 {
		r.LLMTimeout = 120
	}
	if r.StepTimeout == 0 {
		r.StepTimeout = 120
	}
	if r.WindowWidth == 0 {
		r.WindowWidth = 1920
	}
	if r.WindowHeight == 0 {
		r.WindowHeight = 1080
	}
	if r.CalculateCost == nil {
		v := true
		r.CalculateCost = &v
	}
	if r.SessionEnabled == nil {
		v := true
		r.SessionEnabled = &v
	}
}

// Validate rejects malformed requests before any execution state is created.
func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Task) == "" {
		return fmt.Errorf("task description is required")
	}
	if r.MaxSteps < MinSteps || r.MaxSteps > MaxSteps {
		return fmt.Errorf("max_steps must be between %d and %d, got %d", MinSteps, MaxSteps, r.MaxSteps)
	}
	if r.Timeout < MinTaskTimeout || r.Timeout > MaxTaskTimeout {
		return fmt.Errorf("timeout must be between %d and %d seconds, got %d", MinTaskTimeout, MaxTaskTimeout, r.Timeout)
	}
	if r.LLMTimeout < MinCallTimeout || r.LLMTimeout > MaxCallTimeout {
		return fmt.Errorf("llm_timeout must be between %d and %d seconds, got %d", MinCallTimeout, MaxCallTimeout, r.LLMTimeout)
	}
	if r.StepTimeout < MinCallTimeout || r.StepTimeout > MaxCallTimeout {
		return fmt.Errorf("step_timeout must be between %d and %d seconds, got %d", MinCallTimeout, MaxCallTimeout, r.StepTimeout)
	}
	if r.LLMTimeout >= r.Timeout {
		return fmt.Errorf("llm_timeout (%d) must be below the overall timeout (%d)", r.LLMTimeout, r.Timeout)
	}
	if r.StepTimeout >= r.Timeout {
		return fmt.Errorf("step_timeout (%d) must be below the overall timeout (%d)", r.StepTimeout, r.Timeout)
	}
	if r.WindowWidth < MinWindowWidth || r.WindowWidth > MaxWindowWidth {
		return fmt.Errorf("window_width must be between %d and %d, got %d", MinWindowWidth, MaxWindowWidth, r.WindowWidth)
	}
	if r.WindowHeight < MinWindowHeight || r.WindowHeight > MaxWindowHeight {
		return fmt.Errorf("window_height must be between %d and %d, got %d", MinWindowHeight, MaxWindowHeight, r.WindowHeight)
	}
	switch strings.ToLower(r.UseVision) {
	case "auto", "true", "false":
	default:
		return fmt.Errorf("use_vision must be \"auto\", \"true\" or \"false\", got %q", r.UseVision)
	}
	if r.CustomerID < 0 {
		return fmt.Errorf("customer_id must not be negative, got %d", r.CustomerID)
	}
	return nil
}

// TimeoutDuration returns the overall task deadline as a duration.
func (r *TaskRequest) TimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}

// CostEnabled reports whether LLM cost calculation was requested.
func (r *TaskRequest) CostEnabled() bool {
	return r.CalculateCost != nil && *r.CalculateCost
}

// SessionPersistence reports whether session state should be restored and
// exported for this task.
func (r *TaskRequest) SessionPersistence() bool {
	return r.SessionEnabled != nil && *r.SessionEnabled
}

// VisionMode normalizes UseVision to one of "auto", "true" or "false".
// Unrecognized values fall back to "auto".
func (r *TaskRequest) VisionMode() string {
	switch strings.ToLower(r.UseVision) {
	case "true":
		return "true"
	case "false":
		return "false"
	default:
		return "auto"
	}
}
