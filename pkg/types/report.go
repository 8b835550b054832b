package types

// ExecutionReport is the aggregated outcome of one task execution. It is
// produced exactly once per task and not mutated afterwards. Optional
// fields use pointers or omitempty so that absence is distinguishable from
// a zero value; in particular Cost is absent (not 0) when no cost figure
// could be computed.
type ExecutionReport struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`

	Result      string   `json:"result,omitempty"`
	FinalURL    string   `json:"final_url,omitempty"`
	URLsVisited []string `json:"urls_visited"`
	StepsTaken  int      `json:"steps_taken"`

	// ExecutionTime is wall-clock seconds, populated on every outcome
	// including timeouts and failures.
	ExecutionTime float64 `json:"execution_time"`

	GIFPath string `json:"gif_path,omitempty"`

	// Error carries classified guidance for known provider failures, or the
	// raw joined error text otherwise. Raw errors are never discarded.
	Error     string   `json:"error,omitempty"`
	RawErrors []string `json:"raw_errors,omitempty"`

	// JudgeVerdict is a human-readable evaluation of the execution, present
	// only when the history carried a judgement.
	JudgeVerdict string `json:"judge_verdict,omitempty"`

	// PartialResult is the state snapshot captured before cancellation or
	// timeout; empty on completed runs.
	PartialResult string `json:"partial_result,omitempty"`

	Cost         *float64 `json:"cost,omitempty"`
	CostCurrency string   `json:"cost_currency,omitempty"`
	LLMCalls     int      `json:"llm_calls"`

	// EstimatedPromptTokens is a local token-count estimate reported only
	// on the degraded cost path, so callers can price usage out-of-band.
	EstimatedPromptTokens int `json:"estimated_prompt_tokens,omitempty"`

	Debug *DebugBundle `json:"debug_data,omitempty"`

	ConversationPath string   `json:"conversation_path,omitempty"`
	DownloadedFiles  []string `json:"downloaded_files"`
}

// DebugBundle captures the verbose execution trace returned when a task
// runs with debug_mode. It is entirely absent from reports otherwise.
type DebugBundle struct {
	ExtractedContent []string      `json:"extracted_content"`
	ModelThoughts    []ModelStep   `json:"model_thoughts"`
	Performance      PerfSummary   `json:"performance"`
}

// ModelStep records one step of the model's reasoning trace.
type ModelStep struct {
	Step      int    `json:"step"`
	Thought   string `json:"thought"`
	Action    string `json:"action,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// PerfSummary is a compact performance digest included in the debug bundle.
type PerfSummary struct {
	TotalDuration float64 `json:"total_duration"`
	Steps         int     `json:"steps"`
	URLsVisited   int     `json:"urls_visited"`
	HasErrors     bool    `json:"has_errors"`
}

// Judgement is the optional pass/fail evaluation an external judge attaches
// to an execution history.
type Judgement struct {
	Verdict        bool   `json:"verdict"`
	Reasoning      string `json:"reasoning,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	ImpossibleTask bool   `json:"impossible_task,omitempty"`
	ReachedCaptcha bool   `json:"reached_captcha,omitempty"`
}

// CancelResponse is returned by the cancellation endpoint. Cancelling an
// unknown or already-terminal task reports success=false with an
// explanatory message rather than an HTTP error.
type CancelResponse struct {
	Success       bool   `json:"success"`
	TaskID        string `json:"task_id"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	PartialResult string `json:"partial_result,omitempty"`
}
