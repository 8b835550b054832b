package browser

import "github.com/entrhq/surf/pkg/types"

// Usage is the token/cost accounting an execution history may carry.
// TotalCost is nil when the driver never computed a monetary figure; that
// absence is meaningful and must not be collapsed to zero.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    *float64
}

// History is the queryable record of one agent run. Basic accessors never
// fail; the heavier extractions return errors because they depend on
// optional driver features that older or degraded execution paths lack.
// Callers are expected to treat those errors as "field absent", not as a
// task failure.
type History interface {
	FinalResult() string
	IsDone() bool

	// IsSuccessful is tri-state: ok=false means the agent never made an
	// explicit success determination and the caller must derive one.
	IsSuccessful() (value bool, ok bool)

	HasErrors() bool
	Errors() []string
	URLs() []string
	Steps() int

	// Duration is wall-clock seconds of agent execution.
	Duration() float64

	Usage() (*Usage, error)
	ExtractedContent() ([]string, error)
	ModelThoughts() ([]types.ModelStep, error)

	// Judgement returns nil, nil when no judge evaluated the run.
	Judgement() (*types.Judgement, error)
}
