// Package agent provides the built-in task agent and the concrete
// execution record handed back to the result aggregator.
//
// The planning loop proper — deciding what to do on a page from model
// output — is a pluggable collaborator; the built-in agent only handles
// direct navigation tasks. Richer agents supply their own browser.Agent
// and can reuse Record as their history implementation.
package agent

import (
	"sync"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/types"
)

// Record is a History implementation populated step by step during a run.
// It is safe for concurrent appends, so a run racing a timeout can still
// be read consistently afterwards.
type Record struct {
	mu sync.Mutex

	finalResult string
	done        bool
	successful  *bool
	urls        []string
	steps       int
	duration    float64
	errors      []string

	usage     *browser.Usage
	content   []string
	thoughts  []types.ModelStep
	judgement *types.Judgement
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{}
}

// AddStep records one executed step with its resulting URL.
func (r *Record) AddStep(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
	if url != "" {
		r.urls = append(r.urls, url)
	}
}

// AddError appends a raw error string.
func (r *Record) AddError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

// AddThought appends one reasoning step.
func (r *Record) AddThought(step types.ModelStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thoughts = append(r.thoughts, step)
}

// AddContent appends one extracted content item.
func (r *Record) AddContent(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content = append(r.content, content)
}

// Finish seals the record with the run outcome. successful may be nil when
// the agent made no explicit determination.
func (r *Record) Finish(finalResult string, done bool, successful *bool, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalResult = finalResult
	r.done = done
	r.successful = successful
	r.duration = duration
}

// SetUsage attaches token/cost accounting.
func (r *Record) SetUsage(u *browser.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = u
}

// SetJudgement attaches an external judge evaluation.
func (r *Record) SetJudgement(j *types.Judgement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.judgement = j
}

func (r *Record) FinalResult() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalResult
}

func (r *Record) IsDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Record) IsSuccessful() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.successful == nil {
		return false, false
	}
	return *r.successful, true
}

func (r *Record) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors) > 0
}

func (r *Record) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *Record) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

func (r *Record) Steps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps
}

func (r *Record) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

func (r *Record) Usage() (*browser.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage, nil
}

func (r *Record) ExtractedContent() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.content...), nil
}

func (r *Record) ModelThoughts() ([]types.ModelStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ModelStep(nil), r.thoughts...), nil
}

func (r *Record) Judgement() (*types.Judgement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.judgement, nil
}
