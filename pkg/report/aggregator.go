// Package report turns a raw execution history into the response contract.
//
// Every sub-extraction is independently fault-contained: a history that
// fails (or panics) when queried for one field still yields a report with
// every other field populated. The aggregator's overall contract is
// "always returns a report", even if every optional field is absent.
package report

import (
	"fmt"
	"strings"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/logging"
	"github.com/entrhq/surf/pkg/types"
)

// extraction is the outcome of one fault-contained sub-extraction: either a
// value or a degraded marker carrying the reason the value is absent. This
// keeps "which optional fields are missing and why" explicit instead of
// buried in log output.
type extraction[T any] struct {
	value    T
	degraded bool
	reason   string
}

// capture runs fn with panic containment and converts any failure into a
// degraded extraction.
func capture[T any](fn func() (T, error)) (out extraction[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = extraction[T]{degraded: true, reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	v, err := fn()
	if err != nil {
		return extraction[T]{degraded: true, reason: err.Error()}
	}
	return extraction[T]{value: v}
}

// Aggregator assembles execution reports.
type Aggregator struct {
	logger *logging.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(logger *logging.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Inputs carries the caller-supplied pieces merged into the report
// alongside the history-derived fields.
type Inputs struct {
	TaskID           string
	GIFPath          string
	DownloadedFiles  []string
	ConversationPath string
	ExecutionTime    float64
}

// Assemble builds the final immutable report from the execution history and
// the caller-supplied inputs. No missing sub-extraction ever propagates.
func (a *Aggregator) Assemble(history browser.History, req *types.TaskRequest, in Inputs) *types.ExecutionReport {
	basics := a.extractBasics(history)
	rep := &types.ExecutionReport{
		TaskID:           in.TaskID,
		Result:           basics.finalResult,
		URLsVisited:      basics.urls,
		StepsTaken:       basics.steps,
		ExecutionTime:    in.ExecutionTime,
		GIFPath:          in.GIFPath,
		RawErrors:        basics.errors,
		ConversationPath: in.ConversationPath,
		DownloadedFiles:  in.DownloadedFiles,
	}
	if rep.DownloadedFiles == nil {
		rep.DownloadedFiles = []string{}
	}
	if rep.URLsVisited == nil {
		rep.URLsVisited = []string{}
	}
	if len(basics.urls) > 0 {
		rep.FinalURL = basics.urls[len(basics.urls)-1]
	}

	rep.Success = deriveSuccess(basics)
	rep.Error = a.renderErrors(basics.errors, req.LLMProvider)

	if verdict := a.extractVerdict(history); verdict != "" {
		rep.JudgeVerdict = verdict
	}

	a.applyCost(rep, history, req, basics.steps)

	if req.DebugMode {
		rep.Debug = a.extractDebug(history, basics)
	}

	return rep
}

// basics are the fields pulled directly from the history in one pass.
type basics struct {
	finalResult  string
	isDone       bool
	isSuccessful bool
	successKnown bool
	hasErrors    bool
	urls         []string
	steps        int
	duration     float64
	errors       []string
}

func (a *Aggregator) extractBasics(history browser.History) basics {
	ex := capture(func() (basics, error) {
		value, known := history.IsSuccessful()
		var errs []string
		for _, e := range history.Errors() {
			if e != "" {
				errs = append(errs, e)
			}
		}
		return basics{
			finalResult:  history.FinalResult(),
			isDone:       history.IsDone(),
			isSuccessful: value,
			successKnown: known,
			hasErrors:    history.HasErrors(),
			urls:         history.URLs(),
			steps:        history.Steps(),
			duration:     history.Duration(),
			errors:       errs,
		}, nil
	})
	if ex.degraded {
		a.logger.Warnf("could not extract basic results: %s", ex.reason)
	}
	return ex.value
}

// deriveSuccess applies the success derivation when the agent made no
// explicit determination: done counts, and so does a final result produced
// without errors.
func deriveSuccess(b basics) bool {
	if b.successKnown {
		return b.isSuccessful
	}
	return b.isDone || (b.finalResult != "" && !b.hasErrors)
}

// renderErrors joins the raw error list and substitutes classified guidance
// for known provider failure patterns. Classification augments the raw
// list, which always rides along in the report.
func (a *Aggregator) renderErrors(errors []string, provider string) string {
	if len(errors) == 0 {
		return ""
	}
	joined := strings.Join(errors, "; ")

	if strings.EqualFold(provider, "openai") {
		if anyMatch(errors, isRateLimitError) {
			a.logger.Warnf("openai rate limit detected: %s", truncate(errors[0], 150))
			return formatOpenAIError(joined, errorKindRateLimit)
		}
		if anyMatch(errors, isEmptyJSONError) {
			a.logger.Warnf("openai empty/malformed response detected: %s", truncate(errors[0], 150))
			return formatOpenAIError(joined, errorKindEmptyJSON)
		}
	}
	return joined
}

func (a *Aggregator) extractVerdict(history browser.History) string {
	ex := capture(func() (string, error) {
		j, err := history.Judgement()
		if err != nil {
			return "", err
		}
		if j == nil {
			return "", nil
		}
		return formatJudgeVerdict(j), nil
	})
	if ex.degraded {
		a.logger.Warnf("could not extract judge verdict: %s", ex.reason)
		return ""
	}
	return ex.value
}

func anyMatch(errors []string, match func(string) bool) bool {
	for _, e := range errors {
		if match(e) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
