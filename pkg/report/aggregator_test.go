package report

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/logging"
	"github.com/entrhq/surf/pkg/types"
)

// fakeHistory lets each accessor be independently failed or panicked to
// exercise the aggregator's fault containment.
type fakeHistory struct {
	finalResult  string
	done         bool
	successful   *bool
	hasErrors    bool
	errors       []string
	urls         []string
	steps        int
	duration     float64
	usage        *browser.Usage
	usageErr     error
	content      []string
	contentErr   error
	thoughts     []types.ModelStep
	thoughtsErr  error
	judgement    *types.Judgement
	judgementErr error
	panicOn      string
}

func (h *fakeHistory) maybePanic(name string) {
	if h.panicOn == name {
		panic("injected panic in " + name)
	}
}

func (h *fakeHistory) FinalResult() string {
	h.maybePanic("FinalResult")
	return h.finalResult
}

func (h *fakeHistory) IsDone() bool { return h.done }

func (h *fakeHistory) IsSuccessful() (bool, bool) {
	if h.successful == nil {
		return false, false
	}
	return *h.successful, true
}

func (h *fakeHistory) HasErrors() bool   { return h.hasErrors }
func (h *fakeHistory) Errors() []string  { return h.errors }
func (h *fakeHistory) URLs() []string    { return h.urls }
func (h *fakeHistory) Steps() int        { return h.steps }
func (h *fakeHistory) Duration() float64 { return h.duration }

func (h *fakeHistory) Usage() (*browser.Usage, error) {
	h.maybePanic("Usage")
	return h.usage, h.usageErr
}

func (h *fakeHistory) ExtractedContent() ([]string, error) {
	h.maybePanic("ExtractedContent")
	return h.content, h.contentErr
}

func (h *fakeHistory) ModelThoughts() ([]types.ModelStep, error) {
	h.maybePanic("ModelThoughts")
	return h.thoughts, h.thoughtsErr
}

func (h *fakeHistory) Judgement() (*types.Judgement, error) {
	h.maybePanic("Judgement")
	return h.judgement, h.judgementErr
}

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func testAggregator(t *testing.T) *Aggregator {
	t.Helper()
	logging.SetLogDirectory(t.TempDir())
	logger, err := logging.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return NewAggregator(logger)
}

func baseRequest() *types.TaskRequest {
	r := &types.TaskRequest{Task: "visit https://example.com"}
	r.ApplyDefaults()
	return r
}

func TestAssemble_HappyPath(t *testing.T) {
	history := &fakeHistory{
		finalResult: "found the answer",
		done:        true,
		successful:  boolPtr(true),
		urls:        []string{"https://a.test", "https://b.test"},
		steps:       4,
		duration:    12.5,
		usage:       &browser.Usage{InputTokens: 100, OutputTokens: 50, TotalCost: floatPtr(0.0123)},
	}

	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{
		TaskID:          "browser_abc",
		GIFPath:         "/tmp/task.gif",
		DownloadedFiles: []string{"default/task_1/report.pdf"},
		ExecutionTime:   13.0,
	})

	assert.Equal(t, "browser_abc", rep.TaskID)
	assert.True(t, rep.Success)
	assert.Equal(t, "found the answer", rep.Result)
	assert.Equal(t, "https://b.test", rep.FinalURL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, rep.URLsVisited)
	assert.Equal(t, 4, rep.StepsTaken)
	assert.Equal(t, 13.0, rep.ExecutionTime)
	assert.Equal(t, "/tmp/task.gif", rep.GIFPath)
	require.NotNil(t, rep.Cost)
	assert.Equal(t, 0.0123, *rep.Cost)
	assert.Equal(t, "USD", rep.CostCurrency)
	assert.Empty(t, rep.Error)
	assert.Nil(t, rep.Debug)
	assert.Equal(t, []string{"default/task_1/report.pdf"}, rep.DownloadedFiles)
}

func TestAssemble_SuccessDerivation(t *testing.T) {
	tests := []struct {
		name    string
		history *fakeHistory
		want    bool
	}{
		{"explicit success wins", &fakeHistory{successful: boolPtr(true)}, true},
		{"explicit failure wins even when done", &fakeHistory{successful: boolPtr(false), done: true}, false},
		{"done implies success", &fakeHistory{done: true}, true},
		{"result without errors implies success", &fakeHistory{finalResult: "x"}, true},
		{"result with errors does not", &fakeHistory{finalResult: "x", hasErrors: true}, false},
		{"nothing implies failure", &fakeHistory{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := testAggregator(t).Assemble(tt.history, baseRequest(), Inputs{})
			assert.Equal(t, tt.want, rep.Success)
		})
	}
}

func TestAssemble_RateLimitClassification(t *testing.T) {
	history := &fakeHistory{
		errors:    []string{"Error code 429: rate_limit_exceeded, try again later"},
		hasErrors: true,
	}

	req := baseRequest()
	req.LLMProvider = "openai"
	rep := testAggregator(t).Assemble(history, req, Inputs{})

	assert.Contains(t, rep.Error, "rate limit reached")
	assert.Contains(t, rep.Error, "Suggestions:")
	assert.Contains(t, rep.Error, "Original error: Error code 429")
	// Raw text always rides along.
	assert.Equal(t, []string{"Error code 429: rate_limit_exceeded, try again later"}, rep.RawErrors)
}

func TestAssemble_ClassificationIsProviderScoped(t *testing.T) {
	history := &fakeHistory{
		errors:    []string{"rate_limit_exceeded"},
		hasErrors: true,
	}

	req := baseRequest()
	req.LLMProvider = "gemini"
	rep := testAggregator(t).Assemble(history, req, Inputs{})

	// Same marker under a different provider stays unclassified.
	assert.Equal(t, "rate_limit_exceeded", rep.Error)
	assert.Equal(t, []string{"rate_limit_exceeded"}, rep.RawErrors)
}

func TestAssemble_EmptyJSONClassification(t *testing.T) {
	history := &fakeHistory{
		errors:    []string{"ValidationError: Invalid JSON: EOF while parsing a value at line 1"},
		hasErrors: true,
	}

	req := baseRequest()
	req.LLMProvider = "openai"
	rep := testAggregator(t).Assemble(history, req, Inputs{})

	assert.Contains(t, rep.Error, "empty or malformed response")
}

func TestAssemble_JudgeVerdict(t *testing.T) {
	history := &fakeHistory{
		judgement: &types.Judgement{
			Verdict:        false,
			Reasoning:      "form was never submitted",
			FailureReason:  "submit button not found",
			ReachedCaptcha: true,
		},
	}

	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})

	assert.Contains(t, rep.JudgeVerdict, "Judge Verdict: FAIL")
	assert.Contains(t, rep.JudgeVerdict, "Reasoning: form was never submitted")
	assert.Contains(t, rep.JudgeVerdict, "Failure Reason: submit button not found")
	assert.Contains(t, rep.JudgeVerdict, "Encountered CAPTCHA")
	assert.NotContains(t, rep.JudgeVerdict, "impossible")
}

func TestAssemble_JudgeVerdictPass(t *testing.T) {
	history := &fakeHistory{judgement: &types.Judgement{Verdict: true}}
	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})
	assert.Equal(t, "Judge Verdict: PASS", rep.JudgeVerdict)
}

func TestAssemble_JudgeFailureDoesNotBlockOtherFields(t *testing.T) {
	history := &fakeHistory{
		finalResult:  "partial data",
		done:         true,
		urls:         []string{"https://a.test"},
		steps:        2,
		judgementErr: fmt.Errorf("judgement unsupported on this execution path"),
	}

	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})

	assert.Empty(t, rep.JudgeVerdict)
	assert.Equal(t, "partial data", rep.Result)
	assert.Equal(t, 2, rep.StepsTaken)
	assert.True(t, rep.Success)
}

func TestAssemble_JudgePanicIsContained(t *testing.T) {
	history := &fakeHistory{
		done:    true,
		steps:   1,
		panicOn: "Judgement",
	}

	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})
	assert.Empty(t, rep.JudgeVerdict)
	assert.Equal(t, 1, rep.StepsTaken)
}

func TestAssemble_CostAbsentIsNotZero(t *testing.T) {
	history := &fakeHistory{steps: 7, usage: &browser.Usage{InputTokens: 10}}

	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})

	assert.Nil(t, rep.Cost)
	assert.Equal(t, 7, rep.LLMCalls)
	assert.Empty(t, rep.CostCurrency)
}

func TestAssemble_CostUsageFailureDegrades(t *testing.T) {
	history := &fakeHistory{steps: 3, usageErr: fmt.Errorf("usage unavailable")}

	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})

	assert.Nil(t, rep.Cost)
	assert.Equal(t, 3, rep.LLMCalls)
}

func TestAssemble_CostDisabled(t *testing.T) {
	history := &fakeHistory{steps: 3, usage: &browser.Usage{TotalCost: floatPtr(1.5)}}

	req := baseRequest()
	disabled := false
	req.CalculateCost = &disabled
	rep := testAggregator(t).Assemble(history, req, Inputs{})

	assert.Nil(t, rep.Cost)
	assert.Zero(t, rep.LLMCalls)
}

func TestAssemble_DebugBundlePresence(t *testing.T) {
	history := &fakeHistory{
		urls:     []string{"https://a.test", "https://b.test"},
		steps:    5,
		duration: 9.0,
		content:  []string{"page one text"},
		thoughts: []types.ModelStep{{Step: 1, Thought: "click the link"}},
	}

	req := baseRequest()
	rep := testAggregator(t).Assemble(history, req, Inputs{})
	assert.Nil(t, rep.Debug, "debug bundle must be entirely absent without debug_mode")

	req.DebugMode = true
	rep = testAggregator(t).Assemble(history, req, Inputs{})
	require.NotNil(t, rep.Debug)
	assert.Equal(t, rep.StepsTaken, rep.Debug.Performance.Steps)
	assert.Equal(t, 2, rep.Debug.Performance.URLsVisited)
	assert.Equal(t, 9.0, rep.Debug.Performance.TotalDuration)
	assert.Equal(t, []string{"page one text"}, rep.Debug.ExtractedContent)
	require.Len(t, rep.Debug.ModelThoughts, 1)
	assert.Equal(t, "click the link", rep.Debug.ModelThoughts[0].Thought)
}

func TestAssemble_DebugExtractionFailuresDegradeToEmpty(t *testing.T) {
	history := &fakeHistory{
		steps:       2,
		contentErr:  fmt.Errorf("content trace lost"),
		thoughtsErr: fmt.Errorf("thoughts trace lost"),
	}

	req := baseRequest()
	req.DebugMode = true
	rep := testAggregator(t).Assemble(history, req, Inputs{})

	require.NotNil(t, rep.Debug)
	assert.Empty(t, rep.Debug.ExtractedContent)
	assert.Empty(t, rep.Debug.ModelThoughts)
	assert.Equal(t, 2, rep.Debug.Performance.Steps)
}

func TestAssemble_EmptyErrorStringsFiltered(t *testing.T) {
	history := &fakeHistory{errors: []string{"", "real error", ""}}
	rep := testAggregator(t).Assemble(history, baseRequest(), Inputs{})
	assert.Equal(t, []string{"real error"}, rep.RawErrors)
	assert.Equal(t, "real error", rep.Error)
}

func TestClassifiers(t *testing.T) {
	assert.True(t, isRateLimitError("You hit the Rate Limit"))
	assert.True(t, isRateLimitError("quota exceeded for project"))
	assert.True(t, isRateLimitError("HTTP 429 Too Many Requests"))
	assert.False(t, isRateLimitError("connection refused"))
	assert.False(t, isRateLimitError(""))

	assert.True(t, isEmptyJSONError("EOF while parsing a string"))
	assert.True(t, isEmptyJSONError("Expecting value: line 1 column 1"))
	assert.True(t, isEmptyJSONError("input_value=''"))
	assert.False(t, isEmptyJSONError("some other failure"))
}
