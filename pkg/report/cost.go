package report

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/types"
)

const costCurrency = "USD"

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// applyCost fills the cost fields. A directly computed usage total is
// reported as-is; when the history carries no cost figure the report keeps
// Cost absent (never zero) and falls back to the step count as the call
// count plus a local token estimate, so callers can price usage
// out-of-band. The degraded path must stay distinguishable from zero cost.
func (a *Aggregator) applyCost(rep *types.ExecutionReport, history browser.History, req *types.TaskRequest, steps int) {
	if !req.CostEnabled() {
		return
	}

	usage := capture(func() (*browser.Usage, error) {
		return history.Usage()
	})
	if usage.degraded {
		a.logger.Warnf("could not extract usage data: %s", usage.reason)
	}

	if usage.value != nil && usage.value.TotalCost != nil {
		cost := *usage.value.TotalCost
		rep.Cost = &cost
		rep.CostCurrency = costCurrency
		rep.LLMCalls = steps
		a.logger.Infof("cost calculated: %.4f %s (input_tokens=%d, output_tokens=%d)",
			cost, costCurrency, usage.value.InputTokens, usage.value.OutputTokens)
		return
	}

	a.logger.Warnf("no cost figure available in usage data, reporting call count only")
	rep.LLMCalls = steps
	rep.EstimatedPromptTokens = estimateTokens(req.Task + "\n" + rep.Result)
}

// estimateTokens counts cl100k_base tokens of the given text. Returns 0
// when the encoding is unavailable; the estimate is advisory only.
func estimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil || text == "" {
		return 0
	}
	return len(encoding.Encode(text, nil, nil))
}
