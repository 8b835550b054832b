package report

import (
	"strings"

	"github.com/entrhq/surf/pkg/types"
)

// formatJudgeVerdict renders a judgement in the fixed human-readable
// multi-line format: pass/fail header, then optional reasoning, failure
// reason, and condition flags.
func formatJudgeVerdict(j *types.Judgement) string {
	status := "FAIL"
	if j.Verdict {
		status = "PASS"
	}

	parts := []string{"Judge Verdict: " + status}
	if j.Reasoning != "" {
		parts = append(parts, "Reasoning: "+j.Reasoning)
	}
	if j.FailureReason != "" {
		parts = append(parts, "Failure Reason: "+j.FailureReason)
	}
	if j.ImpossibleTask {
		parts = append(parts, "Task was impossible to complete")
	}
	if j.ReachedCaptcha {
		parts = append(parts, "Encountered CAPTCHA")
	}
	return strings.Join(parts, "\n")
}
