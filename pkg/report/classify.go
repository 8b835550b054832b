package report

import (
	"fmt"
	"strings"
)

type errorKind int

const (
	errorKindEmptyJSON errorKind = iota
	errorKindRateLimit
	errorKindGeneric
)

// emptyJSONMarkers are substrings that indicate the provider returned an
// empty or malformed structured response.
var emptyJSONMarkers = []string{
	"eof while parsing",
	"invalid json",
	"input_value=''",
	"expecting value",
	"no json object could be decoded",
}

// rateLimitMarkers are substrings that indicate 429-style throttling.
var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit_exceeded",
	"quota exceeded",
	"too many requests",
	"429",
}

func isEmptyJSONError(message string) bool {
	return containsAny(message, emptyJSONMarkers)
}

func isRateLimitError(message string) bool {
	return containsAny(message, rateLimitMarkers)
}

func containsAny(message string, markers []string) bool {
	if message == "" {
		return false
	}
	lowered := strings.ToLower(message)
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

// formatOpenAIError renders classified provider failures as actionable
// guidance. The original error text is appended so nothing is lost.
func formatOpenAIError(originalError string, kind errorKind) string {
	var base string
	var suggestions []string

	switch kind {
	case errorKindEmptyJSON:
		base = "OpenAI returned an empty or malformed response. This is usually a transient issue."
		suggestions = []string{
			"Retry the task (very likely to succeed)",
			"Check OpenAI status page for outages",
			"Ensure your API key has remaining quota",
		}
	case errorKindRateLimit:
		base = "OpenAI API rate limit reached. Your account exceeded the allowed requests."
		suggestions = []string{
			"Wait a few minutes and retry",
			"Upgrade the OpenAI plan for higher limits",
			"Switch to Gemini (no rate limits on free tier)",
		}
	default:
		base = fmt.Sprintf("OpenAI error: %s", truncate(originalError, 100))
		suggestions = []string{
			"Retry the task",
			"Try a different OpenAI model",
			"Check OpenAI status page for outages",
		}
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nSuggestions:\n")
	for _, tip := range suggestions {
		b.WriteString("  - ")
		b.WriteString(tip)
		b.WriteString("\n")
	}
	if originalError != "" {
		b.WriteString("\nOriginal error: ")
		b.WriteString(truncate(originalError, 200))
	}
	return b.String()
}
