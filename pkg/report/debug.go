package report

import (
	"github.com/entrhq/surf/pkg/browser"
	"github.com/entrhq/surf/pkg/types"
)

// extractDebug builds the debug bundle. Each piece degrades to empty on
// failure; the performance summary is computed from the already-extracted
// basics so it is always present.
func (a *Aggregator) extractDebug(history browser.History, b basics) *types.DebugBundle {
	bundle := &types.DebugBundle{
		ExtractedContent: []string{},
		ModelThoughts:    []types.ModelStep{},
		Performance: types.PerfSummary{
			TotalDuration: b.duration,
			Steps:         b.steps,
			URLsVisited:   len(b.urls),
			HasErrors:     b.hasErrors,
		},
	}

	content := capture(func() ([]string, error) {
		return history.ExtractedContent()
	})
	if content.degraded {
		a.logger.Warnf("could not extract page content trace: %s", content.reason)
	} else if content.value != nil {
		bundle.ExtractedContent = content.value
	}

	thoughts := capture(func() ([]types.ModelStep, error) {
		return history.ModelThoughts()
	})
	if thoughts.degraded {
		a.logger.Warnf("could not extract model thoughts: %s", thoughts.reason)
	} else if thoughts.value != nil {
		bundle.ModelThoughts = thoughts.value
	}

	return bundle
}
