package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *TaskRequest {
	r := &TaskRequest{Task: "check the dashboard at https://example.com"}
	r.ApplyDefaults()
	return r
}

func TestApplyDefaults(t *testing.T) {
	r := &TaskRequest{Task: "do something"}
	r.ApplyDefaults()

	assert.Equal(t, "gemini", r.LLMProvider)
	assert.Equal(t, "auto", r.UseVision)
	assert.Equal(t, 100, r.MaxSteps)
	assert.Equal(t, 900, r.Timeout)
	assert.Equal(t, 120, r.LLMTimeout)
	assert.Equal(t, 120, r.StepTimeout)
	assert.Equal(t, 1920, r.WindowWidth)
	assert.Equal(t, 1080, r.WindowHeight)
	assert.True(t, r.CostEnabled())
	assert.True(t, r.SessionPersistence())
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	enabled := false
	r := &TaskRequest{
		Task:           "task",
		LLMProvider:    "openai",
		MaxSteps:       5,
		SessionEnabled: &enabled,
		CalculateCost:  &enabled,
	}
	r.ApplyDefaults()

	assert.Equal(t, "openai", r.LLMProvider)
	assert.Equal(t, 5, r.MaxSteps)
	assert.False(t, r.SessionPersistence())
	assert.False(t, r.CostEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TaskRequest)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(r *TaskRequest) {},
		},
		{
			name:    "empty task",
			mutate:  func(r *TaskRequest) { r.Task = "   " },
			wantErr: "task description is required",
		},
		{
			name:    "max steps too high",
			mutate:  func(r *TaskRequest) { r.MaxSteps = 501 },
			wantErr: "max_steps",
		},
		{
			name:    "timeout too low",
			mutate:  func(r *TaskRequest) { r.Timeout = 10 },
			wantErr: "timeout",
		},
		{
			name:    "llm timeout above overall timeout",
			mutate:  func(r *TaskRequest) { r.Timeout = 60; r.LLMTimeout = 60; r.StepTimeout = 30 },
			wantErr: "llm_timeout (60) must be below the overall timeout (60)",
		},
		{
			name:    "step timeout above overall timeout",
			mutate:  func(r *TaskRequest) { r.Timeout = 60; r.LLMTimeout = 30; r.StepTimeout = 90 },
			wantErr: "step_timeout (90) must be below the overall timeout (60)",
		},
		{
			name:    "window width out of range",
			mutate:  func(r *TaskRequest) { r.WindowWidth = 100 },
			wantErr: "window_width",
		},
		{
			name:    "bad vision mode",
			mutate:  func(r *TaskRequest) { r.UseVision = "maybe" },
			wantErr: "use_vision",
		},
		{
			name:    "negative customer id",
			mutate:  func(r *TaskRequest) { r.CustomerID = -1 },
			wantErr: "customer_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestVisionMode(t *testing.T) {
	r := validRequest()

	r.UseVision = "TRUE"
	assert.Equal(t, "true", r.VisionMode())

	r.UseVision = "False"
	assert.Equal(t, "false", r.VisionMode())

	r.UseVision = "anything-else"
	assert.Equal(t, "auto", r.VisionMode())
}

func TestTimeoutDuration(t *testing.T) {
	r := validRequest()
	r.Timeout = 45
	assert.Equal(t, 45*time.Second, r.TimeoutDuration())
}
