// Package llm constructs chat-capable model clients keyed by provider
// name. The clients are opaque to the rest of the service: the agent layer
// drives them, surf only selects and configures them per request.
package llm

import (
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client is an opaque chat-capable model client.
type Client interface {
	Provider() string
	Model() string
}

// ProviderInfo describes one provider for the catalogue endpoint.
type ProviderInfo struct {
	Description  string `json:"description"`
	DefaultModel string `json:"default_model"`
	Requires     string `json:"requires"`
}

var defaultModels = map[string]string{
	"browseruse": "browseruse-default",
	"gemini":     "gemini-flash-latest",
	"google":     "gemini-flash-latest",
	"openai":     "gpt-5-mini",
	"anthropic":  "claude-haiku-4-5",
}

// DefaultModel returns the default model for a provider; unknown providers
// get the gemini default.
func DefaultModel(provider string) string {
	if m, ok := defaultModels[strings.ToLower(provider)]; ok {
		return m
	}
	return defaultModels["gemini"]
}

// Providers returns the provider catalogue.
func Providers() map[string]ProviderInfo {
	return map[string]ProviderInfo{
		"browseruse": {
			Description:  "Browser-optimized hosted LLM (fastest)",
			DefaultModel: defaultModels["browseruse"],
			Requires:     "BROWSER_USE_API_KEY",
		},
		"gemini": {
			Description:  "Google Gemini models (free tier available)",
			DefaultModel: defaultModels["gemini"],
			Requires:     "GOOGLE_API_KEY",
		},
		"openai": {
			Description:  "OpenAI GPT models",
			DefaultModel: defaultModels["openai"],
			Requires:     "OPENAI_API_KEY",
		},
		"anthropic": {
			Description:  "Anthropic Claude models",
			DefaultModel: defaultModels["anthropic"],
			Requires:     "ANTHROPIC_API_KEY",
		},
	}
}

// New creates a client for the given provider and model. An empty model
// selects the provider default; an unknown provider falls back to gemini,
// matching the service's lenient acceptance of provider names.
func New(provider, model string) Client {
	p := strings.ToLower(provider)
	if model == "" {
		model = DefaultModel(p)
	}

	switch p {
	case "openai":
		client := openai.NewClient(option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
		return &openAIClient{client: client, model: model}
	case "gemini", "google":
		return &envKeyClient{provider: "gemini", model: model, keyVar: "GOOGLE_API_KEY"}
	case "anthropic":
		return &envKeyClient{provider: "anthropic", model: model, keyVar: "ANTHROPIC_API_KEY"}
	case "browseruse":
		return &envKeyClient{provider: "browseruse", model: model, keyVar: "BROWSER_USE_API_KEY"}
	default:
		return &envKeyClient{provider: "gemini", model: defaultModels["gemini"], keyVar: "GOOGLE_API_KEY"}
	}
}

// openAIClient wraps the official client; construction is all the service
// needs, completion calls happen inside the external agent.
type openAIClient struct {
	client openai.Client
	model  string
}

func (c *openAIClient) Provider() string { return "openai" }
func (c *openAIClient) Model() string    { return c.model }

// envKeyClient covers providers whose concrete client lives behind the
// agent boundary; it carries the selection plus the credential source.
type envKeyClient struct {
	provider string
	model    string
	keyVar   string
}

func (c *envKeyClient) Provider() string { return c.provider }
func (c *envKeyClient) Model() string    { return c.model }
