package httpapi

import (
	"context"
	"strings"

	"web3research/backend/internal/openrouter"
	"web3research/backend/internal/research"
)

type openRouterResponder struct {
	client openrouter.Client
	model  string
}

// NewOpenRouterResponder adapts the OpenRouter chat completion client to the
// research.PromptResponder interface.
func NewOpenRouterResponder(client openrouter.Client, model string) research.PromptResponder {
	return openRouterResponder{client: client, model: strings.TrimSpace(model)}
}

func (r openRouterResponder) Respond(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return r.client.ChatCompletion(ctx, r.model, []openrouter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}
