package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// The production implementation targets an OpenAI-compatible endpoint;
// tests substitute a stub.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
