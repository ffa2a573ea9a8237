package ai

import "context"

// Message is one turn of a chat transcript sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params tunes a single generation request. Zero values mean provider
// defaults.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// ChatGenerator produces the next assistant reply for a chat transcript.
// All LLM providers (Ollama, OpenAI-compatible) implement this interface.
type ChatGenerator interface {
	Chat(ctx context.Context, messages []Message, params Params) (string, error)
}
