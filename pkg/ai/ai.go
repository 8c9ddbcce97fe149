// Package ai wraps the OpenAI-compatible model gateway used for chat
// streaming and title generation.
package ai

import "context"

// Message is one turn of model input.
type Message struct {
	Role    string
	Content string
}

// Usage is token accounting reported by the gateway for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamResult describes how a streamed completion ended.
type StreamResult struct {
	Usage        *Usage
	FinishReason string
}

// Streamer produces streamed chat completions and one-shot generations.
type Streamer interface {
	// StreamChat runs a streaming completion, invoking onDelta for every
	// content fragment in arrival order. It returns after the stream ends.
	StreamChat(ctx context.Context, model string, messages []Message, onDelta func(delta string) error) (StreamResult, error)
	// GenerateText runs a non-streaming completion and returns the text.
	GenerateText(ctx context.Context, model string, messages []Message) (string, error)
}
