package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIStreamer implements Streamer against any OpenAI-compatible gateway.
// Pointing BaseURL at an aggregator makes vendor-prefixed model ids such as
// "google/gemini-2.0-flash" work unchanged.
type OpenAIStreamer struct {
	client *openai.Client
}

// OpenAIConfig configures the gateway connection.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// NewOpenAIStreamer creates a gateway client.
func NewOpenAIStreamer(cfg OpenAIConfig) (*OpenAIStreamer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("ai streamer requires api key")
	}
	conf := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		conf.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIStreamer{client: openai.NewClientWithConfig(conf)}, nil
}

// StreamChat relays content deltas in arrival order and reports usage from
// the final chunk when the gateway includes it.
func (s *OpenAIStreamer) StreamChat(ctx context.Context, model string, messages []Message, onDelta func(delta string) error) (StreamResult, error) {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		return StreamResult{}, fmt.Errorf("start completion stream: %w", err)
	}
	defer stream.Close()

	result := StreamResult{}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("read completion stream: %w", err)
		}
		if chunk.Usage != nil {
			result.Usage = &Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				result.FinishReason = string(choice.FinishReason)
			}
			if choice.Delta.Content == "" {
				continue
			}
			if err := onDelta(choice.Delta.Content); err != nil {
				return result, err
			}
		}
	}
}

// GenerateText runs a one-shot completion.
func (s *OpenAIStreamer) GenerateText(ctx context.Context, model string, messages []Message) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return out
}
