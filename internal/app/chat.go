package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tubechat/pkg/ai"
	"tubechat/pkg/domain"
)

// ChatTurn is one model-facing message of a chat request.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest drives one streamed completion.
type ChatRequest struct {
	ConversationID string     `json:"conversationId,omitempty"`
	Model          string     `json:"model,omitempty"`
	SystemPrompt   string     `json:"systemPrompt,omitempty"`
	Messages       []ChatTurn `json:"messages"`
	IsFirstMessage bool       `json:"isFirstMessage,omitempty"`
}

const (
	titleSystemPrompt = "Generate a short, descriptive title (max 30 chars) for this conversation. Return only the title, no quotes or punctuation."
	titleReplyPrefix  = 500
)

// StreamChat relays model deltas to onDelta in arrival order. After the
// stream completes naturally it persists the assistant message and, on the
// first exchange, derives a conversation title. Both follow-ups log and
// swallow their own failures: the user already has the full reply, and a
// failed bookkeeping write must not turn it into an error. A canceled ctx
// (client disconnect) aborts generation and skips both.
func (a *App) StreamChat(ctx context.Context, identity domain.Identity, req ChatRequest, onDelta func(delta string) error) error {
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID != "" {
		if _, _, err := a.authorizeConversation(identity, conversationID); err != nil {
			return err
		}
	} else if _, err := a.requireUser(identity); err != nil {
		return err
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages required", ErrValidation)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultChatModel
	}

	modelMessages := make([]ai.Message, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		modelMessages = append(modelMessages, ai.Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, turn := range req.Messages {
		modelMessages = append(modelMessages, ai.Message{Role: turn.Role, Content: turn.Content})
	}

	start := time.Now()
	var reply strings.Builder
	result, err := a.ai.StreamChat(ctx, model, modelMessages, func(delta string) error {
		reply.WriteString(delta)
		return onDelta(delta)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	latencyMs := time.Since(start).Milliseconds()

	if conversationID == "" {
		return nil
	}

	// The stream is done; bookkeeping must not be lost to a late client
	// disconnect.
	bg := context.WithoutCancel(ctx)
	a.persistAssistantReply(conversationID, model, reply.String(), result, latencyMs)
	if req.IsFirstMessage {
		a.generateTitle(bg, conversationID, req.Messages, reply.String())
	}
	return nil
}

func (a *App) persistAssistantReply(conversationID, model, content string, result ai.StreamResult, latencyMs int64) {
	metadata := &domain.MessageMetadata{
		Model:        model,
		LatencyMs:    &latencyMs,
		FinishReason: result.FinishReason,
	}
	if result.Usage != nil {
		promptTokens := result.Usage.PromptTokens
		completionTokens := result.Usage.CompletionTokens
		totalTokens := result.Usage.TotalTokens
		metadata.PromptTokens = &promptTokens
		metadata.CompletionTokens = &completionTokens
		metadata.TotalTokens = &totalTokens
	}
	if _, err := a.SaveAssistantMessage(conversationID, content, metadata); err != nil {
		a.logger.Error("save assistant message failed", "conversationId", conversationID, "error", err)
	}
}

func (a *App) generateTitle(ctx context.Context, conversationID string, turns []ChatTurn, reply string) {
	firstUser := ""
	for _, turn := range turns {
		if turn.Role == string(domain.RoleUser) {
			firstUser = turn.Content
			break
		}
	}
	// Slice on runes so a multi-byte character at the cut never produces
	// invalid UTF-8.
	prefix := reply
	if runes := []rune(prefix); len(runes) > titleReplyPrefix {
		prefix = string(runes[:titleReplyPrefix])
	}
	prompt := fmt.Sprintf("User: %s\nAssistant: %s", firstUser, prefix)
	title, err := a.ai.GenerateText(ctx, a.titleModel, []ai.Message{
		{Role: "system", Content: titleSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		a.logger.Error("title generation failed", "conversationId", conversationID, "error", err)
		return
	}
	if err := a.SetConversationTitleTrusted(conversationID, title); err != nil {
		a.logger.Error("title write failed", "conversationId", conversationID, "error", err)
	}
}
