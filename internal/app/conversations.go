package app

import (
	"fmt"
	"strings"
	"time"

	"tubechat/pkg/domain"
	"tubechat/pkg/store"
)

const defaultConversationTitle = "New chat"

// titleRuneCap is the hard safety limit applied to any persisted title.
const titleRuneCap = 100

// CreateConversationInput seeds a new conversation with its first user
// message.
type CreateConversationInput struct {
	Content       string
	Title         string
	SystemPrompt  string
	SystemMessage bool
	Mode          domain.PromptMode
	Model         string
	VideoID       string
}

// CreateConversation atomically creates a conversation and its first user
// message. Both records share one timestamp so ordering is unambiguous.
func (a *App) CreateConversation(identity domain.Identity, input CreateConversationInput) (domain.Conversation, error) {
	user, err := a.requireUser(identity)
	if err != nil {
		return domain.Conversation{}, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return domain.Conversation{}, fmt.Errorf("%w: content required", ErrValidation)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultConversationTitle
	}
	title = capTitle(title)
	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:           store.NewID(),
		UserID:       user.ID,
		Title:        &title,
		Mode:         input.Mode,
		Model:        strings.TrimSpace(input.Model),
		SystemPrompt: input.SystemPrompt,
		VideoID:      strings.TrimSpace(input.VideoID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	first := domain.Message{
		ID:        store.NewID(),
		Role:      domain.RoleUser,
		Content:   input.Content,
		CreatedAt: now,
	}
	if input.SystemMessage {
		flag := true
		first.SystemMessage = &flag
	}
	created, err := a.store.CreateConversation(conversation, []domain.Message{first})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return created, nil
}

// GetConversation returns a conversation the caller owns. A missing id maps
// to ErrNotFound, a foreign one to ErrUnauthorized.
func (a *App) GetConversation(identity domain.Identity, conversationID string) (domain.Conversation, error) {
	_, conversation, err := a.authorizeConversation(identity, conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (a *App) ListConversations(identity domain.Identity, limit int) ([]domain.Conversation, error) {
	user, err := a.requireUser(identity)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := a.store.ListConversationsByUser(user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (a *App) ListMessages(identity domain.Identity, conversationID string) ([]domain.Message, error) {
	_, _, err := a.authorizeConversation(identity, conversationID)
	if err != nil {
		return nil, err
	}
	items, err := a.store.ListMessages(conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

// AddUserMessage appends a user-authored message and bumps the
// conversation's activity timestamp.
func (a *App) AddUserMessage(identity domain.Identity, conversationID, content string) (domain.Message, error) {
	_, _, err := a.authorizeConversation(identity, conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, fmt.Errorf("%w: content required", ErrValidation)
	}
	msg := domain.Message{
		ID:        store.NewID(),
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := a.store.AppendMessage(conversationID, msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save user message: %w", err)
	}
	return saved, nil
}

// UpdateConversationTitle renames a conversation the caller owns.
func (a *App) UpdateConversationTitle(identity domain.Identity, conversationID, title string) error {
	_, _, err := a.authorizeConversation(identity, conversationID)
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if err := a.store.SetConversationTitle(conversationID, capTitle(title)); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}

// SaveAssistantMessage is the trusted write used by the orchestrator's
// completion callback. No ownership check: the caller authenticates with a
// service token, not a user token.
func (a *App) SaveAssistantMessage(conversationID, content string, metadata *domain.MessageMetadata) (domain.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return domain.Message{}, fmt.Errorf("%w: conversation id required", ErrValidation)
	}
	if _, ok, err := a.store.GetConversation(conversationID); err != nil {
		return domain.Message{}, fmt.Errorf("load conversation: %w", err)
	} else if !ok {
		return domain.Message{}, ErrNotFound
	}
	msg := domain.Message{
		ID:        store.NewID(),
		Role:      domain.RoleAssistant,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := a.store.AppendMessage(conversationID, msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save assistant message: %w", err)
	}
	return saved, nil
}

// SetConversationTitleTrusted is the trusted title write used by the title
// generation callback.
func (a *App) SetConversationTitleTrusted(conversationID, title string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("%w: conversation id required", ErrValidation)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if _, ok, err := a.store.GetConversation(conversationID); err != nil {
		return fmt.Errorf("load conversation: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	if err := a.store.SetConversationTitle(conversationID, capTitle(title)); err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return nil
}

func capTitle(title string) string {
	runes := []rune(title)
	if len(runes) > titleRuneCap {
		return string(runes[:titleRuneCap])
	}
	return title
}
