package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tubechat/pkg/domain"
	"tubechat/pkg/store"
)

// DeleteAccount removes everything the caller owns: feedback is recorded
// first so it survives, then every conversation is purged (attachment blobs,
// messages, the conversation row), then the user row, and finally the
// provider-side account. Once the local purge succeeded a provider failure
// is reported as ErrExternalProvider but nothing is rolled back.
func (a *App) DeleteAccount(ctx context.Context, identity domain.Identity, feedbackText string) error {
	if !identity.Valid() {
		return ErrUnauthenticated
	}
	user, ok, err := a.store.GetUserBySubject(identity.Subject)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}

	if feedbackText = strings.TrimSpace(feedbackText); feedbackText != "" {
		if err := a.store.SaveFeedback(domain.Feedback{
			ID:        store.NewID(),
			UserID:    user.ID,
			UserEmail: user.Email,
			Feedback:  feedbackText,
			Source:    domain.FeedbackAccountDeletion,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("save feedback: %w", err)
		}
	}

	conversations, err := a.store.ListConversationsByUser(user.ID, 0)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	for _, conversation := range conversations {
		a.deleteConversationBlobs(ctx, conversation.ID)
		if err := a.store.DeleteConversation(conversation.ID); err != nil {
			return fmt.Errorf("delete conversation %s: %w", conversation.ID, err)
		}
	}
	if err := a.store.DeleteUser(user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	a.logger.Info("account purged locally", "userId", user.ID, "conversations", len(conversations))

	if a.provider == nil {
		a.logger.Warn("provider credentials not configured, skipping remote account deletion", "userId", user.ID)
		return nil
	}
	if err := a.provider.DeleteUser(ctx, user.TokenIdentifier); err != nil {
		return fmt.Errorf("%w: %w", ErrExternalProvider, err)
	}
	return nil
}

// deleteConversationBlobs removes attachment blobs for one conversation.
// Blob failures are logged and skipped so a storage hiccup cannot wedge
// account deletion.
func (a *App) deleteConversationBlobs(ctx context.Context, conversationID string) {
	if a.blobs == nil {
		return
	}
	messages, err := a.store.ListMessages(conversationID, 0)
	if err != nil {
		a.logger.Error("list messages for blob cleanup failed", "conversationId", conversationID, "error", err)
		return
	}
	for _, msg := range messages {
		for _, attachment := range msg.Attachments {
			if attachment.StorageKey == "" {
				continue
			}
			if err := a.blobs.Delete(ctx, attachment.StorageKey); err != nil {
				a.logger.Error("delete attachment blob failed", "key", attachment.StorageKey, "error", err)
			}
		}
	}
}
