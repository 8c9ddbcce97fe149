// Package app implements the core of the service: identity resolution, the
// video transcript cache, conversation persistence with ownership checks,
// the streaming chat orchestrator, and account deletion.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"tubechat/pkg/ai"
	"tubechat/pkg/domain"
	"tubechat/pkg/storage"
	"tubechat/pkg/store"
	"tubechat/pkg/transcript"
)

// TranscriptFetcher fetches and normalizes a transcript for a video URL.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoURL string) (transcript.Result, error)
}

// ProviderDeleter removes the identity-provider side of an account.
type ProviderDeleter interface {
	DeleteUser(ctx context.Context, subject string) error
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Blobs       storage.BlobStore
	AI          ai.Streamer
	Transcripts TranscriptFetcher
	// Provider may be nil when management credentials are not configured;
	// account deletion then stops after the local purge.
	Provider   ProviderDeleter
	TitleModel string
	Logger     *slog.Logger
}

// App is the core application service wiring storage, blobs, and the model
// gateway together.
type App struct {
	store       store.Store
	blobs       storage.BlobStore
	ai          ai.Streamer
	transcripts TranscriptFetcher
	provider    ProviderDeleter
	titleModel  string
	logger      *slog.Logger

	transcriptGroup singleflight.Group
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.AI == nil {
		return nil, fmt.Errorf("ai streamer required")
	}
	titleModel := strings.TrimSpace(cfg.TitleModel)
	if titleModel == "" {
		titleModel = TitleModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:       dataStore,
		blobs:       cfg.Blobs,
		ai:          cfg.AI,
		transcripts: cfg.Transcripts,
		provider:    cfg.Provider,
		titleModel:  titleModel,
		logger:      logger,
	}, nil
}

// requireUser resolves the identity to a stored user, creating the row on
// first contact. An invalid assertion fails with ErrUnauthenticated before
// anything else is inspected.
func (a *App) requireUser(identity domain.Identity) (domain.User, error) {
	if !identity.Valid() {
		return domain.User{}, ErrUnauthenticated
	}
	user, err := a.store.UpsertUser(identity)
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

// authorizeConversation runs the access checks every user-facing
// conversation operation shares, strictly in order: authentication, then
// existence, then ownership.
func (a *App) authorizeConversation(identity domain.Identity, conversationID string) (domain.User, domain.Conversation, error) {
	user, err := a.requireUser(identity)
	if err != nil {
		return domain.User{}, domain.Conversation{}, err
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return domain.User{}, domain.Conversation{}, fmt.Errorf("%w: conversation id required", ErrValidation)
	}
	conversation, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return domain.User{}, domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return domain.User{}, domain.Conversation{}, ErrNotFound
	}
	if conversation.UserID != user.ID {
		return domain.User{}, domain.Conversation{}, ErrUnauthorized
	}
	return user, conversation, nil
}
