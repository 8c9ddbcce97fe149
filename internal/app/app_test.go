package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"tubechat/pkg/ai"
	"tubechat/pkg/domain"
	"tubechat/pkg/storage"
	"tubechat/pkg/store"
	"tubechat/pkg/transcript"
)

type fakeStreamer struct {
	deltas    []string
	usage     *ai.Usage
	finish    string
	streamErr error

	titleText  string
	titleErr   error
	titleCalls int

	lastModel       string
	lastMessages    []ai.Message
	lastTitlePrompt string
}

func (f *fakeStreamer) StreamChat(ctx context.Context, model string, messages []ai.Message, onDelta func(string) error) (ai.StreamResult, error) {
	f.lastModel = model
	f.lastMessages = messages
	if f.streamErr != nil {
		return ai.StreamResult{}, f.streamErr
	}
	for _, delta := range f.deltas {
		if err := ctx.Err(); err != nil {
			return ai.StreamResult{}, err
		}
		if err := onDelta(delta); err != nil {
			return ai.StreamResult{}, err
		}
	}
	return ai.StreamResult{Usage: f.usage, FinishReason: f.finish}, nil
}

func (f *fakeStreamer) GenerateText(_ context.Context, _ string, messages []ai.Message) (string, error) {
	f.titleCalls++
	if len(messages) > 0 {
		f.lastTitlePrompt = messages[len(messages)-1].Content
	}
	return f.titleText, f.titleErr
}

type fakeFetcher struct {
	result transcript.Result
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (transcript.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeProvider struct {
	err      error
	subjects []string
}

func (f *fakeProvider) DeleteUser(_ context.Context, subject string) error {
	f.subjects = append(f.subjects, subject)
	return f.err
}

type testEnv struct {
	app      *App
	store    *store.MemoryStore
	blobs    *storage.MemoryBlobStore
	streamer *fakeStreamer
	fetcher  *fakeFetcher
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    store.NewMemoryStore(),
		blobs:    storage.NewMemoryBlobStore(),
		streamer: &fakeStreamer{deltas: []string{"Hello", " world"}, finish: "stop"},
		fetcher:  &fakeFetcher{},
		provider: &fakeProvider{},
	}
	a, err := New(Config{
		Store:       env.store,
		Blobs:       env.blobs,
		AI:          env.streamer,
		Transcripts: env.fetcher,
		Provider:    env.provider,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	return env
}

func identity(subject string) domain.Identity {
	return domain.Identity{Subject: subject, Name: "Test User", Email: subject + "@example.com"}
}

func (e *testEnv) seedConversation(t *testing.T, subject string) domain.Conversation {
	t.Helper()
	conv, err := e.app.CreateConversation(identity(subject), CreateConversationInput{
		Content:       "Summarize the video",
		SystemMessage: true,
		Mode:          domain.ModeSummary,
		Model:         DefaultChatModel,
	})
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return conv
}

func TestStoreUserResolvesAndRefreshes(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.app.StoreUser(identity("auth0|u1"))
	if err != nil {
		t.Fatalf("store user: %v", err)
	}
	refreshed := identity("auth0|u1")
	refreshed.Name = "Renamed"
	second, err := env.app.StoreUser(refreshed)
	if err != nil {
		t.Fatalf("store user again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected stable user id")
	}
	if second.Name != "Renamed" {
		t.Fatalf("expected profile refresh, got %q", second.Name)
	}
}

func TestCurrentUserAnonymousIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	user, ok, err := env.app.CurrentUser(domain.Identity{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || user.ID != "" {
		t.Fatalf("expected no user for anonymous caller")
	}
}

func TestConversationGuardOrder(t *testing.T) {
	env := newTestEnv(t)
	owned := env.seedConversation(t, "auth0|owner")

	// Unauthenticated wins over everything, even a missing conversation.
	if _, err := env.app.GetConversation(domain.Identity{}, "no-such-id"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	// Existence is checked before ownership.
	if _, err := env.app.GetConversation(identity("auth0|other"), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// A foreign conversation is unauthorized, not hidden.
	if _, err := env.app.GetConversation(identity("auth0|other"), owned.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// The owner passes.
	if _, err := env.app.GetConversation(identity("auth0|owner"), owned.ID); err != nil {
		t.Fatalf("owner access failed: %v", err)
	}
}

func TestGuardAppliesToEveryUserFacingOp(t *testing.T) {
	env := newTestEnv(t)
	owned := env.seedConversation(t, "auth0|owner")
	foreign := identity("auth0|other")

	ops := map[string]func() error{
		"list messages": func() error {
			_, err := env.app.ListMessages(foreign, owned.ID)
			return err
		},
		"add user message": func() error {
			_, err := env.app.AddUserMessage(foreign, owned.ID, "hi")
			return err
		},
		"update title": func() error {
			return env.app.UpdateConversationTitle(foreign, owned.ID, "new title")
		},
		"stream chat": func() error {
			return env.app.StreamChat(context.Background(), foreign, ChatRequest{
				ConversationID: owned.ID,
				Messages:       []ChatTurn{{Role: "user", Content: "hi"}},
			}, func(string) error { return nil })
		},
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestCreateConversationSeedsFirstMessage(t *testing.T) {
	env := newTestEnv(t)
	conv, err := env.app.CreateConversation(identity("auth0|u1"), CreateConversationInput{
		Content:       "Summarize the video",
		SystemPrompt:  FullSystemPrompt(DefaultSystemPrompt, "transcript text"),
		SystemMessage: true,
		Mode:          domain.ModeSummary,
		Model:         DefaultChatModel,
		VideoID:       "video-record-1",
	})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.Title == nil || *conv.Title != "New chat" {
		t.Fatalf("expected default title, got %v", conv.Title)
	}
	if !strings.Contains(conv.SystemPrompt, "Video Transcript:") {
		t.Fatalf("expected transcript embedded in system prompt")
	}
	msgs, err := env.app.ListMessages(identity("auth0|u1"), conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != domain.RoleUser {
		t.Fatalf("expected one seeded user message, got %+v", msgs)
	}
	if msgs[0].SystemMessage == nil || !*msgs[0].SystemMessage {
		t.Fatalf("expected system-originated flag on first message")
	}
	if !msgs[0].CreatedAt.Equal(conv.CreatedAt) {
		t.Fatalf("expected shared timestamp, conv=%v msg=%v", conv.CreatedAt, msgs[0].CreatedAt)
	}
}

func TestAddUserMessageBumpsConversationActivity(t *testing.T) {
	env := newTestEnv(t)
	conv := env.seedConversation(t, "auth0|u1")

	msg, err := env.app.AddUserMessage(identity("auth0|u1"), conv.ID, "follow-up question")
	if err != nil {
		t.Fatalf("add message: %v", err)
	}
	updated, err := env.app.GetConversation(identity("auth0|u1"), conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if !updated.UpdatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("updated_at %v != message created_at %v", updated.UpdatedAt, msg.CreatedAt)
	}
}

func TestStreamChatRelaysDeltasInOrder(t *testing.T) {
	env := newTestEnv(t)
	conv := env.seedConversation(t, "auth0|u1")

	var got []string
	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Model:          DefaultChatModel,
		Messages:       []ChatTurn{{Role: "user", Content: "Summarize the video"}},
	}, func(delta string) error {
		got = append(got, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	if strings.Join(got, "") != "Hello world" {
		t.Fatalf("unexpected relayed content: %q", strings.Join(got, ""))
	}
}

func TestStreamChatPersistsAssistantMessageWithMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.usage = &ai.Usage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46}
	env.streamer.finish = "stop"
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "Summarize the video"}},
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}

	msgs, err := env.app.ListMessages(identity("auth0|u1"), conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.Role != domain.RoleAssistant || last.Content != "Hello world" {
		t.Fatalf("unexpected assistant message: %+v", last)
	}
	meta := last.Metadata
	if meta == nil {
		t.Fatalf("expected metadata on assistant message")
	}
	if meta.Model != DefaultChatModel || meta.FinishReason != "stop" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.PromptTokens == nil || *meta.PromptTokens != 12 || meta.TotalTokens == nil || *meta.TotalTokens != 46 {
		t.Fatalf("unexpected token counts: %+v", meta)
	}
	if meta.LatencyMs == nil || *meta.LatencyMs < 0 {
		t.Fatalf("expected latency to be recorded")
	}
}

func TestStreamChatGeneratesTitleOnFirstExchange(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.deltas = []string{strings.Repeat("a", 600)}
	env.streamer.titleText = "Video Summary"
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "Summarize the video"}},
		IsFirstMessage: true,
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	if env.streamer.titleCalls != 1 {
		t.Fatalf("expected one title generation, got %d", env.streamer.titleCalls)
	}
	if !strings.HasPrefix(env.streamer.lastTitlePrompt, "User: Summarize the video\nAssistant: ") {
		t.Fatalf("unexpected title prompt: %q", env.streamer.lastTitlePrompt)
	}
	// Only the first 500 characters of the reply go into the prompt.
	if got := len(env.streamer.lastTitlePrompt); got > len("User: Summarize the video\nAssistant: ")+500 {
		t.Fatalf("title prompt too long: %d", got)
	}
	updated, err := env.app.GetConversation(identity("auth0|u1"), conv.ID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if updated.Title == nil || *updated.Title != "Video Summary" {
		t.Fatalf("expected generated title, got %v", updated.Title)
	}
}

func TestStreamChatTitlePromptStaysValidUTF8(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.deltas = []string{strings.Repeat("ü", 600)}
	env.streamer.titleText = "Umlauts"
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "Summarize the video"}},
		IsFirstMessage: true,
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	prompt := env.streamer.lastTitlePrompt
	if !utf8.ValidString(prompt) {
		t.Fatalf("title prompt contains invalid UTF-8: %q", prompt)
	}
	header := "User: Summarize the video\nAssistant: "
	if got := len([]rune(prompt)) - len([]rune(header)); got != 500 {
		t.Fatalf("expected 500-rune reply prefix, got %d", got)
	}
}

func TestStreamChatCapsOverlongTitle(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.titleText = strings.Repeat("x", 150)
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "hi"}},
		IsFirstMessage: true,
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	updated, _ := env.app.GetConversation(identity("auth0|u1"), conv.ID)
	if updated.Title == nil || len([]rune(*updated.Title)) != 100 {
		t.Fatalf("expected title capped at 100 runes, got %v", updated.Title)
	}
}

func TestStreamChatSkipsTitleOnLaterExchanges(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.titleText = "should not be used"
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "follow-up"}},
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("stream chat: %v", err)
	}
	if env.streamer.titleCalls != 0 {
		t.Fatalf("expected no title generation, got %d", env.streamer.titleCalls)
	}
}

func TestStreamChatTitleFailureDoesNotAffectReply(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.titleErr = errors.New("title model down")
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "hi"}},
		IsFirstMessage: true,
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("expected swallowed title failure, got %v", err)
	}
	// The assistant message was still saved.
	msgs, _ := env.app.ListMessages(identity("auth0|u1"), conv.ID)
	if msgs[len(msgs)-1].Role != domain.RoleAssistant {
		t.Fatalf("expected assistant message despite title failure")
	}
}

func TestStreamChatAbortSkipsSideEffects(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.streamErr = context.Canceled
	conv := env.seedConversation(t, "auth0|u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := env.app.StreamChat(ctx, identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "hi"}},
		IsFirstMessage: true,
	}, func(string) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	msgs, _ := env.app.ListMessages(identity("auth0|u1"), conv.ID)
	for _, msg := range msgs {
		if msg.Role == domain.RoleAssistant {
			t.Fatalf("expected no assistant message after abort")
		}
	}
	if env.streamer.titleCalls != 0 {
		t.Fatalf("expected no title generation after abort")
	}
}

func TestStreamChatUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.streamer.streamErr = errors.New("gateway 503")
	conv := env.seedConversation(t, "auth0|u1")

	err := env.app.StreamChat(context.Background(), identity("auth0|u1"), ChatRequest{
		ConversationID: conv.ID,
		Messages:       []ChatTurn{{Role: "user", Content: "hi"}},
	}, func(string) error { return nil })
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestSaveVideoGetOrCreate(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.app.SaveVideo(identity("auth0|u1"), SaveVideoInput{
		VideoID:    "dQw4w9WgXcQ",
		URL:        "https://youtu.be/dQw4w9WgXcQ",
		Transcript: "first transcript",
	})
	if err != nil {
		t.Fatalf("save video: %v", err)
	}
	second, err := env.app.SaveVideo(identity("auth0|u2"), SaveVideoInput{
		VideoID:    "dQw4w9WgXcQ",
		URL:        "https://youtu.be/dQw4w9WgXcQ",
		Transcript: "second transcript",
	})
	if err != nil {
		t.Fatalf("save duplicate: %v", err)
	}
	if second.ID != first.ID || second.Transcript != "first transcript" {
		t.Fatalf("expected first writer to win, got %+v", second)
	}
}

func TestSaveVideoValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.SaveVideo(domain.Identity{}, SaveVideoInput{VideoID: "x", Transcript: "t"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := env.app.SaveVideo(identity("auth0|u1"), SaveVideoInput{Transcript: "t"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing videoId, got %v", err)
	}
	if _, err := env.app.SaveVideo(identity("auth0|u1"), SaveVideoInput{VideoID: "x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing transcript, got %v", err)
	}
}

func TestCheckVideoIsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	if _, ok, err := env.app.CheckVideo("missing-video"); err != nil || ok {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
	if _, err := env.app.SaveVideo(identity("auth0|u1"), SaveVideoInput{VideoID: "abc", Transcript: "t"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	video, ok, err := env.app.CheckVideo("abc")
	if err != nil || !ok || video.VideoID != "abc" {
		t.Fatalf("expected hit, got ok=%v err=%v video=%+v", ok, err, video)
	}
}

func TestFetchTranscriptRequiresAuthAndMapsUpstream(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.FetchTranscript(context.Background(), domain.Identity{}, "https://youtu.be/dQw4w9WgXcQ"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := env.app.FetchTranscript(context.Background(), identity("auth0|u1"), "https://vimeo.com/12345"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for non-YouTube url, got %v", err)
	}
	env.fetcher.err = &transcript.APIError{StatusCode: 404, Message: "no captions"}
	_, err := env.app.FetchTranscript(context.Background(), identity("auth0|u1"), "https://youtu.be/dQw4w9WgXcQ")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	var apiErr *transcript.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
}

func TestDeleteAccountPurgesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, err := env.app.StoreUser(identity("auth0|leaver"))
	if err != nil {
		t.Fatalf("store user: %v", err)
	}
	conv := env.seedConversation(t, "auth0|leaver")

	// Attach a blob to a message so deletion has something to clean up.
	key := storage.AttachmentKey(conv.ID, "att-1", "notes.txt")
	if err := env.blobs.Put(ctx, key, strings.NewReader("blob"), 4, "text/plain"); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	if _, err := env.store.AppendMessage(conv.ID, domain.Message{
		ID:          store.NewID(),
		Role:        domain.RoleUser,
		Content:     "see attachment",
		Attachments: []domain.Attachment{{Type: "file", StorageKey: key, Name: "notes.txt"}},
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("append message: %v", err)
	}

	if err := env.app.DeleteAccount(ctx, identity("auth0|leaver"), "  too many videos  "); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if env.blobs.Has(key) {
		t.Fatalf("expected attachment blob to be deleted")
	}
	if _, ok, _ := env.store.GetConversation(conv.ID); ok {
		t.Fatalf("expected conversation to be deleted")
	}
	if _, ok, _ := env.store.GetUserBySubject("auth0|leaver"); ok {
		t.Fatalf("expected user to be deleted")
	}
	feedback := env.store.ListFeedback()
	if len(feedback) != 1 || feedback[0].UserID != user.ID || feedback[0].Feedback != "too many videos" {
		t.Fatalf("expected trimmed feedback to survive, got %+v", feedback)
	}
	if feedback[0].Source != domain.FeedbackAccountDeletion {
		t.Fatalf("unexpected feedback source: %s", feedback[0].Source)
	}
	if len(env.provider.subjects) != 1 || env.provider.subjects[0] != "auth0|leaver" {
		t.Fatalf("expected provider deletion, got %v", env.provider.subjects)
	}
}

func TestDeleteAccountSkipsEmptyFeedback(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.StoreUser(identity("auth0|leaver")); err != nil {
		t.Fatalf("store user: %v", err)
	}
	if err := env.app.DeleteAccount(context.Background(), identity("auth0|leaver"), "   "); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if got := env.store.ListFeedback(); len(got) != 0 {
		t.Fatalf("expected no feedback rows, got %+v", got)
	}
}

func TestDeleteAccountWithoutProviderStopsAfterLocalPurge(t *testing.T) {
	env := newTestEnv(t)
	a, err := New(Config{Store: env.store, Blobs: env.blobs, AI: env.streamer})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := a.StoreUser(identity("auth0|leaver")); err != nil {
		t.Fatalf("store user: %v", err)
	}
	if err := a.DeleteAccount(context.Background(), identity("auth0|leaver"), ""); err != nil {
		t.Fatalf("expected success without provider, got %v", err)
	}
	if _, ok, _ := env.store.GetUserBySubject("auth0|leaver"); ok {
		t.Fatalf("expected local purge to run")
	}
}

func TestDeleteAccountProviderFailureAfterLocalPurge(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("management api down")
	if _, err := env.app.StoreUser(identity("auth0|leaver")); err != nil {
		t.Fatalf("store user: %v", err)
	}
	err := env.app.DeleteAccount(context.Background(), identity("auth0|leaver"), "")
	if !errors.Is(err, ErrExternalProvider) {
		t.Fatalf("expected ErrExternalProvider, got %v", err)
	}
	// Local data is already gone, by design.
	if _, ok, _ := env.store.GetUserBySubject("auth0|leaver"); ok {
		t.Fatalf("expected local purge despite provider failure")
	}
}

func TestModeTable(t *testing.T) {
	modes := ListModes()
	if len(modes) != 5 {
		t.Fatalf("expected 5 modes, got %d", len(modes))
	}
	seen := map[domain.PromptMode]bool{}
	for _, mode := range modes {
		seen[mode.ID] = true
		if mode.SystemPrompt == "" || mode.FirstMessage == "" || mode.Model == "" {
			t.Fatalf("incomplete mode entry: %+v", mode)
		}
	}
	for _, id := range []domain.PromptMode{domain.ModeSummary, domain.ModeQuiz, domain.ModeExplain, domain.ModeInteractive, domain.ModeKeyPoints} {
		if !seen[id] {
			t.Fatalf("missing mode %s", id)
		}
	}
	fallback, ok := ModeByID("nonsense")
	if ok {
		t.Fatalf("expected unknown mode to miss")
	}
	if fallback.Model != DefaultChatModel || fallback.FirstMessage == "" {
		t.Fatalf("unexpected fallback: %+v", fallback)
	}
}

func TestFullSystemPrompt(t *testing.T) {
	got := FullSystemPrompt("mode prompt", "the transcript")
	want := "mode prompt\n\n---\nVideo Transcript:\nthe transcript"
	if got != want {
		t.Fatalf("unexpected prompt: %q", got)
	}
}
