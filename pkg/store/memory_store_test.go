package store

import (
	"testing"
	"time"

	"tubechat/pkg/domain"
)

func TestUpsertUserKeepsStableID(t *testing.T) {
	s := NewMemoryStore()
	first, err := s.UpsertUser(domain.Identity{Subject: "auth0|u1", Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := s.UpsertUser(domain.Identity{Subject: "auth0|u1", Name: "Ada L.", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected stable id, got %s then %s", first.ID, second.ID)
	}
	if second.Name != "Ada L." {
		t.Fatalf("expected profile refresh, got %q", second.Name)
	}
}

func TestCreateVideoDeduplicatesByVideoID(t *testing.T) {
	s := NewMemoryStore()
	first, err := s.CreateVideo(domain.Video{ID: NewID(), VideoID: "dQw4w9WgXcQ", URL: "https://youtu.be/dQw4w9WgXcQ", Transcript: "one", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.CreateVideo(domain.Video{ID: NewID(), VideoID: "dQw4w9WgXcQ", URL: "https://youtu.be/dQw4w9WgXcQ", Transcript: "two", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create duplicate: %v", err)
	}
	if second.ID != first.ID || second.Transcript != "one" {
		t.Fatalf("expected first writer to win, got %+v", second)
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	s := NewMemoryStore()
	conv := domain.Conversation{ID: NewID(), UserID: "u1", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if _, err := s.CreateConversation(conv, []domain.Message{
		{ID: NewID(), Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := s.AppendMessage(conv.ID, domain.Message{ID: NewID(), Role: domain.RoleAssistant, Content: "hello", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, err := s.CountMessages(conv.ID)
	if err != nil || count != 0 {
		t.Fatalf("expected no messages after delete, got %d err=%v", count, err)
	}
}

func TestDeleteUserRemovesConversationsButKeepsFeedback(t *testing.T) {
	s := NewMemoryStore()
	user, err := s.UpsertUser(domain.Identity{Subject: "auth0|u1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	conv := domain.Conversation{ID: NewID(), UserID: user.ID, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if _, err := s.CreateConversation(conv, nil); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := s.SaveFeedback(domain.Feedback{
		ID:        NewID(),
		UserID:    user.ID,
		UserEmail: user.Email,
		Feedback:  "leaving",
		Source:    domain.FeedbackAccountDeletion,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("save feedback: %v", err)
	}
	if err := s.DeleteUser(user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok, _ := s.GetUserBySubject("auth0|u1"); ok {
		t.Fatalf("expected user to be gone")
	}
	if _, ok, _ := s.GetConversation(conv.ID); ok {
		t.Fatalf("expected conversation to be gone")
	}
	if got := s.ListFeedback(); len(got) != 1 || got[0].UserID != user.ID {
		t.Fatalf("expected feedback to survive deletion, got %+v", got)
	}
}

func TestAppendMessageBumpsActivityToMessageTimestamp(t *testing.T) {
	s := NewMemoryStore()
	created := time.Now().UTC().Add(-time.Hour)
	conv := domain.Conversation{ID: NewID(), UserID: "u1", CreatedAt: created, UpdatedAt: created}
	if _, err := s.CreateConversation(conv, nil); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg := domain.Message{ID: NewID(), Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now().UTC()}
	saved, err := s.AppendMessage(conv.ID, msg)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got, ok, err := s.GetConversation(conv.ID)
	if err != nil || !ok {
		t.Fatalf("get conversation: ok=%v err=%v", ok, err)
	}
	if !got.UpdatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("updated_at %v != message created_at %v", got.UpdatedAt, saved.CreatedAt)
	}
	if got.UpdatedAt.Before(created) {
		t.Fatalf("updated_at went backwards: %v < %v", got.UpdatedAt, created)
	}
}

func TestListMessagesOrdersByCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	conv := domain.Conversation{ID: NewID(), UserID: "u1"}
	if _, err := s.CreateConversation(conv, nil); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	base := time.Now().UTC()
	// Inserted out of chronological order on purpose.
	for _, msg := range []domain.Message{
		{ID: "m-2", Role: domain.RoleAssistant, Content: "second", CreatedAt: base.Add(2 * time.Second)},
		{ID: "m-1", Role: domain.RoleUser, Content: "first", CreatedAt: base.Add(time.Second)},
		{ID: "m-3", Role: domain.RoleUser, Content: "third", CreatedAt: base.Add(3 * time.Second)},
	} {
		if _, err := s.AppendMessage(conv.ID, msg); err != nil {
			t.Fatalf("append %s: %v", msg.ID, err)
		}
	}
	got, err := s.ListMessages(conv.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "m-1" || got[1].ID != "m-2" || got[2].ID != "m-3" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestListConversationsByUserOrdersByActivity(t *testing.T) {
	s := NewMemoryStore()
	older := domain.Conversation{ID: "c-old", UserID: "u1", UpdatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := domain.Conversation{ID: "c-new", UserID: "u1", UpdatedAt: time.Now().UTC()}
	other := domain.Conversation{ID: "c-other", UserID: "u2", UpdatedAt: time.Now().UTC()}
	for _, conv := range []domain.Conversation{older, newer, other} {
		if _, err := s.CreateConversation(conv, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := s.ListConversationsByUser("u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c-new" || got[1].ID != "c-old" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
