package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"tubechat/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs unit tests and local
// development without Postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User // key: user ID
	subjects      map[string]string      // token identifier -> user ID
	videos        map[string]domain.Video
	videoIDs      map[string]string // youtube video id -> record ID
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // key: conversation ID
	feedback      []domain.Feedback
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		subjects:      make(map[string]string),
		videos:        make(map[string]domain.Video),
		videoIDs:      make(map[string]string),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

// UpsertUser creates or refreshes a user keyed by provider subject.
func (m *MemoryStore) UpsertUser(identity domain.Identity) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if id, ok := m.subjects[identity.Subject]; ok {
		user := m.users[id]
		user.Name = identity.Name
		user.Email = identity.Email
		user.PictureURL = identity.PictureURL
		user.UpdatedAt = now
		m.users[id] = user
		return user, nil
	}
	user := domain.User{
		ID:              NewID(),
		TokenIdentifier: identity.Subject,
		Name:            identity.Name,
		Email:           identity.Email,
		PictureURL:      identity.PictureURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.users[user.ID] = user
	m.subjects[identity.Subject] = user.ID
	return user, nil
}

// GetUserBySubject looks up a user by provider subject.
func (m *MemoryStore) GetUserBySubject(subject string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.subjects[subject]; ok {
		user, exists := m.users[id]
		return user, exists, nil
	}
	return domain.User{}, false, nil
}

// DeleteUser removes the user row and any conversations still attached.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for convID, conv := range m.conversations {
		if conv.UserID == id {
			delete(m.conversations, convID)
			delete(m.messages, convID)
		}
	}
	if user, ok := m.users[id]; ok {
		delete(m.subjects, user.TokenIdentifier)
		delete(m.users, id)
	}
	return nil
}

// CreateVideo inserts a transcript record; a duplicate youtube id returns
// the first writer's row.
func (m *MemoryStore) CreateVideo(video domain.Video) (domain.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.videoIDs[video.VideoID]; ok {
		return m.videos[id], nil
	}
	m.videos[video.ID] = video
	m.videoIDs[video.VideoID] = video.ID
	return video, nil
}

// GetVideoByVideoID retrieves a video by its YouTube id.
func (m *MemoryStore) GetVideoByVideoID(videoID string) (domain.Video, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.videoIDs[videoID]; ok {
		video, exists := m.videos[id]
		return video, exists, nil
	}
	return domain.Video{}, false, nil
}

// CreateConversation creates a conversation and its seed messages.
func (m *MemoryStore) CreateConversation(conversation domain.Conversation, firstMessages []domain.Message) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.ID] = conversation
	for _, msg := range firstMessages {
		msg.ConversationID = conversation.ID
		m.messages[conversation.ID] = append(m.messages[conversation.ID], msg)
	}
	return conversation, nil
}

// GetConversation returns one conversation by ID.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	return conv, ok, nil
}

// ListConversationsByUser returns a user's conversations, most recently
// active first.
func (m *MemoryStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			res = append(res, conv)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// SetConversationTitle updates the title and bumps updated_at.
func (m *MemoryStore) SetConversationTitle(id string, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(title)
	conv.Title = &trimmed
	conv.UpdatedAt = time.Now().UTC()
	m.conversations[id] = conv
	return nil
}

// DeleteConversation removes the conversation and its messages.
func (m *MemoryStore) DeleteConversation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

// AppendMessage records a message and bumps the conversation's updated_at to
// the message's creation timestamp, so activity ordering and the newest
// message always agree.
func (m *MemoryStore) AppendMessage(conversationID string, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ConversationID = conversationID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	if conv, ok := m.conversations[conversationID]; ok {
		conv.UpdatedAt = msg.CreatedAt
		m.conversations[conversationID] = conv
	}
	return msg, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (m *MemoryStore) ListMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Message, len(m.messages[conversationID]))
	copy(out, m.messages[conversationID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountMessages returns the number of messages in a conversation.
func (m *MemoryStore) CountMessages(conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[conversationID]), nil
}

// SaveFeedback records exit feedback. Rows are never removed, so they
// survive account deletion.
func (m *MemoryStore) SaveFeedback(feedback domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, feedback)
	return nil
}

// ListFeedback returns recorded feedback. Test helper.
func (m *MemoryStore) ListFeedback() []domain.Feedback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Feedback, len(m.feedback))
	copy(out, m.feedback)
	return out
}
