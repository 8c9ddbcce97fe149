package store

import (
	"tubechat/pkg/domain"
)

// Store defines persistence operations for users, videos, conversations,
// messages, and feedback.
type Store interface {
	// users
	UpsertUser(identity domain.Identity) (domain.User, error)
	GetUserBySubject(subject string) (domain.User, bool, error)
	DeleteUser(id string) error

	// videos
	CreateVideo(video domain.Video) (domain.Video, error)
	GetVideoByVideoID(videoID string) (domain.Video, bool, error)

	// conversations
	CreateConversation(conversation domain.Conversation, firstMessages []domain.Message) (domain.Conversation, error)
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error)
	SetConversationTitle(id string, title string) error
	DeleteConversation(id string) error

	// messages
	AppendMessage(conversationID string, msg domain.Message) (domain.Message, error)
	ListMessages(conversationID string, limit int) ([]domain.Message, error)
	CountMessages(conversationID string) (int, error)

	// feedback
	SaveFeedback(feedback domain.Feedback) error
}
