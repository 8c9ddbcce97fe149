package domain

import "time"

// PromptMode selects the prompt/model preset a conversation was started with.
type PromptMode string

const (
	ModeSummary     PromptMode = "summary"
	ModeQuiz        PromptMode = "quiz"
	ModeExplain     PromptMode = "explain"
	ModeInteractive PromptMode = "interactive"
	ModeKeyPoints   PromptMode = "key-points"
)

// MessageRole is the author role of a stored message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// FeedbackSource tags where a piece of user feedback was collected.
type FeedbackSource string

const (
	FeedbackAccountDeletion FeedbackSource = "account_deletion"
)

// Identity is the verified assertion from the identity provider for one
// request. Subject is the stable provider user id (e.g. "auth0|abc123").
type Identity struct {
	Subject    string `json:"subject"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	PictureURL string `json:"pictureUrl,omitempty"`
}

// Valid reports whether the assertion carries a usable subject.
func (i Identity) Valid() bool {
	return i.Subject != ""
}

type User struct {
	ID              string    `json:"id"`
	TokenIdentifier string    `json:"-"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	PictureURL      string    `json:"pictureUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Video is a cached YouTube transcript, shared across users.
type Video struct {
	ID            string    `json:"id"`
	VideoID       string    `json:"videoId"`
	URL           string    `json:"url"`
	Title         string    `json:"title,omitempty"`
	Transcript    string    `json:"transcript"`
	TranscriptRaw string    `json:"transcriptRaw,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Conversation struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Title        *string    `json:"title,omitempty"`
	Mode         PromptMode `json:"mode,omitempty"`
	Model        string     `json:"model,omitempty"`
	SystemPrompt string     `json:"systemPrompt,omitempty"`
	VideoID      string     `json:"youtubeVideoId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// MessageMetadata is written once by the orchestrator's completion callback
// and only ever set on assistant messages. Every field is independently
// optional so records persisted under older shapes still load.
type MessageMetadata struct {
	Model            string `json:"model,omitempty"`
	PromptTokens     *int   `json:"promptTokens,omitempty"`
	CompletionTokens *int   `json:"completionTokens,omitempty"`
	TotalTokens      *int   `json:"totalTokens,omitempty"`
	LatencyMs        *int64 `json:"latencyMs,omitempty"`
	FinishReason     string `json:"finishReason,omitempty"`
}

// Attachment references a stored blob linked to a message.
type Attachment struct {
	Type       string `json:"type"`
	URL        string `json:"url,omitempty"`
	StorageKey string `json:"storageKey,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Name       string `json:"name,omitempty"`
}

type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	Role           MessageRole      `json:"role"`
	Content        string           `json:"content"`
	SystemMessage  *bool            `json:"systemMessage,omitempty"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	Attachments    []Attachment     `json:"attachments,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Feedback is free-text exit feedback. It keeps the user id of a deleted
// account on purpose: the row must survive the deletion cascade.
type Feedback struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	UserEmail string         `json:"userEmail,omitempty"`
	Feedback  string         `json:"feedback"`
	Source    FeedbackSource `json:"source"`
	CreatedAt time.Time      `json:"createdAt"`
}
