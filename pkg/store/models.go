package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID              string `gorm:"primaryKey"`
	TokenIdentifier string `gorm:"uniqueIndex;not null"`
	Name            string
	Email           string `gorm:"index"`
	PictureURL      string
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time
}

// VideoModel caches one transcript per YouTube video. The unique index on
// video_id is what resolves concurrent create races.
type VideoModel struct {
	ID            string `gorm:"primaryKey"`
	VideoID       string `gorm:"uniqueIndex;not null"`
	URL           string `gorm:"not null"`
	Title         string
	Transcript    string    `gorm:"type:text;not null"`
	TranscriptRaw string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
}

type ConversationModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;index"`
	Title        *string
	Mode         string
	Model        string
	SystemPrompt string    `gorm:"type:text"`
	VideoID      *string   `gorm:"index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"not null;index"`
	Role           string `gorm:"not null"`
	Content        string `gorm:"type:text;not null"`
	SystemMessage  *bool
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	Attachments    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null;index"`
}

// FeedbackModel keeps exit feedback. Rows reference the user id without a
// foreign key so they survive account deletion.
type FeedbackModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	UserEmail string
	Feedback  string    `gorm:"type:text;not null"`
	Source    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
