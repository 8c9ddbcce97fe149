package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tubechat/pkg/domain"
)

const migrateLockID int64 = 48215314

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &VideoModel{}, &ConversationModel{}, &MessageModel{}, &FeedbackModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM message_models m
				WHERE NOT EXISTS (SELECT 1 FROM conversation_models c WHERE c.id = m.conversation_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_conversation_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure message foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// UpsertUser creates the user for a provider subject or refreshes its
// profile fields. The stored id is stable across upserts.
func (s *GormStore) UpsertUser(identity domain.Identity) (domain.User, error) {
	now := time.Now().UTC()
	model := UserModel{
		ID:              NewID(),
		TokenIdentifier: identity.Subject,
		Name:            identity.Name,
		Email:           identity.Email,
		PictureURL:      identity.PictureURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "picture_url", "updated_at"}),
	}).Create(&model).Error; err != nil {
		return domain.User{}, err
	}
	var out UserModel
	if err := s.db.First(&out, "token_identifier = ?", identity.Subject).Error; err != nil {
		return domain.User{}, err
	}
	return userFromModel(out), nil
}

// GetUserBySubject looks up a user by its provider subject.
func (s *GormStore) GetUserBySubject(subject string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "token_identifier = ?", subject).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// DeleteUser removes the user row and any conversations still attached to it.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var conversationIDs []string
		if err := tx.Model(&ConversationModel{}).
			Where("user_id = ?", id).
			Pluck("id", &conversationIDs).Error; err != nil {
			return err
		}
		if len(conversationIDs) > 0 {
			if err := tx.Delete(&MessageModel{}, "conversation_id IN ?", conversationIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&ConversationModel{}, "id IN ?", conversationIDs).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// CreateVideo inserts a cached transcript. On a concurrent duplicate the
// insert degrades to a read and the first writer's row is returned.
func (s *GormStore) CreateVideo(video domain.Video) (domain.Video, error) {
	model := videoToModel(video)
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.Video{}, err
	}
	var out VideoModel
	if err := s.db.First(&out, "video_id = ?", video.VideoID).Error; err != nil {
		return domain.Video{}, err
	}
	return videoFromModel(out), nil
}

// GetVideoByVideoID retrieves a video by its YouTube id.
func (s *GormStore) GetVideoByVideoID(videoID string) (domain.Video, bool, error) {
	var model VideoModel
	if err := s.db.First(&model, "video_id = ?", videoID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Video{}, false, nil
		}
		return domain.Video{}, false, err
	}
	return videoFromModel(model), true, nil
}

// CreateConversation creates a conversation and its seed messages in one
// transaction.
func (s *GormStore) CreateConversation(conversation domain.Conversation, firstMessages []domain.Message) (domain.Conversation, error) {
	model := conversationToModel(conversation)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		for i := range firstMessages {
			msgModel := messageToModel(firstMessages[i])
			msgModel.ConversationID = model.ID
			if err := tx.Create(&msgModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(model), nil
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByUser returns a user's conversations, most recently
// active first. A non-positive limit returns all of them.
func (s *GormStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	query := s.db.Where("user_id = ?", userID).Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []ConversationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// SetConversationTitle updates the title and bumps updated_at.
func (s *GormStore) SetConversationTitle(id string, title string) error {
	return s.db.Model(&ConversationModel{}).Where("id = ?", id).Updates(map[string]any{
		"title":      strings.TrimSpace(title),
		"updated_at": time.Now().UTC(),
	}).Error
}

// DeleteConversation removes the conversation and its messages.
func (s *GormStore) DeleteConversation(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
}

// AppendMessage records a message and bumps the conversation's updated_at to
// the message's creation timestamp, so activity ordering and the newest
// message always agree.
func (s *GormStore) AppendMessage(conversationID string, msg domain.Message) (domain.Message, error) {
	model := messageToModel(msg)
	model.ConversationID = conversationID
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&ConversationModel{}).
			Where("id = ?", conversationID).
			Update("updated_at", model.CreatedAt).Error
	})
	if err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(model), nil
}

// ListMessages returns a conversation's messages in chronological order.
// A non-positive limit returns all of them.
func (s *GormStore) ListMessages(conversationID string, limit int) ([]domain.Message, error) {
	query := s.db.Where("conversation_id = ?", conversationID).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

// CountMessages returns the number of messages in a conversation.
func (s *GormStore) CountMessages(conversationID string) (int, error) {
	var count int64
	if err := s.db.Model(&MessageModel{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveFeedback records exit feedback.
func (s *GormStore) SaveFeedback(feedback domain.Feedback) error {
	model := feedbackToModel(feedback)
	return s.db.Create(&model).Error
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:              m.ID,
		TokenIdentifier: m.TokenIdentifier,
		Name:            m.Name,
		Email:           m.Email,
		PictureURL:      m.PictureURL,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func videoToModel(v domain.Video) VideoModel {
	return VideoModel{
		ID:            v.ID,
		VideoID:       v.VideoID,
		URL:           v.URL,
		Title:         v.Title,
		Transcript:    v.Transcript,
		TranscriptRaw: v.TranscriptRaw,
		CreatedAt:     v.CreatedAt,
	}
}

func videoFromModel(m VideoModel) domain.Video {
	return domain.Video{
		ID:            m.ID,
		VideoID:       m.VideoID,
		URL:           m.URL,
		Title:         m.Title,
		Transcript:    m.Transcript,
		TranscriptRaw: m.TranscriptRaw,
		CreatedAt:     m.CreatedAt,
	}
}

func conversationToModel(c domain.Conversation) ConversationModel {
	var videoID *string
	if strings.TrimSpace(c.VideoID) != "" {
		value := strings.TrimSpace(c.VideoID)
		videoID = &value
	}
	return ConversationModel{
		ID:           c.ID,
		UserID:       c.UserID,
		Title:        c.Title,
		Mode:         string(c.Mode),
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		VideoID:      videoID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	videoID := ""
	if m.VideoID != nil {
		videoID = strings.TrimSpace(*m.VideoID)
	}
	return domain.Conversation{
		ID:           m.ID,
		UserID:       m.UserID,
		Title:        m.Title,
		Mode:         domain.PromptMode(m.Mode),
		Model:        m.Model,
		SystemPrompt: m.SystemPrompt,
		VideoID:      videoID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	var metadata []byte
	if msg.Metadata != nil {
		metadata, _ = json.Marshal(msg.Metadata)
	}
	var attachments []byte
	if len(msg.Attachments) > 0 {
		attachments, _ = json.Marshal(msg.Attachments)
	}
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		SystemMessage:  msg.SystemMessage,
		Metadata:       metadata,
		Attachments:    attachments,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	var metadata *domain.MessageMetadata
	if len(m.Metadata) > 0 {
		var decoded domain.MessageMetadata
		if err := json.Unmarshal(m.Metadata, &decoded); err == nil {
			metadata = &decoded
		}
	}
	var attachments []domain.Attachment
	if len(m.Attachments) > 0 {
		_ = json.Unmarshal(m.Attachments, &attachments)
	}
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.MessageRole(m.Role),
		Content:        m.Content,
		SystemMessage:  m.SystemMessage,
		Metadata:       metadata,
		Attachments:    attachments,
		CreatedAt:      m.CreatedAt,
	}
}

func feedbackToModel(f domain.Feedback) FeedbackModel {
	return FeedbackModel{
		ID:        f.ID,
		UserID:    f.UserID,
		UserEmail: f.UserEmail,
		Feedback:  f.Feedback,
		Source:    string(f.Source),
		CreatedAt: f.CreatedAt,
	}
}
