package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&StoryModel{},
		&ReadingHistoryModel{},
		&FavoriteModel{},
		&FeedbackModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser creates or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash", "stripe_customer_id", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns the number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

type userSummaryRow struct {
	UserModel
	StoryCount    int64
	FavoriteCount int64
	HistoryCount  int64
}

// ListUsersWithCounts returns all users newest first, annotated with counts
// of their generated stories, favorites, and reading-history rows.
func (s *GormStore) ListUsersWithCounts() ([]domain.UserSummary, error) {
	var rows []userSummaryRow
	err := s.db.Model(&UserModel{}).
		Select("user_models.*, " +
			"(SELECT count(*) FROM story_models WHERE story_models.owner_id = user_models.id) AS story_count, " +
			"(SELECT count(*) FROM favorite_models WHERE favorite_models.user_id = user_models.id) AS favorite_count, " +
			"(SELECT count(*) FROM reading_history_models WHERE reading_history_models.user_id = user_models.id) AS history_count").
		Order("created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.UserSummary, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.UserSummary{
			User:          userFromModel(row.UserModel),
			StoryCount:    row.StoryCount,
			FavoriteCount: row.FavoriteCount,
			HistoryCount:  row.HistoryCount,
		})
	}
	return res, nil
}

// SetCredits replaces a user's credit balance.
func (s *GormStore) SetCredits(id string, credits int) (domain.User, error) {
	res := s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"credits":    credits,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.User{}, ErrNotFound
	}
	user, _, err := s.GetUserByID(id)
	return user, err
}

// SpendCredits atomically deducts credits and bumps the consumed total.
// The WHERE guard keeps concurrent spends from going negative.
func (s *GormStore) SpendCredits(id string, amount int) (domain.User, error) {
	res := s.db.Model(&UserModel{}).
		Where("id = ? AND credits >= ?", id, amount).
		Updates(map[string]any{
			"credits":      gorm.Expr("credits - ?", amount),
			"credits_used": gorm.Expr("credits_used + ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		if _, found, err := s.GetUserByID(id); err != nil {
			return domain.User{}, err
		} else if !found {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, ErrInsufficientCredits
	}
	user, _, err := s.GetUserByID(id)
	return user, err
}

// SaveStory creates or updates a story.
func (s *GormStore) SaveStory(story domain.Story) error {
	model, err := storyToModel(story)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "genre", "content", "published", "cover_key", "metadata", "updated_at"}),
	}).Create(&model).Error
}

// GetStory retrieves a story by ID.
func (s *GormStore) GetStory(id string) (domain.Story, bool, error) {
	var model StoryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Story{}, false, nil
		}
		return domain.Story{}, false, err
	}
	return storyFromModel(model), true, nil
}

// ListPublishedStories returns published stories newest first.
func (s *GormStore) ListPublishedStories() ([]domain.Story, error) {
	var models []StoryModel
	if err := s.db.Where("published = ?", true).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Story, 0, len(models))
	for _, m := range models {
		res = append(res, storyFromModel(m))
	}
	return res, nil
}

// SetPublished flips the published flag. Idempotent.
func (s *GormStore) SetPublished(id string, published bool) (domain.Story, error) {
	return s.updateStory(id, map[string]any{"published": published})
}

// SetCoverKey records the object-store key of the story's cover image.
func (s *GormStore) SetCoverKey(id, key string) (domain.Story, error) {
	return s.updateStory(id, map[string]any{"cover_key": key})
}

func (s *GormStore) updateStory(id string, fields map[string]any) (domain.Story, error) {
	fields["updated_at"] = time.Now().UTC()
	res := s.db.Model(&StoryModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return domain.Story{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Story{}, ErrNotFound
	}
	story, _, err := s.GetStory(id)
	return story, err
}

// DeleteStory removes the story and its dependent rows.
func (s *GormStore) DeleteStory(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ReadingHistoryModel{}, "story_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&FavoriteModel{}, "story_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&StoryModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpsertReadingHistory creates the row on first read and overwrites
// progress and timestamp after that. The composite primary key keeps
// concurrent reports from producing duplicates.
func (s *GormStore) UpsertReadingHistory(h domain.ReadingHistory) error {
	model := ReadingHistoryModel{
		UserID:     h.UserID,
		StoryID:    h.StoryID,
		Progress:   h.Progress,
		LastReadAt: h.LastReadAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "story_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"progress", "last_read_at"}),
	}).Create(&model).Error
}

// GetReadingHistory returns the row for a (user, story) pair.
func (s *GormStore) GetReadingHistory(userID, storyID string) (domain.ReadingHistory, bool, error) {
	var model ReadingHistoryModel
	err := s.db.First(&model, "user_id = ? AND story_id = ?", userID, storyID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ReadingHistory{}, false, nil
		}
		return domain.ReadingHistory{}, false, err
	}
	return domain.ReadingHistory{
		UserID:     model.UserID,
		StoryID:    model.StoryID,
		Progress:   model.Progress,
		LastReadAt: model.LastReadAt,
	}, true, nil
}

// AddFavorite marks a story as favorited. Idempotent.
func (s *GormStore) AddFavorite(userID, storyID string) error {
	model := FavoriteModel{
		UserID:    userID,
		StoryID:   storyID,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// RemoveFavorite unmarks a favorite. Removing an absent row is not an error.
func (s *GormStore) RemoveFavorite(userID, storyID string) error {
	return s.db.Delete(&FavoriteModel{}, "user_id = ? AND story_id = ?", userID, storyID).Error
}

// SaveFeedback records a feedback entry.
func (s *GormStore) SaveFeedback(f domain.Feedback) error {
	model := feedbackToModel(f)
	return s.db.Create(&model).Error
}

// ListFeedback returns all feedback newest first.
func (s *GormStore) ListFeedback() ([]domain.Feedback, error) {
	var models []FeedbackModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Feedback, 0, len(models))
	for _, m := range models {
		res = append(res, feedbackFromModel(m))
	}
	return res, nil
}

// GetFeedback returns one feedback row.
func (s *GormStore) GetFeedback(id string) (domain.Feedback, bool, error) {
	var model FeedbackModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Feedback{}, false, nil
		}
		return domain.Feedback{}, false, err
	}
	return feedbackFromModel(model), true, nil
}

// SetFeedbackStatus updates the triage status.
func (s *GormStore) SetFeedbackStatus(id string, status domain.FeedbackStatus) (domain.Feedback, error) {
	res := s.db.Model(&FeedbackModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Feedback{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Feedback{}, ErrNotFound
	}
	fb, _, err := s.GetFeedback(id)
	return fb, err
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PasswordHash:     u.PasswordHash,
		Credits:          u.Credits,
		CreditsUsed:      u.CreditsUsed,
		IsAdmin:          u.IsAdmin,
		StripeCustomerID: u.StripeCustomerID,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:               m.ID,
		Email:            m.Email,
		Name:             m.Name,
		PasswordHash:     m.PasswordHash,
		Credits:          m.Credits,
		CreditsUsed:      m.CreditsUsed,
		IsAdmin:          m.IsAdmin,
		StripeCustomerID: m.StripeCustomerID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func storyToModel(s domain.Story) (StoryModel, error) {
	model := StoryModel{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Title:     s.Title,
		Genre:     s.Genre,
		Content:   s.Content,
		Published: s.Published,
		CoverKey:  s.CoverKey,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if len(s.Metadata) > 0 {
		raw, err := json.Marshal(s.Metadata)
		if err != nil {
			return StoryModel{}, fmt.Errorf("marshal story metadata: %w", err)
		}
		model.Metadata = datatypes.JSON(raw)
	}
	return model, nil
}

func storyFromModel(m StoryModel) domain.Story {
	story := domain.Story{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Title:     m.Title,
		Genre:     m.Genre,
		Content:   m.Content,
		Published: m.Published,
		CoverKey:  m.CoverKey,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Metadata) > 0 {
		meta := map[string]string{}
		if err := json.Unmarshal(m.Metadata, &meta); err == nil {
			story.Metadata = meta
		}
	}
	return story
}

func feedbackToModel(f domain.Feedback) FeedbackModel {
	return FeedbackModel{
		ID:        f.ID,
		UserID:    f.UserID,
		Message:   f.Message,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func feedbackFromModel(m FeedbackModel) domain.Feedback {
	return domain.Feedback{
		ID:        m.ID,
		UserID:    m.UserID,
		Message:   m.Message,
		Status:    domain.FeedbackStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
