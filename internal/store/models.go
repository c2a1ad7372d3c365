package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID               string    `gorm:"primaryKey"`
	Email            string    `gorm:"uniqueIndex;not null"`
	Name             string    ``
	PasswordHash     string    `gorm:"not null"`
	Credits          int       `gorm:"not null;default:0"`
	CreditsUsed      int       `gorm:"not null;default:0"`
	IsAdmin          bool      `gorm:"not null;default:false"`
	StripeCustomerID string    ``
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

type StoryModel struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"index"`
	Title     string `gorm:"not null"`
	Genre     string ``
	Content   string `gorm:"type:text;not null"`
	Published bool   `gorm:"not null;default:false;index"`
	CoverKey  string ``
	Metadata  datatypes.JSON
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type ReadingHistoryModel struct {
	UserID     string    `gorm:"primaryKey"`
	StoryID    string    `gorm:"primaryKey"`
	Progress   float64   `gorm:"not null;default:0"`
	LastReadAt time.Time `gorm:"not null"`
}

type FavoriteModel struct {
	UserID    string    `gorm:"primaryKey"`
	StoryID   string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

type FeedbackModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index"`
	Message   string    `gorm:"type:text;not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
