package store

import (
	"errors"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
)

var (
	// ErrNotFound reports that the keyed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientCredits reports that a guarded credit spend found
	// fewer credits than requested.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Store defines persistence operations for users, stories, reading history,
// favorites, and feedback.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UserCount() (int, error)
	ListUsersWithCounts() ([]domain.UserSummary, error)
	SetCredits(id string, credits int) (domain.User, error)
	SpendCredits(id string, amount int) (domain.User, error)

	// stories
	SaveStory(domain.Story) error
	GetStory(id string) (domain.Story, bool, error)
	ListPublishedStories() ([]domain.Story, error)
	SetPublished(id string, published bool) (domain.Story, error)
	SetCoverKey(id, key string) (domain.Story, error)
	DeleteStory(id string) error

	// reading history
	UpsertReadingHistory(domain.ReadingHistory) error
	GetReadingHistory(userID, storyID string) (domain.ReadingHistory, bool, error)

	// favorites
	AddFavorite(userID, storyID string) error
	RemoveFavorite(userID, storyID string) error

	// feedback
	SaveFeedback(domain.Feedback) error
	ListFeedback() ([]domain.Feedback, error)
	GetFeedback(id string) (domain.Feedback, bool, error)
	SetFeedbackStatus(id string, status domain.FeedbackStatus) (domain.Feedback, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
