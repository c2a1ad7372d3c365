package domain

import "time"

type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackReviewed FeedbackStatus = "reviewed"
	FeedbackResolved FeedbackStatus = "resolved"
)

// User is the authenticated principal attached to a request.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	PasswordHash     string    `json:"-"`
	Credits          int       `json:"credits"`
	CreditsUsed      int       `json:"creditsUsed"`
	IsAdmin          bool      `json:"isAdmin"`
	StripeCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UserSummary is a user annotated with related-row counts for the admin
// user listing.
type UserSummary struct {
	User
	StoryCount    int64 `json:"storyCount"`
	FavoriteCount int64 `json:"favoriteCount"`
	HistoryCount  int64 `json:"historyCount"`
}

// Story is a piece of short fiction. Curated stories have no owner;
// user-generated stories carry the generating user's ID.
type Story struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"ownerId,omitempty"`
	Title     string            `json:"title"`
	Genre     string            `json:"genre,omitempty"`
	Content   string            `json:"content"`
	Published bool              `json:"published"`
	CoverKey  string            `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ReadingHistory records how far a user has read a story.
// At most one row exists per (user, story) pair.
type ReadingHistory struct {
	UserID     string    `json:"userId"`
	StoryID    string    `json:"storyId"`
	Progress   float64   `json:"progress"`
	LastReadAt time.Time `json:"lastReadAt"`
}

// Favorite marks a story a user wants to keep.
type Favorite struct {
	UserID    string    `json:"userId"`
	StoryID   string    `json:"storyId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Feedback struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Message   string         `json:"message"`
	Status    FeedbackStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
