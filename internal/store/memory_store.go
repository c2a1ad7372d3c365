package store

import (
	"sort"
	"sync"
	"time"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
	"github.com/GarethPark/story-subscription-sub001/internal/util"
)

type favoriteKey struct {
	userID  string
	storyID string
}

// MemoryStore keeps everything in-process. It backs handler and app tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	email     map[string]string // email -> user ID
	stories   map[string]domain.Story
	history   map[favoriteKey]domain.ReadingHistory
	favorites map[favoriteKey]domain.Favorite
	feedback  map[string]domain.Feedback
	sess      map[string]string // token -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		stories:   make(map[string]domain.Story),
		history:   make(map[favoriteKey]domain.ReadingHistory),
		favorites: make(map[favoriteKey]domain.Favorite),
		feedback:  make(map[string]domain.Feedback),
		sess:      make(map[string]string),
	}
}

// SaveUser creates or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// UserCount returns the number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// ListUsersWithCounts returns all users newest first with related counts.
func (m *MemoryStore) ListUsersWithCounts() ([]domain.UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UserSummary, 0, len(m.users))
	for _, u := range m.users {
		summary := domain.UserSummary{User: u}
		for _, s := range m.stories {
			if s.OwnerID == u.ID {
				summary.StoryCount++
			}
		}
		for key := range m.favorites {
			if key.userID == u.ID {
				summary.FavoriteCount++
			}
		}
		for key := range m.history {
			if key.userID == u.ID {
				summary.HistoryCount++
			}
		}
		res = append(res, summary)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// SetCredits replaces a user's credit balance.
func (m *MemoryStore) SetCredits(id string, credits int) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	u.Credits = credits
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

// SpendCredits deducts credits and bumps the consumed total.
func (m *MemoryStore) SpendCredits(id string, amount int) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if u.Credits < amount {
		return domain.User{}, ErrInsufficientCredits
	}
	u.Credits -= amount
	u.CreditsUsed += amount
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

// SaveStory creates or updates a story.
func (m *MemoryStore) SaveStory(s domain.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[s.ID] = s
	return nil
}

// GetStory retrieves a story by ID.
func (m *MemoryStore) GetStory(id string) (domain.Story, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[id]
	return s, ok, nil
}

// ListPublishedStories returns published stories newest first.
func (m *MemoryStore) ListPublishedStories() ([]domain.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Story, 0)
	for _, s := range m.stories {
		if s.Published {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// SetPublished flips the published flag.
func (m *MemoryStore) SetPublished(id string, published bool) (domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return domain.Story{}, ErrNotFound
	}
	s.Published = published
	s.UpdatedAt = time.Now().UTC()
	m.stories[id] = s
	return s, nil
}

// SetCoverKey records the cover object key.
func (m *MemoryStore) SetCoverKey(id, key string) (domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return domain.Story{}, ErrNotFound
	}
	s.CoverKey = key
	s.UpdatedAt = time.Now().UTC()
	m.stories[id] = s
	return s, nil
}

// DeleteStory removes the story and dependent rows.
func (m *MemoryStore) DeleteStory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stories[id]; !ok {
		return ErrNotFound
	}
	delete(m.stories, id)
	for key := range m.history {
		if key.storyID == id {
			delete(m.history, key)
		}
	}
	for key := range m.favorites {
		if key.storyID == id {
			delete(m.favorites, key)
		}
	}
	return nil
}

// UpsertReadingHistory creates or overwrites the (user, story) row.
func (m *MemoryStore) UpsertReadingHistory(h domain.ReadingHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[favoriteKey{userID: h.UserID, storyID: h.StoryID}] = h
	return nil
}

// GetReadingHistory returns the row for a (user, story) pair.
func (m *MemoryStore) GetReadingHistory(userID, storyID string) (domain.ReadingHistory, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[favoriteKey{userID: userID, storyID: storyID}]
	return h, ok, nil
}

// ReadingHistoryCount reports the number of rows. Test helper.
func (m *MemoryStore) ReadingHistoryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

// AddFavorite marks a story as favorited. Idempotent.
func (m *MemoryStore) AddFavorite(userID, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := favoriteKey{userID: userID, storyID: storyID}
	if _, ok := m.favorites[key]; !ok {
		m.favorites[key] = domain.Favorite{
			UserID:    userID,
			StoryID:   storyID,
			CreatedAt: time.Now().UTC(),
		}
	}
	return nil
}

// RemoveFavorite unmarks a favorite.
func (m *MemoryStore) RemoveFavorite(userID, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.favorites, favoriteKey{userID: userID, storyID: storyID})
	return nil
}

// SaveFeedback records a feedback entry.
func (m *MemoryStore) SaveFeedback(f domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[f.ID] = f
	return nil
}

// ListFeedback returns all feedback newest first.
func (m *MemoryStore) ListFeedback() ([]domain.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Feedback, 0, len(m.feedback))
	for _, f := range m.feedback {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// GetFeedback returns one feedback row.
func (m *MemoryStore) GetFeedback(id string) (domain.Feedback, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.feedback[id]
	return f, ok, nil
}

// SetFeedbackStatus updates the triage status.
func (m *MemoryStore) SetFeedbackStatus(id string, status domain.FeedbackStatus) (domain.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feedback[id]
	if !ok {
		return domain.Feedback{}, ErrNotFound
	}
	f.Status = status
	f.UpdatedAt = time.Now().UTC()
	m.feedback[id] = f
	return f, nil
}

// NewSession creates a session token bound to a user. Implements SessionStore.
func (m *MemoryStore) NewSession(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := util.NewID()
	m.sess[token] = userID
	return token, nil
}

// GetUserIDByToken resolves a token to the bound user ID.
func (m *MemoryStore) GetUserIDByToken(token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.sess[token]
	return uid, ok, nil
}

// DeleteSession removes a token mapping.
func (m *MemoryStore) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, token)
	return nil
}
