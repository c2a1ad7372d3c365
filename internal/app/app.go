package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GarethPark/story-subscription-sub001/internal/auth"
	"github.com/GarethPark/story-subscription-sub001/internal/billing"
	"github.com/GarethPark/story-subscription-sub001/internal/domain"
	"github.com/GarethPark/story-subscription-sub001/internal/store"
	"github.com/GarethPark/story-subscription-sub001/internal/util"
	"github.com/GarethPark/story-subscription-sub001/pkg/ai"
	"github.com/GarethPark/story-subscription-sub001/pkg/storage"
)

const (
	defaultSessionTTL    = 24 * time.Hour
	defaultSignupCredits = 5
	coverURLExpiry       = time.Hour

	storySystemPrompt = "You are a fiction author writing short stories for a subscription reading app. " +
		"Write a complete, self-contained short story. Return only the story text."
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	JWTSecret      string
	SessionTTL     time.Duration
	GenerationCost int

	// Injected dependencies; nil values fall back to the URL/addr fields
	// above where a fallback exists.
	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.TextGenerator
	Portal    billing.PortalClient
	Covers    storage.ObjectStore
}

// App wires persistence, sessions, and external services behind one
// operation per HTTP action.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	generator      ai.TextGenerator
	portal         billing.PortalClient
	covers         storage.ObjectStore
	generationCost int
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.GenerationCost <= 0 {
		cfg.GenerationCost = 1
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case cfg.JWTSecret != "":
			sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		case cfg.RedisAddr != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("session store required (jwtSecret or redisAddr)")
		}
	}

	return &App{
		store:          dataStore,
		sessions:       sessionStore,
		generator:      cfg.Generator,
		portal:         cfg.Portal,
		covers:         cfg.Covers,
		generationCost: cfg.GenerationCost,
	}, nil
}

// SignUp registers a new user and issues a session token.
// The very first account becomes an administrator.
func (a *App) SignUp(email, password, name string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", fmt.Errorf("%w: email already registered", ErrInvalidInput)
	}
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Credits:      defaultSignupCredits,
		IsAdmin:      count == 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", fmt.Errorf("%w: invalid credentials", ErrInvalidInput)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout removes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// ListUsers returns all users newest first with related-row counts.
// Admin use only; the HTTP layer enforces that.
func (a *App) ListUsers() ([]domain.UserSummary, error) {
	return a.store.ListUsersWithCounts()
}

// AdjustCredits replaces a user's credit balance.
func (a *App) AdjustCredits(userID string, credits int) (domain.User, error) {
	if credits < 0 {
		return domain.User{}, fmt.Errorf("%w: credits must be >= 0", ErrInvalidInput)
	}
	user, err := a.store.SetCredits(userID, credits)
	if err != nil {
		return domain.User{}, mapStoreErr(err, "set credits")
	}
	return user, nil
}

// PublishStory marks a story as published. Idempotent.
func (a *App) PublishStory(storyID string) (domain.Story, error) {
	story, err := a.store.SetPublished(storyID, true)
	if err != nil {
		return domain.Story{}, mapStoreErr(err, "publish story")
	}
	return story, nil
}

// UnpublishStory clears the published flag. Idempotent.
func (a *App) UnpublishStory(storyID string) (domain.Story, error) {
	story, err := a.store.SetPublished(storyID, false)
	if err != nil {
		return domain.Story{}, mapStoreErr(err, "unpublish story")
	}
	return story, nil
}

// DeleteStory removes a story permanently.
func (a *App) DeleteStory(storyID string) error {
	if err := a.store.DeleteStory(storyID); err != nil {
		return mapStoreErr(err, "delete story")
	}
	return nil
}

// PublishedStories returns the public catalog, newest first.
func (a *App) PublishedStories() ([]domain.Story, error) {
	return a.store.ListPublishedStories()
}

// StoryByID fetches one story.
func (a *App) StoryByID(storyID string) (domain.Story, error) {
	story, ok, err := a.store.GetStory(storyID)
	if err != nil {
		return domain.Story{}, fmt.Errorf("get story: %w", err)
	}
	if !ok {
		return domain.Story{}, ErrNotFound
	}
	return story, nil
}

// CoverURL returns a pre-signed URL for the story's cover image, or ""
// when the story has none or cover storage is not configured.
func (a *App) CoverURL(ctx context.Context, story domain.Story) string {
	if a.covers == nil || story.CoverKey == "" {
		return ""
	}
	url, err := a.covers.PresignGet(ctx, story.CoverKey, coverURLExpiry)
	if err != nil {
		return ""
	}
	return url
}

// UploadCover stores a cover image for the story and records its key.
func (a *App) UploadCover(ctx context.Context, storyID, contentType string, r io.Reader, size int64) (domain.Story, error) {
	if a.covers == nil {
		return domain.Story{}, fmt.Errorf("cover storage not configured")
	}
	if _, ok, err := a.store.GetStory(storyID); err != nil {
		return domain.Story{}, fmt.Errorf("get story: %w", err)
	} else if !ok {
		return domain.Story{}, ErrNotFound
	}
	key := "covers/" + storyID
	if err := a.covers.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Story{}, fmt.Errorf("store cover: %w", err)
	}
	story, err := a.store.SetCoverKey(storyID, key)
	if err != nil {
		return domain.Story{}, mapStoreErr(err, "set cover key")
	}
	return story, nil
}

// GenerateStory produces a new unpublished story owned by the user and
// charges the generation cost.
func (a *App) GenerateStory(ctx context.Context, user domain.User, title, genre, prompt string) (domain.Story, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.Story{}, fmt.Errorf("%w: prompt required", ErrInvalidInput)
	}
	if a.generator == nil {
		return domain.Story{}, ErrGenerationUnavailable
	}
	if user.Credits < a.generationCost {
		return domain.Story{}, ErrInsufficientCredits
	}

	userPrompt := prompt
	if genre = strings.TrimSpace(genre); genre != "" {
		userPrompt = fmt.Sprintf("Genre: %s.\n%s", genre, prompt)
	}
	content, err := a.generator.GenerateText(ctx, storySystemPrompt, userPrompt)
	if err != nil {
		return domain.Story{}, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	if _, err := a.store.SpendCredits(user.ID, a.generationCost); err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			return domain.Story{}, ErrInsufficientCredits
		}
		return domain.Story{}, mapStoreErr(err, "spend credits")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = titleFromPrompt(prompt)
	}
	now := time.Now().UTC()
	story := domain.Story{
		ID:      util.NewID(),
		OwnerID: user.ID,
		Title:   title,
		Genre:   genre,
		Content: content,
		Metadata: map[string]string{
			"prompt": prompt,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveStory(story); err != nil {
		return domain.Story{}, fmt.Errorf("save story: %w", err)
	}
	return story, nil
}

// ReportProgress upserts the caller's reading position for a story.
func (a *App) ReportProgress(user domain.User, storyID string, progress float64) (domain.ReadingHistory, error) {
	if strings.TrimSpace(storyID) == "" {
		return domain.ReadingHistory{}, fmt.Errorf("%w: storyId required", ErrInvalidInput)
	}
	history := domain.ReadingHistory{
		UserID:     user.ID,
		StoryID:    storyID,
		Progress:   progress,
		LastReadAt: time.Now().UTC(),
	}
	if err := a.store.UpsertReadingHistory(history); err != nil {
		return domain.ReadingHistory{}, fmt.Errorf("upsert reading history: %w", err)
	}
	return history, nil
}

// FavoriteStory marks a story as a favorite of the user. Idempotent.
func (a *App) FavoriteStory(user domain.User, storyID string) error {
	if strings.TrimSpace(storyID) == "" {
		return fmt.Errorf("%w: storyId required", ErrInvalidInput)
	}
	return a.store.AddFavorite(user.ID, storyID)
}

// UnfavoriteStory removes a favorite. Idempotent.
func (a *App) UnfavoriteStory(user domain.User, storyID string) error {
	if strings.TrimSpace(storyID) == "" {
		return fmt.Errorf("%w: storyId required", ErrInvalidInput)
	}
	return a.store.RemoveFavorite(user.ID, storyID)
}

// SubmitFeedback records feedback from a user with pending status.
func (a *App) SubmitFeedback(user domain.User, message string) (domain.Feedback, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Feedback{}, fmt.Errorf("%w: message required", ErrInvalidInput)
	}
	now := time.Now().UTC()
	fb := domain.Feedback{
		ID:        util.NewID(),
		UserID:    user.ID,
		Message:   message,
		Status:    domain.FeedbackPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveFeedback(fb); err != nil {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return fb, nil
}

// ListFeedback returns all feedback newest first.
func (a *App) ListFeedback() ([]domain.Feedback, error) {
	return a.store.ListFeedback()
}

// SetFeedbackStatus updates the triage status of a feedback entry.
// Any status can move to any other.
func (a *App) SetFeedbackStatus(feedbackID string, status domain.FeedbackStatus) (domain.Feedback, error) {
	fb, err := a.store.SetFeedbackStatus(feedbackID, status)
	if err != nil {
		return domain.Feedback{}, mapStoreErr(err, "set feedback status")
	}
	return fb, nil
}

// BillingPortalURL creates a hosted billing-portal session for the user.
func (a *App) BillingPortalURL(ctx context.Context, user domain.User, returnURL string) (string, error) {
	if strings.TrimSpace(user.StripeCustomerID) == "" {
		return "", ErrNoBillingAccount
	}
	if a.portal == nil {
		return "", fmt.Errorf("billing not configured")
	}
	url, err := a.portal.PortalSessionURL(ctx, user.StripeCustomerID, returnURL)
	if err != nil {
		return "", fmt.Errorf("billing portal: %w", err)
	}
	return url, nil
}

func mapStoreErr(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func titleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if title == "" {
		return "Untitled story"
	}
	return title
}
