package app

import (
	"context"
	"errors"
	"testing"

	"github.com/GarethPark/story-subscription-sub001/internal/domain"
	"github.com/GarethPark/story-subscription-sub001/internal/store"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (g *stubGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

type stubPortal struct {
	url          string
	err          error
	lastCustomer string
	lastReturn   string
}

func (p *stubPortal) PortalSessionURL(_ context.Context, customerID, returnURL string) (string, error) {
	p.lastCustomer = customerID
	p.lastReturn = returnURL
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

func newTestApp(t *testing.T, gen *stubGenerator, portal *stubPortal) (*App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	cfg := Config{
		Store:          mem,
		Sessions:       mem,
		GenerationCost: 2,
	}
	if gen != nil {
		cfg.Generator = gen
	}
	if portal != nil {
		cfg.Portal = portal
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem
}

func TestSignUpFirstUserIsAdmin(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)

	first, token, err := a.SignUp("admin@example.com", "secret", "Admin")
	if err != nil {
		t.Fatalf("signup first: %v", err)
	}
	if !first.IsAdmin {
		t.Fatal("first user should be admin")
	}
	if first.Credits != defaultSignupCredits {
		t.Fatalf("expected %d signup credits, got %d", defaultSignupCredits, first.Credits)
	}
	if got, ok := a.UserFromToken(token); !ok || got.ID != first.ID {
		t.Fatalf("token should resolve first user, got %+v ok=%v", got, ok)
	}

	second, _, err := a.SignUp("reader@example.com", "secret", "Reader")
	if err != nil {
		t.Fatalf("signup second: %v", err)
	}
	if second.IsAdmin {
		t.Fatal("second user should not be admin")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	if _, _, err := a.SignUp("a@example.com", "secret", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, err := a.SignUp("A@Example.com", "other", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("duplicate email expected ErrInvalidInput, got %v", err)
	}
}

func TestLoginAndLogout(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := a.Login("a@example.com", "wrong"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("wrong password expected ErrInvalidInput, got %v", err)
	}

	got, token, err := a.Login("a@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned user %q, want %q", got.ID, user.ID)
	}

	if err := a.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromToken(token); ok {
		t.Fatal("token should be invalid after logout")
	}
}

func TestGenerateStoryChargesCreditsAndSaves(t *testing.T) {
	gen := &stubGenerator{text: "Once upon a time."}
	a, mem := newTestApp(t, gen, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	story, err := a.GenerateStory(context.Background(), user, "", "mystery", "a detective in a lighthouse")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if story.Content != "Once upon a time." {
		t.Fatalf("unexpected content %q", story.Content)
	}
	if story.Published {
		t.Fatal("generated story should start unpublished")
	}
	if story.OwnerID != user.ID {
		t.Fatalf("story owner %q, want %q", story.OwnerID, user.ID)
	}

	saved, ok, err := mem.GetStory(story.ID)
	if err != nil || !ok {
		t.Fatalf("story not persisted: ok=%v err=%v", ok, err)
	}
	if saved.Genre != "mystery" {
		t.Fatalf("saved genre %q, want mystery", saved.Genre)
	}

	after, _, _ := mem.GetUserByID(user.ID)
	if after.Credits != defaultSignupCredits-2 {
		t.Fatalf("credits after generate = %d, want %d", after.Credits, defaultSignupCredits-2)
	}
	if after.CreditsUsed != 2 {
		t.Fatalf("creditsUsed after generate = %d, want 2", after.CreditsUsed)
	}
}

func TestGenerateStoryInsufficientCredits(t *testing.T) {
	gen := &stubGenerator{text: "story"}
	a, mem := newTestApp(t, gen, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := mem.SetCredits(user.ID, 1); err != nil {
		t.Fatalf("set credits: %v", err)
	}
	user.Credits = 1

	_, err = a.GenerateStory(context.Background(), user, "", "", "prompt")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator should not be called when credits are short, got %d calls", gen.calls)
	}
	after, _, _ := mem.GetUserByID(user.ID)
	if after.Credits != 1 {
		t.Fatalf("credits changed on failed generate: %d", after.Credits)
	}
}

func TestGenerateStoryProviderFailureDoesNotCharge(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream timeout")}
	a, mem := newTestApp(t, gen, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, err = a.GenerateStory(context.Background(), user, "", "", "prompt")
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
	after, _, _ := mem.GetUserByID(user.ID)
	if after.Credits != defaultSignupCredits {
		t.Fatalf("credits changed on provider failure: %d", after.Credits)
	}
}

func TestGenerateStoryRequiresPrompt(t *testing.T) {
	a, _ := newTestApp(t, &stubGenerator{text: "x"}, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := a.GenerateStory(context.Background(), user, "", "", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank prompt expected ErrInvalidInput, got %v", err)
	}
}

func TestReportProgressUpserts(t *testing.T) {
	a, mem := newTestApp(t, nil, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := a.ReportProgress(user, "story-1", 0.25); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if _, err := a.ReportProgress(user, "story-1", 0.8); err != nil {
		t.Fatalf("second report: %v", err)
	}
	if got := mem.ReadingHistoryCount(); got != 1 {
		t.Fatalf("expected one history row, got %d", got)
	}
	h, ok, err := mem.GetReadingHistory(user.ID, "story-1")
	if err != nil || !ok {
		t.Fatalf("history not found: ok=%v err=%v", ok, err)
	}
	if h.Progress != 0.8 {
		t.Fatalf("progress = %v, want 0.8", h.Progress)
	}

	if _, err := a.ReportProgress(user, "  ", 0.5); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank storyId expected ErrInvalidInput, got %v", err)
	}
}

func TestAdjustCredits(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	updated, err := a.AdjustCredits(user.ID, 42)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if updated.Credits != 42 {
		t.Fatalf("credits = %d, want 42", updated.Credits)
	}

	if _, err := a.AdjustCredits(user.ID, -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative credits expected ErrInvalidInput, got %v", err)
	}
	if _, err := a.AdjustCredits("missing", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user expected ErrNotFound, got %v", err)
	}
}

func TestPublishUnpublishDelete(t *testing.T) {
	a, mem := newTestApp(t, nil, nil)
	if err := mem.SaveStory(domain.Story{ID: "s1", Title: "The Tide"}); err != nil {
		t.Fatalf("save story: %v", err)
	}

	story, err := a.PublishStory("s1")
	if err != nil || !story.Published {
		t.Fatalf("publish: published=%v err=%v", story.Published, err)
	}
	// Publishing again stays published.
	story, err = a.PublishStory("s1")
	if err != nil || !story.Published {
		t.Fatalf("second publish: published=%v err=%v", story.Published, err)
	}
	story, err = a.UnpublishStory("s1")
	if err != nil || story.Published {
		t.Fatalf("unpublish: published=%v err=%v", story.Published, err)
	}

	if err := a.DeleteStory("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.DeleteStory("s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete expected ErrNotFound, got %v", err)
	}
	if _, err := a.PublishStory("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("publish missing expected ErrNotFound, got %v", err)
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	a, _ := newTestApp(t, nil, nil)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := a.SubmitFeedback(user, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank message expected ErrInvalidInput, got %v", err)
	}
	fb, err := a.SubmitFeedback(user, "dark mode please")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fb.Status != domain.FeedbackPending {
		t.Fatalf("new feedback status = %q, want pending", fb.Status)
	}

	updated, err := a.SetFeedbackStatus(fb.ID, domain.FeedbackResolved)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != domain.FeedbackResolved {
		t.Fatalf("status = %q, want resolved", updated.Status)
	}
	if _, err := a.SetFeedbackStatus("missing", domain.FeedbackReviewed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing feedback expected ErrNotFound, got %v", err)
	}
}

func TestBillingPortalURL(t *testing.T) {
	portal := &stubPortal{url: "https://billing.example.com/session/abc"}
	a, mem := newTestApp(t, nil, portal)
	user, _, err := a.SignUp("a@example.com", "secret", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := a.BillingPortalURL(context.Background(), user, "https://app.example.com"); !errors.Is(err, ErrNoBillingAccount) {
		t.Fatalf("no customer expected ErrNoBillingAccount, got %v", err)
	}

	user.StripeCustomerID = "cus_123"
	if err := mem.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	url, err := a.BillingPortalURL(context.Background(), user, "https://app.example.com/account")
	if err != nil {
		t.Fatalf("portal: %v", err)
	}
	if url != portal.url {
		t.Fatalf("url = %q, want %q", url, portal.url)
	}
	if portal.lastCustomer != "cus_123" {
		t.Fatalf("portal called with customer %q", portal.lastCustomer)
	}
	if portal.lastReturn != "https://app.example.com/account" {
		t.Fatalf("portal called with return URL %q", portal.lastReturn)
	}
}
