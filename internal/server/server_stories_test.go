package server

import (
	"net/http"
	"testing"
)

func TestListStoriesReturnsPublishedOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedStory("pub-1", true)
	env.seedStory("pub-2", true)
	env.seedStory("draft-1", false)

	resp := env.do(http.MethodGet, "/api/stories", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		Items []storyResponse `json:"items"`
		Count int             `json:"count"`
	}](t, resp)
	if body.Count != 2 {
		t.Fatalf("expected 2 published stories, got %d", body.Count)
	}
	for _, item := range body.Items {
		if !item.Published {
			t.Fatalf("unpublished story %q in public listing", item.ID)
		}
	}
}

func TestGetStoryHidesDrafts(t *testing.T) {
	env := newTestEnv(t)
	env.seedStory("pub-1", true)
	draft := env.seedStory("draft-1", false)
	draft.OwnerID = env.user.ID
	if err := env.store.SaveStory(draft); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	resp := env.do(http.MethodGet, "/api/stories/pub-1", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("published story expected 200, got %d", resp.StatusCode)
	}

	// Anonymous callers cannot see drafts.
	resp = env.do(http.MethodGet, "/api/stories/draft-1", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("anonymous draft expected 404, got %d", resp.StatusCode)
	}

	// The owner can.
	resp = env.do(http.MethodGet, "/api/stories/draft-1", env.userToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner draft expected 200, got %d", resp.StatusCode)
	}

	// So can an admin.
	resp = env.do(http.MethodGet, "/api/stories/draft-1", env.adminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin draft expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(http.MethodGet, "/api/stories/nope", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing story expected 404, got %d", resp.StatusCode)
	}
}

func TestGenerateStoryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// Requires auth.
	resp := env.do(http.MethodPost, "/api/stories/generate", "", map[string]string{"prompt": "a ghost ship"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous generate expected 401, got %d", resp.StatusCode)
	}

	resp = env.do(http.MethodPost, "/api/stories/generate", env.userToken, map[string]string{
		"prompt": "a ghost ship",
		"genre":  "horror",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate expected 201, got %d", resp.StatusCode)
	}
	story := decodeBody[storyResponse](t, resp)
	if story.Content != "generated story text" {
		t.Fatalf("unexpected content %q", story.Content)
	}
	if story.Published {
		t.Fatal("generated story should start unpublished")
	}

	after, _, _ := env.store.GetUserByID(env.user.ID)
	if after.Credits != env.user.Credits-1 {
		t.Fatalf("credits = %d, want %d", after.Credits, env.user.Credits-1)
	}
}

func TestGenerateStoryOutOfCredits(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.store.SetCredits(env.user.ID, 0); err != nil {
		t.Fatalf("zero credits: %v", err)
	}

	resp := env.do(http.MethodPost, "/api/stories/generate", env.userToken, map[string]string{"prompt": "anything"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
	if env.gen.calls != 0 {
		t.Fatalf("generator called %d times with no credits", env.gen.calls)
	}
}

func TestGenerateStoryProviderDown(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errStub

	resp := env.do(http.MethodPost, "/api/stories/generate", env.userToken, map[string]string{"prompt": "anything"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	after, _, _ := env.store.GetUserByID(env.user.ID)
	if after.Credits != env.user.Credits {
		t.Fatalf("credits changed on provider failure: %d", after.Credits)
	}
}
