package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GarethPark/story-subscription-sub001/internal/app"
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
	url string
	err error
}

func (p *stubPortal) PortalSessionURL(_ context.Context, _, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	app    *app.App
	store  *store.MemoryStore
	gen    *stubGenerator
	portal *stubPortal

	admin      domain.User
	adminToken string
	user       domain.User
	userToken  string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithOrigin(t, "http://images.invalid")
}

func newTestEnvWithOrigin(t *testing.T, imageOrigin string) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	gen := &stubGenerator{text: "generated story text"}
	portal := &stubPortal{url: "https://billing.example.com/p/abc"}
	a, err := app.New(app.Config{
		Store:          mem,
		Sessions:       mem,
		Generator:      gen,
		Portal:         portal,
		GenerationCost: 1,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{
		App:            a,
		BaseURL:        "https://app.example.com",
		ImageOriginURL: imageOrigin,
		ImageClient:    http.DefaultClient,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	env := &testEnv{t: t, srv: ts, app: a, store: mem, gen: gen, portal: portal}
	env.admin, env.adminToken = env.signup("admin@example.com", "Admin")
	env.user, env.userToken = env.signup("reader@example.com", "Reader")
	if !env.admin.IsAdmin || env.user.IsAdmin {
		t.Fatalf("unexpected roles: admin=%v user=%v", env.admin.IsAdmin, env.user.IsAdmin)
	}
	return env
}

func (e *testEnv) signup(email, name string) (domain.User, string) {
	e.t.Helper()
	user, token, err := e.app.SignUp(email, "secret", name)
	if err != nil {
		e.t.Fatalf("signup %s: %v", email, err)
	}
	return user, token
}

// do issues a request with optional bearer token and JSON body. Redirects
// are not followed so redirect responses stay observable.
func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (e *testEnv) seedStory(id string, published bool) domain.Story {
	e.t.Helper()
	story := domain.Story{ID: id, Title: "Story " + id, Content: "body", Published: published}
	if err := e.store.SaveStory(story); err != nil {
		e.t.Fatalf("seed story: %v", err)
	}
	return story
}

var errStub = errors.New("stub failure")
