package store

import (
	"testing"
	"time"
)

func TestJWTSessionRoundTrip(t *testing.T) {
	s := NewJWTSessionStore("test-secret", time.Hour)
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !ok || uid != "user-1" {
		t.Fatalf("got uid=%q ok=%v, want user-1/true", uid, ok)
	}
}

func TestJWTSessionRejectsExpiredToken(t *testing.T) {
	s := NewJWTSessionStore("test-secret", -time.Minute)
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("expired token should not resolve")
	}
}

func TestJWTSessionRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTSessionStore("secret-a", time.Hour)
	verifier := NewJWTSessionStore("secret-b", time.Hour)
	token, err := issuer.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := verifier.GetUserIDByToken(token); ok {
		t.Fatal("token signed with another secret should not resolve")
	}
}
