package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTokenSource_RefreshFormEncodedGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "rt-123" {
			t.Errorf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		if r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "secret" {
			t.Errorf("client creds = %q/%q", r.PostForm.Get("client_id"), r.PostForm.Get("client_secret"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-456", "expires_in": 3599, "token_type": "Bearer",
		})
	}))
	defer srv.Close()

	ts := NewTokenSource("cid", "secret", srv.URL, 5*time.Second)
	tok, err := ts.Refresh(context.Background(), "rt-123")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok != "at-456" {
		t.Fatalf("token = %q", tok)
	}
}

func TestTokenSource_RefreshNon2xxCarriesTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	ts := NewTokenSource("cid", "", srv.URL, 5*time.Second)
	_, err := ts.Refresh(context.Background(), "stale")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("error should carry provider detail, got %v", err)
	}
}

func TestTokenSource_MissingAccessTokenIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ts := NewTokenSource("cid", "", srv.URL, 5*time.Second)
	if _, err := ts.Refresh(context.Background(), "rt"); err == nil {
		t.Fatal("expected error for empty access_token")
	}
}

func TestClient_SendRawBase64URLAndBearer(t *testing.T) {
	raw := []byte("From: a@example.com\r\nTo: b@example.com\r\nSubject: s\r\n\r\nbody")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gmail/v1/users/me/messages/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("authorization = %q", auth)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		decoded, err := base64.RawURLEncoding.DecodeString(req["raw"])
		if err != nil {
			t.Fatalf("raw is not base64url: %v", err)
		}
		if string(decoded) != string(raw) {
			t.Errorf("raw round-trip mismatch: %q", decoded)
		}
		if req["threadId"] != "thread-9" {
			t.Errorf("threadId = %q", req["threadId"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "msg-777"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	id, err := c.SendRaw(context.Background(), "tok", raw, "thread-9")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-777" {
		t.Fatalf("id = %q", id)
	}
}

func TestClient_SendRawOmitsThreadIDWhenEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["threadId"]; ok {
			t.Error("threadId must be omitted when empty")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.SendRaw(context.Background(), "tok", []byte("x"), ""); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestClient_SendRawNon2xxTruncatesErrorBody(t *testing.T) {
	big := strings.Repeat("x", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.SendRaw(context.Background(), "tok", []byte("x"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 1200 {
		t.Fatalf("error detail not truncated, len=%d", len(err.Error()))
	}
}
