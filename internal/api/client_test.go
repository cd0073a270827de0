package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tagpro-records/tracker/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.password != "secret123" {
		t.Errorf("expected password=secret123, got %s", c.password)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "") // unlikely to be listening
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestPush_Success(t *testing.T) {
	var receivedPassword string
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records" {
			t.Errorf("expected path /records, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		receivedPassword = r.URL.Query().Get("password")
		var err error
		receivedBody, err = io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	player := "Alice"
	recordTime := int64(5000)
	entries := []core.RunResult{{
		MapID:         "42",
		MapName:       "Test Map",
		CappingPlayer: &player,
		RecordTime:    &recordTime,
		UUID:          "u1",
		CapsToWin:     1,
	}}

	c := New(server.URL, "hunter2")
	if err := c.Push(context.Background(), entries); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if receivedPassword != "hunter2" {
		t.Errorf("expected password=hunter2, got %s", receivedPassword)
	}

	var decoded []core.RunResult
	if err := json.Unmarshal(receivedBody, &decoded); err != nil {
		t.Fatalf("failed to decode pushed body: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(decoded))
	}
	if decoded[0].UUID != "u1" {
		t.Errorf("expected uuid=u1, got %s", decoded[0].UUID)
	}
	if *decoded[0].RecordTime != 5000 {
		t.Errorf("expected record_time=5000, got %d", *decoded[0].RecordTime)
	}
}

func TestPush_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New(server.URL, "wrong-password")
	err := c.Push(context.Background(), nil)
	if err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestPush_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "secret")
	err := c.Push(context.Background(), nil)
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}
