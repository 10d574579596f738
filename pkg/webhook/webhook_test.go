package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{MaxRetries: -1})
	if c.config.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, c.config.Timeout)
	}
	if c.config.RetryDelay != DefaultRetryDelay {
		t.Errorf("expected retry delay %v, got %v", DefaultRetryDelay, c.config.RetryDelay)
	}
	if c.config.MaxRetries != 0 {
		t.Errorf("expected MaxRetries 0, got %d", c.config.MaxRetries)
	}
	if c.Enabled() {
		t.Error("client without hooks should not be enabled")
	}
}

func TestHookMatches(t *testing.T) {
	tests := []struct {
		hook   Hook
		event  EventType
		server string
		want   bool
	}{
		{Hook{}, EventDeployStarted, "live", true},
		{Hook{Events: []EventType{EventDeployFailed}}, EventDeployStarted, "live", false},
		{Hook{Events: []EventType{EventAll}}, EventDeployCompleted, "live", true},
		{Hook{Servers: []string{"qa"}}, EventDeployCompleted, "live", false},
		{Hook{Servers: []string{"qa"}}, EventDeployCompleted, "qa", true},
	}
	for _, tt := range tests {
		if got := tt.hook.Matches(tt.event, tt.server); got != tt.want {
			t.Errorf("%+v.Matches(%s, %s) = %v, want %v", tt.hook, tt.event, tt.server, got, tt.want)
		}
	}
}

func TestClientSend(t *testing.T) {
	var received map[string]any
	var eventHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventHeader = r.Header.Get("X-Beam-Event")
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(Config{Hooks: []Hook{{URL: server.URL}}})
	err := client.Send(context.Background(), Event{
		Event:  EventDeployCompleted,
		RunID:  "run-1",
		Server: "live",
		Ref:    "master",
		Totals: map[string]int{"sent": 2},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if eventHeader != string(EventDeployCompleted) {
		t.Errorf("expected event header %s, got %q", EventDeployCompleted, eventHeader)
	}
	if received["server"] != "live" || received["ref"] != "master" {
		t.Errorf("unexpected payload: %v", received)
	}
	if received["timestamp"] == "" {
		t.Error("expected timestamp to be set")
	}
}

func TestClientSendSignature(t *testing.T) {
	var signature string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Beam-Signature")
		body, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	client := NewClient(Config{Hooks: []Hook{{URL: server.URL, Secret: "s3cret"}}})
	if err := client.Send(context.Background(), Event{Event: EventDeployStarted, Server: "live"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.HasPrefix(signature, "sha256=") {
		t.Fatalf("expected sha256 signature, got %q", signature)
	}
	if want := Sign(body, "s3cret"); signature != want {
		t.Errorf("signature %q does not match body, want %q", signature, want)
	}
}

func TestClientSendSkipsUnmatchedHooks(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{Hooks: []Hook{{URL: server.URL, Events: []EventType{EventDeployFailed}}}})
	if err := client.Send(context.Background(), Event{Event: EventDeployCompleted}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls, got %d", calls.Load())
	}
}

func TestClientSendRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Config{
		Hooks:      []Hook{{URL: server.URL}},
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	if err := client.Send(context.Background(), Event{Event: EventDeployStarted}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientSendReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{Hooks: []Hook{{URL: server.URL}}, RetryDelay: time.Millisecond})
	err := client.Send(context.Background(), Event{Event: EventDeployFailed})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http 500: nope") {
		t.Errorf("unexpected error: %v", err)
	}
}
