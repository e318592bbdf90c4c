package main

import (
	"testing"

	"github.com/relaydeck/relaydeck/core/scopes"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("TEST_ENV", "")
	if got := envOr("TEST_ENV", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback value")
	}
	t.Setenv("TEST_ENV", " value ")
	if got := envOr("TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("expected trimmed env value")
	}
}

func TestNewFlagSetDefaults(t *testing.T) {
	t.Setenv("RELAYDECK_API_URL", "http://example.com")
	t.Setenv("RELAYDECK_API_KEY", "token")
	fs := newFlagSet("test")
	if *fs.gateway != "http://example.com" {
		t.Fatalf("expected gateway from env, got %s", *fs.gateway)
	}
	if *fs.apiKey != "token" {
		t.Fatalf("expected api key from env, got %s", *fs.apiKey)
	}
	if *fs.scope != "personal" {
		t.Fatalf("expected personal default scope, got %s", *fs.scope)
	}
}

func TestNewClientTrimsGateway(t *testing.T) {
	client := newClient("http://localhost:8090/", "key")
	if client.BaseURL != "http://localhost:8090" {
		t.Fatalf("expected trimmed base url, got %s", client.BaseURL)
	}
	if client.APIKey != "key" {
		t.Fatalf("expected api key on client")
	}
}

func TestFlagSetParseScope(t *testing.T) {
	fs := newFlagSet("test")
	fs.ParseArgs([]string{"--scope", "team/7"})
	if got := fs.parseScope(); !got.Equal(scopes.TeamScope(7)) {
		t.Fatalf("unexpected scope: %v", got)
	}
}

func TestStreamURL(t *testing.T) {
	if got := streamURL("http://localhost:8090/"); got != "ws://localhost:8090/api/v1/stream" {
		t.Fatalf("unexpected ws url: %s", got)
	}
	if got := streamURL("https://console.example.com"); got != "wss://console.example.com/api/v1/stream" {
		t.Fatalf("unexpected wss url: %s", got)
	}
}
