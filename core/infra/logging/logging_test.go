package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	origOut := log.Writer()
	origFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(origOut)
		log.SetFlags(origFlags)
	})
	return &buf
}

func TestInfoTextFormat(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false

	buf := captureOutput(t)
	Info("prober", "probe hit", "kind", "source", "id", 42)
	got := strings.TrimSpace(buf.String())
	if !strings.Contains(got, "[PROBER] probe hit") || !strings.Contains(got, "kind=source") || !strings.Contains(got, "id=42") {
		t.Fatalf("unexpected log output: %s", got)
	}
}

func TestWarnTextFormat(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false

	buf := captureOutput(t)
	Warn("prober", "team probe failed", "team", 7)
	got := strings.TrimSpace(buf.String())
	if !strings.Contains(got, "[PROBER] WARN team probe failed") || !strings.Contains(got, "team=7") {
		t.Fatalf("unexpected log output: %s", got)
	}
}

func TestErrorJSONFormat(t *testing.T) {
	logFormatOnce = sync.Once{}
	logAsJSON = false
	t.Setenv("RELAYDECK_LOG_FORMAT", "json")

	buf := captureOutput(t)
	Error("gateway", "boom", "code", 500)
	line := strings.TrimSpace(buf.String())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("expected json output, got: %s", line)
	}
	if payload["level"] != "ERROR" || payload["component"] != "gateway" || payload["msg"] != "boom" {
		t.Fatalf("unexpected json payload: %#v", payload)
	}
	if payload["code"] != float64(500) {
		t.Fatalf("unexpected code field: %#v", payload["code"])
	}
}

func TestFormatFields(t *testing.T) {
	out := formatFields("a", 1, "b")
	if !strings.Contains(out, "a=1") || !strings.Contains(out, "b=(missing)") {
		t.Fatalf("unexpected fields: %s", out)
	}
	if out := formatFields(); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestFlattenStripsWhitespace(t *testing.T) {
	if got := flatten("multi\nline\tvalue"); got != "multi line value" {
		t.Fatalf("unexpected flattened value: %q", got)
	}
}
