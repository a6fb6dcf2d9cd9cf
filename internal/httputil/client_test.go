package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	m := NewMockHTTPClient().
		AddResponse(http.StatusTeapot, "first").
		AddErrorResponse(errors.New("boom"))

	req, _ := http.NewRequest(http.MethodPost, "http://normals/estimate", strings.NewReader("payload"))
	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusTeapot || string(body) != "first" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
	if string(m.Bodies[0]) != "payload" {
		t.Errorf("request body not recorded: %q", m.Bodies[0])
	}

	req2, _ := http.NewRequest(http.MethodGet, "http://normals/", nil)
	if _, err := m.Do(req2); err == nil || err.Error() != "boom" {
		t.Errorf("expected queued error, got %v", err)
	}

	req3, _ := http.NewRequest(http.MethodGet, "http://normals/", nil)
	resp, err = m.Do(req3)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("expected default 200, got %v %v", resp, err)
	}
	if m.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d, want 3", m.RequestCount())
	}
}

func TestMockHTTPClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://normals/", nil)
	if _, err := NewMockHTTPClient().Do(req); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "bad")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"bad"}` {
		t.Errorf("body = %s", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}
}
