package email

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendMagicLink(t *testing.T) {
	var received resendEmail
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "noreply@example.com", testLogger())
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	err := client.SendMagicLink("alice@example.com", "https://filamentory.test/auth/verify?token=123456-abcd1234", "123456")
	if err != nil {
		t.Fatalf("send magic link: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if len(received.To) != 1 || received.To[0] != "alice@example.com" {
		t.Errorf("to = %v, want [alice@example.com]", received.To)
	}
	if received.From != "noreply@example.com" {
		t.Errorf("from = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "Sign in to Filamentory" {
		t.Errorf("subject = %q, want %q", received.Subject, "Sign in to Filamentory")
	}
	if !strings.Contains(received.Text, "123456") {
		t.Error("text body should contain the 6-digit code")
	}
	if !strings.Contains(received.HTML, "https://filamentory.test/auth/verify?token=123456-abcd1234") {
		t.Error("html body should contain the verify link")
	}
}

func TestSendMagicLinkNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", testLogger())

	// Unconfigured delivery logs the link and reports success so local
	// development works without an API key.
	err := client.SendMagicLink("alice@example.com", "https://filamentory.test/auth/verify?token=x", "123456")
	if err != nil {
		t.Fatalf("send magic link: %v", err)
	}
}

func TestSendMagicLinkAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-key", "noreply@example.com", testLogger())
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	err := client.SendMagicLink("alice@example.com", "https://filamentory.test/auth/verify?token=x", "123456")
	if err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestSendWelcome(t *testing.T) {
	var received resendEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "noreply@example.com", testLogger())
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	if err := client.SendWelcome("alice@example.com"); err != nil {
		t.Fatalf("send welcome: %v", err)
	}
	if received.Subject != "Welcome to Filamentory" {
		t.Errorf("subject = %q, want %q", received.Subject, "Welcome to Filamentory")
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("key", "from@test.com", testLogger()).Configured() {
		t.Error("expected Configured() = true")
	}
	if NewClient("", "from@test.com", testLogger()).Configured() {
		t.Error("expected Configured() = false")
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
