package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/botflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContact() *domain.Contact {
	return &domain.Contact{
		ID:          uuid.New(),
		PhoneNumber: "+15551234567",
	}
}

func TestClient_SendText(t *testing.T) {
	var got map[string]any
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token", testLogger())

	if err := client.SendText(context.Background(), testContact(), "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if auth != "Bearer secret-token" {
		t.Errorf("auth header = %q", auth)
	}
	if got["to"] != "+15551234567" {
		t.Errorf("to = %v", got["to"])
	}
	if got["type"] != "text" {
		t.Errorf("type = %v", got["type"])
	}
	text, _ := got["text"].(map[string]any)
	if text["body"] != "hello" {
		t.Errorf("body = %v", text["body"])
	}
}

func TestClient_SendTemplate(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	err := client.SendTemplate(context.Background(), testContact(), "welcome", []string{"Alice"})
	if err != nil {
		t.Fatalf("SendTemplate: %v", err)
	}

	tmpl, _ := got["template"].(map[string]any)
	if tmpl["name"] != "welcome" {
		t.Errorf("template name = %v", tmpl["name"])
	}
	components, _ := tmpl["components"].([]any)
	if len(components) != 1 {
		t.Fatalf("components = %v", components)
	}
}

func TestClient_SendMedia(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	err := client.SendMedia(context.Background(), testContact(), "image", "https://cdn.example.com/a.png", "caption")
	if err != nil {
		t.Fatalf("SendMedia: %v", err)
	}

	if got["type"] != "image" {
		t.Errorf("type = %v", got["type"])
	}
	image, _ := got["image"].(map[string]any)
	if image["link"] != "https://cdn.example.com/a.png" {
		t.Errorf("link = %v", image["link"])
	}
	if image["caption"] != "caption" {
		t.Errorf("caption = %v", image["caption"])
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid recipient"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	err := client.SendText(context.Background(), testContact(), "hello")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want status code mentioned", err)
	}
}

func TestClient_ConnectionError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", testLogger())

	if err := client.SendText(context.Background(), testContact(), "hello"); err == nil {
		t.Fatal("expected connection error")
	}
}
