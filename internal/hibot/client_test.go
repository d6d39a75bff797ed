package hibot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
)

func newTestClient(t *testing.T, status int, captured *map[string]any, headers *http.Header) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(captured)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		HibotURL:       srv.URL,
		HibotAppID:     "app",
		HibotAppSecret: "shh",
		HibotChannelID: "chan-1",
	}
	return NewClient(cfg, logger.Nop())
}

func TestNewClientWithoutCredentialsIsNoop(t *testing.T) {
	client := NewClient(&config.Config{HibotURL: "http://unused"}, logger.Nop())
	if client != nil {
		t.Fatalf("expected nil client without credentials")
	}
	if err := client.SendText(context.Background(), "593986365165", "hola"); err != nil {
		t.Fatalf("expected nil client to drop messages, got %v", err)
	}
}

func TestSendText(t *testing.T) {
	payload := map[string]any{}
	var headers http.Header
	client := newTestClient(t, http.StatusOK, &payload, &headers)

	if err := client.SendText(context.Background(), "593986365165", "Su servicio está activo."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers.Get("x-app-id") != "app" || headers.Get("x-app-secret") != "shh" {
		t.Fatalf("expected credential headers, got %v", headers)
	}
	if payload["channel_id"] != "chan-1" || payload["to"] != "593986365165" || payload["type"] != "text" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	text, _ := payload["text"].(map[string]any)
	if text["body"] != "Su servicio está activo." {
		t.Fatalf("unexpected text body %+v", payload["text"])
	}
}

func TestSendMediaDefaultsToImage(t *testing.T) {
	payload := map[string]any{}
	var headers http.Header
	client := newTestClient(t, http.StatusOK, &payload, &headers)

	if err := client.SendMedia(context.Background(), "593986365165", "https://cdn.example/s.webp", MediaKind("gif")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	image, _ := payload["image"].(map[string]any)
	if payload["type"] != "image" || image["url"] != "https://cdn.example/s.webp" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestSendRejectsNonCanonicalDestination(t *testing.T) {
	payload := map[string]any{}
	var headers http.Header
	client := newTestClient(t, http.StatusOK, &payload, &headers)

	if err := client.SendText(context.Background(), "12345", "hola"); err == nil {
		t.Fatalf("expected error for malformed destination")
	}
}

func TestSendSurfacesHTTPErrors(t *testing.T) {
	payload := map[string]any{}
	var headers http.Header
	client := newTestClient(t, http.StatusUnauthorized, &payload, &headers)

	if err := client.SendText(context.Background(), "593986365165", "hola"); err == nil {
		t.Fatalf("expected error for 401 response")
	}
}
