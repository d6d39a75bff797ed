// Package hibot sends outbound WhatsApp messages through the Hibot API.
package hibot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
	"billing_chat_backend/platform/phone"
)

// MediaKind is the Hibot message type used for media sends.
type MediaKind string

const (
	MediaImage   MediaKind = "image"
	MediaSticker MediaKind = "sticker"
)

type Client struct {
	url       string
	appID     string
	appSecret string
	channelID string
	http      *http.Client
	log       *logger.Logger
}

type textBody struct {
	Body string `json:"body"`
}

type mediaBody struct {
	URL string `json:"url"`
}

type sendRequest struct {
	ChannelID string     `json:"channel_id"`
	To        string     `json:"to"`
	Type      string     `json:"type"`
	Text      *textBody  `json:"text,omitempty"`
	Image     *mediaBody `json:"image,omitempty"`
	Sticker   *mediaBody `json:"sticker,omitempty"`
}

// NewClient returns nil when credentials are missing; a nil client drops
// every message.
func NewClient(cfg config.MessagingConfig, log *logger.Logger) *Client {
	if !cfg.IsMessagingEnabled() || cfg.GetHibotURL() == "" {
		return nil
	}

	return &Client{
		url:       cfg.GetHibotURL(),
		appID:     cfg.GetHibotAppID(),
		appSecret: cfg.GetHibotAppSecret(),
		channelID: cfg.GetHibotChannelID(),
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// SendText sends a plain text message to a canonical Ecuadorian number.
func (c *Client) SendText(ctx context.Context, destination string, text string) error {
	if c == nil {
		return nil
	}

	return c.send(ctx, sendRequest{
		ChannelID: c.channelID,
		To:        destination,
		Type:      "text",
		Text:      &textBody{Body: text},
	})
}

// SendMedia sends an image or sticker by URL.
func (c *Client) SendMedia(ctx context.Context, destination string, mediaURL string, kind MediaKind) error {
	if c == nil {
		return nil
	}

	payload := sendRequest{
		ChannelID: c.channelID,
		To:        destination,
		Type:      string(kind),
	}
	if kind == MediaSticker {
		payload.Sticker = &mediaBody{URL: mediaURL}
	} else {
		payload.Type = string(MediaImage)
		payload.Image = &mediaBody{URL: mediaURL}
	}

	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload sendRequest) error {
	if _, ok := phone.Normalize(payload.To); !ok {
		return fmt.Errorf("hibot destination %q is not a canonical number", payload.To)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal hibot payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-app-id", c.appID)
	req.Header.Set("x-app-secret", c.appSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hibot request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hibot returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("message sent via hibot", "phone", phone.Display(payload.To), "type", payload.Type)
	return nil
}
