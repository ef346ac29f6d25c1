package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shaiso/botflow/internal/domain"
)

const requestTimeout = 30 * time.Second

// Client отправляет сообщения контактам через мессенджер-шлюз.
type Client struct {
	baseURL    string
	token      string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient создаёт клиент шлюза.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// NewClientFromEnv создаёт клиент по переменным окружения
// GATEWAY_URL и GATEWAY_TOKEN.
func NewClientFromEnv(logger *slog.Logger) *Client {
	baseURL := os.Getenv("GATEWAY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return NewClient(baseURL, os.Getenv("GATEWAY_TOKEN"), logger)
}

// SendText отправляет текстовое сообщение.
func (c *Client) SendText(ctx context.Context, contact *domain.Contact, text string) error {
	return c.send(ctx, contact, map[string]any{
		"type": "text",
		"text": map[string]any{"body": text},
	})
}

// SendTemplate отправляет шаблонное сообщение с параметрами.
func (c *Client) SendTemplate(ctx context.Context, contact *domain.Contact, name string, params []string) error {
	components := []map[string]any{}
	if len(params) > 0 {
		parameters := make([]map[string]any, 0, len(params))
		for _, p := range params {
			parameters = append(parameters, map[string]any{"type": "text", "text": p})
		}
		components = append(components, map[string]any{
			"type":       "body",
			"parameters": parameters,
		})
	}

	return c.send(ctx, contact, map[string]any{
		"type": "template",
		"template": map[string]any{
			"name":       name,
			"components": components,
		},
	})
}

// SendMedia отправляет медиа-сообщение (image, video, document, audio).
func (c *Client) SendMedia(ctx context.Context, contact *domain.Contact, mediaType, url, caption string) error {
	media := map[string]any{"link": url}
	if caption != "" {
		media["caption"] = caption
	}

	return c.send(ctx, contact, map[string]any{
		"type":    mediaType,
		mediaType: media,
	})
}

// SendInteractive отправляет интерактивное сообщение (кнопки, списки).
func (c *Client) SendInteractive(ctx context.Context, contact *domain.Contact, payload map[string]any) error {
	return c.send(ctx, contact, map[string]any{
		"type":        "interactive",
		"interactive": payload,
	})
}

// send выполняет POST /messages.
func (c *Client) send(ctx context.Context, contact *domain.Contact, message map[string]any) error {
	message["to"] = contact.PhoneNumber

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	c.logger.Debug("message sent",
		"contact_id", contact.ID,
		"type", message["type"],
	)

	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
