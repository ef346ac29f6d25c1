package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/botflow/internal/domain"
)

const (
	// defaultWebhookTimeout — таймаут webhook-запроса.
	defaultWebhookTimeout = 30 * time.Second

	// maxWebhookResponseBody — лимит на тело ответа.
	maxWebhookResponseBody = 1 * 1024 * 1024 // 1 MB
)

// webhookExecutor — узел webhook_action: исходящий HTTP-запрос.
//
// Конфигурация:
//
//	{
//	    "url": "https://api.example.com/notify",
//	    "method": "POST",
//	    "headers": {"Authorization": "Bearer {{state.token}}"},
//	    "body": {"phone": "{{contact.phone_number}}"},
//	    "store_response_in": "webhook_result",
//	    "next": 4
//	}
//
// Результат запроса записывается в журнал как
// {status_code, headers, body}; при store_response_in — также в state
// под указанным ключом. Статус >= 400 считается ошибкой узла.
type webhookExecutor struct {
	client *http.Client
}

func newWebhookExecutor() *webhookExecutor {
	return &webhookExecutor{
		client: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

func (x *webhookExecutor) execute(ctx context.Context, ec *execContext, node domain.Node) *Result {
	url, _ := node.ConfigString("url")
	if url == "" {
		return &Result{Success: false, Error: "webhook node has no url"}
	}
	url = ec.interpolate(ctx, url)

	method, _ := node.ConfigString("method")
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	req, err := x.buildRequest(ctx, ec, method, url, node)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("build request: %v", err)}
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("webhook request failed: %v", err)}
	}
	defer resp.Body.Close()

	response, err := parseWebhookResponse(resp)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("read response: %v", err)}
	}

	if key, ok := node.ConfigString("store_response_in"); ok && key != "" {
		ec.execution.SetState(key, response)
	}

	if resp.StatusCode >= 400 {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			Data:    response,
		}
	}

	return &Result{
		Success:       true,
		NextNodeIndex: node.ConfigIndex("next"),
		Data:          response,
	}
}

// buildRequest собирает запрос: интерполированные заголовки и body.
func (x *webhookExecutor) buildRequest(ctx context.Context, ec *execContext, method, url string, node domain.Node) (*http.Request, error) {
	var bodyReader io.Reader
	hasJSONBody := false

	if body, ok := node.Config["body"]; ok && body != nil {
		rendered := interpolateBody(ctx, ec, body)
		raw, err := json.Marshal(rendered)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
		hasJSONBody = true
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if hasJSONBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range node.ConfigMap("headers") {
		if s, ok := v.(string); ok {
			req.Header.Set(k, ec.interpolate(ctx, s))
		}
	}

	return req, nil
}

// interpolateBody рекурсивно интерполирует строковые значения body.
func interpolateBody(ctx context.Context, ec *execContext, v any) any {
	switch t := v.(type) {
	case string:
		return ec.interpolate(ctx, t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = interpolateBody(ctx, ec, item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = interpolateBody(ctx, ec, item)
		}
		return out
	default:
		return v
	}
}

// parseWebhookResponse читает ответ в map для журнала и state.
// JSON-тело парсится, остальное сохраняется строкой.
func parseWebhookResponse(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBody))
	if err != nil {
		return nil, err
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		body = string(raw)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}
