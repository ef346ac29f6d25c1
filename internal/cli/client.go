package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API.
type FlowResponse struct {
	ID          string           `json:"id"`
	BotID       string           `json:"bot_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Structure   []map[string]any `json:"structure"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
}

// ValidateFlowResponse — результат валидации структуры.
type ValidateFlowResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID               string         `json:"id"`
	FlowID           string         `json:"flow_id"`
	ContactID        string         `json:"contact_id"`
	BotID            string         `json:"bot_id"`
	CurrentNodeIndex int            `json:"current_node_index"`
	State            map[string]any `json:"state,omitempty"`
	Status           string         `json:"status"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	StartedAt        string         `json:"started_at"`
	CompletedAt      string         `json:"completed_at,omitempty"`
}

// ExecutionLogResponse — запись журнала выполнения из API.
type ExecutionLogResponse struct {
	ID         string         `json:"id"`
	NodeIndex  int            `json:"node_index"`
	NodeType   string         `json:"node_type"`
	Action     string         `json:"action"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	ExecutedAt string         `json:"executed_at"`
}

// TriggerResponse — триггер из API.
type TriggerResponse struct {
	ID                string         `json:"id"`
	BotID             string         `json:"bot_id"`
	FlowID            string         `json:"flow_id"`
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	IsActive          bool           `json:"is_active"`
	Priority          int            `json:"priority"`
	Keywords          []string       `json:"keywords,omitempty"`
	MatchType         string         `json:"match_type,omitempty"`
	EventType         string         `json:"event_type,omitempty"`
	EventConditions   map[string]any `json:"event_conditions,omitempty"`
	ScheduleType      string         `json:"schedule_type,omitempty"`
	ScheduleTime      string         `json:"schedule_time,omitempty"`
	Timezone          string         `json:"timezone,omitempty"`
	ContactFilterType string         `json:"contact_filter_type,omitempty"`
	NextTriggerAt     string         `json:"next_trigger_at,omitempty"`
	CreatedAt         string         `json:"created_at"`
}

// TriggerLogResponse — запись журнала срабатываний из API.
type TriggerLogResponse struct {
	ID           string `json:"id"`
	TriggerID    string `json:"trigger_id"`
	ContactID    string `json:"contact_id"`
	ExecutionID  string `json:"execution_id,omitempty"`
	MatchedValue string `json:"matched_value,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	TriggeredAt  string `json:"triggered_at"`
}

// FireEventResponse — результат отправки события.
type FireEventResponse struct {
	Launched int `json:"launched"`
}

// TestTriggerResponse — результат проверки триггера по образцу.
type TestTriggerResponse struct {
	Matched      bool   `json:"matched"`
	MatchedValue string `json:"matched_value,omitempty"`
}

// ContactResponse — контакт из API.
type ContactResponse struct {
	ID          string `json:"id"`
	BotID       string `json:"bot_id"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// --- Request types ---

// CreateFlowRequest — создание flow.
type CreateFlowRequest struct {
	BotID       string          `json:"bot_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Structure   json.RawMessage `json:"structure"`
	IsActive    bool            `json:"is_active"`
}

// UpdateFlowRequest — обновление flow.
type UpdateFlowRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Structure   json.RawMessage `json:"structure,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// StartExecutionRequest — запуск flow для контакта.
type StartExecutionRequest struct {
	ContactID    string         `json:"contact_id"`
	InitialState map[string]any `json:"initial_state,omitempty"`
}

// CreateTriggerRequest — создание триггера.
type CreateTriggerRequest struct {
	BotID             string         `json:"bot_id"`
	FlowID            string         `json:"flow_id"`
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	IsActive          bool           `json:"is_active"`
	Priority          int            `json:"priority,omitempty"`
	Keywords          []string       `json:"keywords,omitempty"`
	MatchType         string         `json:"match_type,omitempty"`
	CaseSensitive     bool           `json:"case_sensitive,omitempty"`
	EventType         string         `json:"event_type,omitempty"`
	EventConditions   map[string]any `json:"event_conditions,omitempty"`
	ScheduleType      string         `json:"schedule_type,omitempty"`
	ScheduleTime      string         `json:"schedule_time,omitempty"`
	Timezone          string         `json:"timezone,omitempty"`
	ContactFilterType string         `json:"contact_filter_type,omitempty"`
}

// UpdateTriggerRequest — обновление триггера.
type UpdateTriggerRequest struct {
	Name         *string   `json:"name,omitempty"`
	IsActive     *bool     `json:"is_active,omitempty"`
	Priority     *int      `json:"priority,omitempty"`
	Keywords     *[]string `json:"keywords,omitempty"`
	MatchType    *string   `json:"match_type,omitempty"`
	ScheduleType *string   `json:"schedule_type,omitempty"`
	ScheduleTime *string   `json:"schedule_time,omitempty"`
	Timezone     *string   `json:"timezone,omitempty"`
}

// FireEventRequest — отправка события.
type FireEventRequest struct {
	BotID     string         `json:"bot_id"`
	EventType string         `json:"event_type"`
	ContactID *string        `json:"contact_id,omitempty"`
	EventData map[string]any `json:"event_data,omitempty"`
}

// TestTriggerRequest — образец сообщения или события для проверки
// триггера.
type TestTriggerRequest struct {
	Message   string         `json:"message,omitempty"`
	EventType string         `json:"event_type,omitempty"`
	EventData map[string]any `json:"event_data,omitempty"`
}

// SetAttributeRequest — запись атрибута контакта.
type SetAttributeRequest struct {
	Value     string `json:"value"`
	ValueType string `json:"value_type,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для botflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает flows бота.
func (c *Client) ListFlows(botID string) ([]FlowResponse, error) {
	params := url.Values{}
	params.Set("bot_id", botID)

	var flows []FlowResponse
	err := c.list("/api/v1/flows", params, &flows)
	return flows, err
}

// CreateFlow создаёт новый flow.
func (c *Client) CreateFlow(req CreateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.post("/api/v1/flows", req, &flow)
	return &flow, err
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get("/api/v1/flows/"+id, &flow)
	return &flow, err
}

// UpdateFlow обновляет flow.
func (c *Client) UpdateFlow(id string, req UpdateFlowRequest) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.put("/api/v1/flows/"+id, req, &flow)
	return &flow, err
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// ValidateFlow проверяет структуру без сохранения.
func (c *Client) ValidateFlow(id string, structure json.RawMessage) (*ValidateFlowResponse, error) {
	body := map[string]json.RawMessage{"structure": structure}
	var result ValidateFlowResponse
	err := c.post("/api/v1/flows/"+id+"/validate", body, &result)
	return &result, err
}

// --- Executions ---

// StartExecution ставит запуск flow в очередь.
func (c *Client) StartExecution(flowID string, req StartExecutionRequest) error {
	return c.post("/api/v1/flows/"+flowID+"/executions", req, nil)
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var e ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &e)
	return &e, err
}

// CancelExecution отменяет execution.
func (c *Client) CancelExecution(id string) (*ExecutionResponse, error) {
	var e ExecutionResponse
	err := c.post("/api/v1/executions/"+id+"/cancel", nil, &e)
	return &e, err
}

// ListExecutionLogs возвращает журнал выполнения.
func (c *Client) ListExecutionLogs(id string) ([]ExecutionLogResponse, error) {
	var logs []ExecutionLogResponse
	err := c.list("/api/v1/executions/"+id+"/logs", nil, &logs)
	return logs, err
}

// --- Triggers ---

// ListTriggers возвращает триггеры бота.
func (c *Client) ListTriggers(botID string) ([]TriggerResponse, error) {
	params := url.Values{}
	params.Set("bot_id", botID)

	var triggers []TriggerResponse
	err := c.list("/api/v1/triggers", params, &triggers)
	return triggers, err
}

// CreateTrigger создаёт триггер.
func (c *Client) CreateTrigger(req CreateTriggerRequest) (*TriggerResponse, error) {
	var t TriggerResponse
	err := c.post("/api/v1/triggers", req, &t)
	return &t, err
}

// GetTrigger возвращает триггер по ID.
func (c *Client) GetTrigger(id string) (*TriggerResponse, error) {
	var t TriggerResponse
	err := c.get("/api/v1/triggers/"+id, &t)
	return &t, err
}

// UpdateTrigger обновляет триггер.
func (c *Client) UpdateTrigger(id string, req UpdateTriggerRequest) (*TriggerResponse, error) {
	var t TriggerResponse
	err := c.put("/api/v1/triggers/"+id, req, &t)
	return &t, err
}

// DeleteTrigger удаляет триггер.
func (c *Client) DeleteTrigger(id string) error {
	return c.delete("/api/v1/triggers/" + id)
}

// ListTriggerLogs возвращает журнал срабатываний.
func (c *Client) ListTriggerLogs(id string) ([]TriggerLogResponse, error) {
	var logs []TriggerLogResponse
	err := c.list("/api/v1/triggers/"+id+"/logs", nil, &logs)
	return logs, err
}

// TestTrigger прогоняет триггер по образцу без запуска flow.
func (c *Client) TestTrigger(id string, req TestTriggerRequest) (*TestTriggerResponse, error) {
	var result TestTriggerResponse
	err := c.post("/api/v1/triggers/"+id+"/test", req, &result)
	return &result, err
}

// --- Events ---

// FireEvent отправляет событие.
func (c *Client) FireEvent(req FireEventRequest) (*FireEventResponse, error) {
	var result FireEventResponse
	err := c.post("/api/v1/events", req, &result)
	return &result, err
}

// --- Contacts ---

// ListContacts возвращает контакты бота.
func (c *Client) ListContacts(botID string) ([]ContactResponse, error) {
	params := url.Values{}
	params.Set("bot_id", botID)

	var contacts []ContactResponse
	err := c.list("/api/v1/contacts", params, &contacts)
	return contacts, err
}

// GetContact возвращает контакт по ID.
func (c *Client) GetContact(id string) (*ContactResponse, error) {
	var contact ContactResponse
	err := c.get("/api/v1/contacts/"+id, &contact)
	return &contact, err
}

// GetContactAttributes возвращает атрибуты контакта.
func (c *Client) GetContactAttributes(id string) (map[string]string, error) {
	attrs := make(map[string]string)
	err := c.get("/api/v1/contacts/"+id+"/attributes", &attrs)
	return attrs, err
}

// SetContactAttribute записывает атрибут контакта.
func (c *Client) SetContactAttribute(id, key string, req SetAttributeRequest) error {
	return c.put("/api/v1/contacts/"+id+"/attributes/"+key, req, nil)
}

// ListContactExecutions возвращает executions контакта.
func (c *Client) ListContactExecutions(id string) ([]ExecutionResponse, error) {
	var executions []ExecutionResponse
	err := c.list("/api/v1/contacts/"+id+"/executions", nil, &executions)
	return executions, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if string(lr.Data) == "null" {
		return nil
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if len(er.Error.Details) > 0 {
		return fmt.Errorf("%s: %s (%v)", er.Error.Code, er.Error.Message, er.Error.Details)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
