package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crewboard/backend/internal/models"
)

type ListParams struct {
	Status     models.Status
	Priority   models.Priority
	AssigneeID string
	Page       int
	Limit      int
}

type TaskPage struct {
	Items   []Task
	Total   int64
	Page    int
	Limit   int
	HasMore bool
}

type CreateRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	AssigneeID     string          `json:"assigneeId"`
	Priority       models.Priority `json:"priority,omitempty"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	Tags           []string        `json:"tags"`
	EstimatedHours *float64        `json:"estimatedHours,omitempty"`
}

// UpdateRequest carries partial field updates; nil means "leave unchanged".
type UpdateRequest struct {
	Title          *string          `json:"title,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Priority       *models.Priority `json:"priority,omitempty"`
	AssigneeID     *string          `json:"assigneeId,omitempty"`
	DueDate        *time.Time       `json:"dueDate,omitempty"`
	Tags           *[]string        `json:"tags,omitempty"`
	EstimatedHours *float64         `json:"estimatedHours,omitempty"`
	ActualHours    *float64         `json:"actualHours,omitempty"`
}

// Gateway is the remote boundary of the board. Implementations hold no cached
// state; optimism and caching live in the Store.
type Gateway interface {
	List(ctx context.Context, params ListParams) (*TaskPage, error)
	Get(ctx context.Context, id string) (*Task, error)
	Create(ctx context.Context, req CreateRequest) (*Task, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Task, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) (*Task, error)
	UpdateSubtask(ctx context.Context, taskID, subtaskID string, completed bool) (*Task, error)
	Delete(ctx context.Context, id string) error
}

// HTTPGateway talks to the task API over its JSON envelope protocol.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewHTTPGatewayWithClient is used by tests to inject a custom client.
func NewHTTPGatewayWithClient(baseURL, token string, client *http.Client) *HTTPGateway {
	return &HTTPGateway{baseURL: baseURL, token: token, client: client}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type listData struct {
	Data    []Task `json:"data"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	HasMore bool   `json:"hasMore"`
}

func (g *HTTPGateway) List(ctx context.Context, params ListParams) (*TaskPage, error) {
	query := url.Values{}
	if params.Status != "" {
		query.Set("status", string(params.Status))
	}
	if params.Priority != "" {
		query.Set("priority", string(params.Priority))
	}
	if params.AssigneeID != "" {
		query.Set("assigneeId", params.AssigneeID)
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	path := "/tasks"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var data listData
	if err := g.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	return &TaskPage{
		Items:   data.Data,
		Total:   data.Total,
		Page:    data.Page,
		Limit:   data.Limit,
		HasMore: data.HasMore,
	}, nil
}

func (g *HTTPGateway) Get(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := g.do(ctx, http.MethodGet, "/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Create(ctx context.Context, req CreateRequest) (*Task, error) {
	var task Task
	if err := g.do(ctx, http.MethodPost, "/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Update(ctx context.Context, id string, req UpdateRequest) (*Task, error) {
	var task Task
	if err := g.do(ctx, http.MethodPut, "/tasks/"+id, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) UpdateStatus(ctx context.Context, id string, status models.Status) (*Task, error) {
	body := map[string]models.Status{"status": status}
	var task Task
	if err := g.do(ctx, http.MethodPatch, "/tasks/"+id+"/status", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) UpdateSubtask(ctx context.Context, taskID, subtaskID string, completed bool) (*Task, error) {
	body := map[string]bool{"completed": completed}
	var task Task
	if err := g.do(ctx, http.MethodPatch, "/tasks/"+taskID+"/subtasks/"+subtaskID, body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (g *HTTPGateway) Delete(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		// A server that cannot produce the envelope is treated as a remote
		// rejection, never a crash.
		return &RemoteError{StatusCode: resp.StatusCode, Message: "malformed server response"}
	}

	if !env.Success {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, env.Error)
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return &RemoteError{StatusCode: resp.StatusCode, Message: "malformed server response"}
	}
	return nil
}
