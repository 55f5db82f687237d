// Package tracker is the client for the external ticket service: payload
// types, a typed error taxonomy and bounded retry on transient failures.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// IssuePayload is the outbound ticket payload. After a successful sync the
// remote-assigned fields (issue id, issue url, enabled) are merged back in
// and the payload becomes the new ticket-mirror state.
type IssuePayload struct {
	ComponentID int64    `json:"component_id"`
	HotlistIDs  []int64  `json:"hotlist_ids"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	Severity    string   `json:"severity"`
	Reporter    string   `json:"reporter"`
	Assignee    string   `json:"assignee"`
	Verifier    string   `json:"verifier"`
	CCs         []string `json:"ccs"`
	Comment     string   `json:"comment,omitempty"`
	Status      string   `json:"status"`
	Enabled     bool     `json:"enabled,omitempty"`
	IssueID     int64    `json:"issue_id,omitempty"`
	IssueURL    string   `json:"issue_url,omitempty"`
}

// IssueResponse is the remote service's reply to a create or update call.
type IssueResponse struct {
	IssueID int64 `json:"issueId"`
}

// Client creates and updates tickets on the remote service.
type Client interface {
	CreateIssue(ctx context.Context, payload *IssuePayload) (*IssueResponse, error)
	UpdateIssue(ctx context.Context, issueID int64, payload *IssuePayload) (*IssueResponse, error)
}

// HTTPClient is the HTTP/JSON implementation of Client.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a ticket service client.
func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CreateIssue creates a new ticket.
func (c *HTTPClient) CreateIssue(ctx context.Context, payload *IssuePayload) (*IssueResponse, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("%s/api/issues", c.baseURL), payload)
}

// UpdateIssue updates an existing ticket.
func (c *HTTPClient) UpdateIssue(ctx context.Context, issueID int64, payload *IssuePayload) (*IssueResponse, error) {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("%s/api/issues/%d", c.baseURL, issueID), payload)
}

// errorBody is the structured error envelope the ticket service returns.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		ID      int64  `json:"id"`
	} `json:"error"`
}

func (c *HTTPClient) do(ctx context.Context, method, url string, payload *IssuePayload) (*IssueResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build ticket service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticket service request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.asError(resp.StatusCode, data)
	}

	var result IssueResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode ticket service response: %w", err)
	}
	return &result, nil
}

// asError maps a non-2xx response to the typed error taxonomy.
func (c *HTTPClient) asError(status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		switch body.Error.Code {
		case CodeHotlistNotFound:
			return &HotlistNotFoundError{HotlistID: body.Error.ID}
		case CodeComponentNotFound:
			return &ComponentNotFoundError{ComponentID: body.Error.ID}
		}
		if body.Error.Message != "" {
			return &Error{Status: status, Code: body.Error.Code, Message: body.Error.Message}
		}
	}
	return &Error{Status: status, Message: string(data)}
}
