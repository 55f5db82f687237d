package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiClient is a minimal JSON client for the sync service API.
type apiClient struct {
	baseURL string
	actor   string
	client  *http.Client
}

func newAPIClient(cfg clientConfig) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(cfg.Server, "/"),
		actor:   cfg.Actor,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type itemError struct {
	Type    string `json:"type"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type bulkResponse struct {
	Errors []itemError `json:"errors"`
}

// post sends a JSON body and decodes the response into out when the
// status is 2xx; otherwise the error body is returned as an error.
func (c *apiClient) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.actor != "" {
		req.Header.Set("X-Actor-Email", c.actor)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
