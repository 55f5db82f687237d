// Package taskqueue is a thin read-only client for the external task
// queue service, used by the background-job sweep to see which tasks are
// still alive.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Lister reports the names of tasks currently present in a queue.
type Lister interface {
	ListTaskNames(ctx context.Context, queue string) (map[string]struct{}, error)
}

// HTTPLister talks to the task queue service over HTTP.
type HTTPLister struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPLister returns a Lister for the queue service at baseURL.
func NewHTTPLister(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPLister {
	return &HTTPLister{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// task is one entry in the queue service's list response. Names come back
// fully qualified; only the trailing segment identifies the task.
type task struct {
	Name string `json:"name"`
}

type listResponse struct {
	Tasks []task `json:"tasks"`
}

// ListTaskNames returns the short names of every task in the queue. A
// queue with no tasks yields an empty set, not an error.
func (l *HTTPLister) ListTaskNames(ctx context.Context, queue string) (map[string]struct{}, error) {
	endpoint := fmt.Sprintf("%s/v2/queues/%s/tasks", l.baseURL, url.PathEscape(queue))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build task list request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks in queue %s: %w", queue, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("task queue service returned status %d for queue %s", resp.StatusCode, queue)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode task list response: %w", err)
	}

	names := make(map[string]struct{}, len(body.Tasks))
	for _, t := range body.Tasks {
		names[shortName(t.Name)] = struct{}{}
	}
	l.logger.Debug("Listed queue tasks",
		zap.String("queue", queue),
		zap.Int("count", len(names)))
	return names, nil
}

// shortName strips the fully-qualified queue path from a task name.
func shortName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
