package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config configures an HTTPClient
type Config struct {
	URL             string
	Email           string
	Token           string
	Labels          []string
	CopyUpdatesEpic string
	ProjectID       string
	ComponentID     string
}

// HTTPClient talks to the Jira REST API v3
type HTTPClient struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient returns a client for cfg.URL
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = "10492"
	}
	if cfg.ComponentID == "" {
		cfg.ComponentID = "12655"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *HTTPClient) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode jira request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.cfg.URL + "/rest/api/3/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}

// FindUser returns the account id of the user with the given email.
func (c *HTTPClient) FindUser(ctx context.Context, email string) (string, error) {
	var users []struct {
		AccountID string `json:"accountId"`
	}
	if err := c.request(ctx, http.MethodGet, "user/search", url.Values{"query": {email}}, nil, &users); err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("user with email %s not found in Jira", email)
	}
	return users[0].AccountID, nil
}

// CreateIssue opens an epic with UX, Visual and Dev subtasks for new pages and
// page refreshes, and a subtask of the copy updates epic otherwise.
func (c *HTTPClient) CreateIssue(ctx context.Context, req IssueRequest) (*Issue, error) {
	reporter := req.ReporterAccountID
	if reporter == "" && req.ReporterEmail != "" {
		id, err := c.FindUser(ctx, req.ReporterEmail)
		if err != nil {
			return nil, err
		}
		reporter = id
	}

	if !createsEpic(req.RequestType) {
		return c.createTask(ctx, req, IssueTypeSubtask, c.cfg.CopyUpdatesEpic, req.Summary, reporter)
	}

	epic, err := c.createTask(ctx, req, IssueTypeEpic, "", req.Summary, reporter)
	if err != nil {
		return nil, fmt.Errorf("create epic: %w", err)
	}
	for _, name := range []string{"UX", "Visual", "Dev"} {
		if _, err := c.createTask(ctx, req, IssueTypeSubtask, epic.Key, name+" - "+req.Summary, reporter); err != nil {
			return nil, fmt.Errorf("create %s subtask of %s: %w", name, epic.Key, err)
		}
	}
	c.logger.Info("Jira epic created", zap.String("key", epic.Key))
	return epic, nil
}

func (c *HTTPClient) createTask(ctx context.Context, req IssueRequest, issueType, parent, summary, reporter string) (*Issue, error) {
	fields := map[string]any{
		"summary":   summary,
		"issuetype": map[string]string{"id": issueType},
		"labels":    c.labels(),
		"project":   map[string]string{"id": c.cfg.ProjectID},
		"components": []map[string]string{
			{"id": c.cfg.ComponentID},
		},
		"description": map[string]any{
			"type":    "doc",
			"version": 1,
			"content": []any{
				map[string]any{
					"type": "paragraph",
					"content": []any{
						map[string]string{"type": "text", "text": req.Description},
					},
				},
			},
		},
	}
	if reporter != "" {
		fields["reporter"] = map[string]string{"id": reporter}
	}
	if parent != "" {
		fields["parent"] = map[string]string{"key": parent}
	}
	if req.DueDate != "" {
		fields["duedate"] = req.DueDate
	}

	var issue Issue
	payload := map[string]any{"fields": fields, "update": map[string]any{}}
	if err := c.request(ctx, http.MethodPost, "issue", nil, payload, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *HTTPClient) labels() []string {
	if c.cfg.Labels == nil {
		return []string{}
	}
	return c.cfg.Labels
}

// ChangeIssueStatus applies a workflow transition to an issue.
func (c *HTTPClient) ChangeIssueStatus(ctx context.Context, key, transitionID string) error {
	payload := map[string]any{"transition": map[string]string{"id": transitionID}}
	return c.request(ctx, http.MethodPost, "issue/"+url.PathEscape(key)+"/transitions", nil, payload, nil)
}

func (c *HTTPClient) IssueStatus(ctx context.Context, key string) (string, error) {
	var out struct {
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	query := url.Values{"fields": {"status"}}
	if err := c.request(ctx, http.MethodGet, "issue/"+url.PathEscape(key), query, nil, &out); err != nil {
		return "", err
	}
	if out.Fields.Status.Name == "" {
		return "", fmt.Errorf("jira issue %s has no status", key)
	}
	return strings.ToUpper(out.Fields.Status.Name), nil
}
