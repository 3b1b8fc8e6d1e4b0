package jira

import (
	"context"
	"fmt"
	"sync"

	"websites-content-system/pkg/models"
)

// MockClient hands out sequential WD-<n> keys without a ticketing server.
type MockClient struct {
	mu          sync.Mutex
	next        int
	Issues      []IssueRequest
	Transitions map[string]string
	// Statuses overrides IssueStatus per key; unknown keys report TRIAGED.
	Statuses map[string]string
}

// NewMockClient returns an empty MockClient
func NewMockClient() *MockClient {
	return &MockClient{Transitions: map[string]string{}, Statuses: map[string]string{}}
}

func (m *MockClient) CreateIssue(_ context.Context, req IssueRequest) (*Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.Issues = append(m.Issues, req)
	return &Issue{ID: fmt.Sprint(m.next), Key: fmt.Sprintf("WD-%d", m.next)}, nil
}

func (m *MockClient) ChangeIssueStatus(_ context.Context, key, transitionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[key] = transitionID
	return nil
}

func (m *MockClient) IssueStatus(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.Statuses[key]; ok {
		return status, nil
	}
	if m.Transitions[key] == TransitionRejected {
		return models.JiraStatusRejected, nil
	}
	return models.JiraStatusTriaged, nil
}
