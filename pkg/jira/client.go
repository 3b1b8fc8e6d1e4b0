package jira

import (
	"context"
	"fmt"

	"websites-content-system/pkg/models"
)

// Issue type ids of the ticketing project
const (
	IssueTypeEpic    = "10000"
	IssueTypeSubtask = "10013"
)

// TransitionRejected moves an issue to the REJECTED status.
const TransitionRejected = "61"

// IssueRequest describes a ticket to open
type IssueRequest struct {
	Summary     string
	Description string
	RequestType models.ChangeRequestType
	// ReporterEmail is resolved to an account id when ReporterAccountID is empty.
	ReporterEmail     string
	ReporterAccountID string
	DueDate           string
}

// Issue is a created ticket
type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Client opens and transitions tickets
type Client interface {
	CreateIssue(ctx context.Context, req IssueRequest) (*Issue, error)
	ChangeIssueStatus(ctx context.Context, key, transitionID string) error
	// IssueStatus returns the upper-cased workflow status name of an issue.
	IssueStatus(ctx context.Context, key string) (string, error)
}

// APIError is returned for non-2xx responses
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// DefaultSummary is used when a change request carries no summary.
func DefaultSummary(t models.ChangeRequestType, pageName string) string {
	switch t {
	case models.ChangeCopyUpdate:
		return "Copy update " + pageName
	case models.ChangePageRefresh:
		return "Page refresh for " + pageName
	case models.ChangeNewWebpage:
		return "New webpage for " + pageName
	}
	return ""
}

// RemovalSummary is the summary of a page removal ticket.
func RemovalSummary(pageName, redirectURL string) string {
	s := fmt.Sprintf("Remove %s webpage from code repository", pageName)
	if redirectURL != "" {
		s += " and redirect to " + redirectURL
	}
	return s
}

// createsEpic reports whether a request opens an epic with subtasks rather
// than a single subtask.
func createsEpic(t models.ChangeRequestType) bool {
	return t == models.ChangeNewWebpage || t == models.ChangePageRefresh
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*MockClient)(nil)
)
