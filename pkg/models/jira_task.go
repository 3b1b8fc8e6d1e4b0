package models

import "time"

// Jira task statuses as tracked locally
const (
	JiraStatusTriaged      = "TRIAGED"
	JiraStatusUntriaged    = "UNTRIAGED"
	JiraStatusBlocked      = "BLOCKED"
	JiraStatusInProgress   = "IN PROGRESS"
	JiraStatusToBeDeployed = "TO BE DEPLOYED"
	JiraStatusDone         = "DONE"
	JiraStatusRejected     = "REJECTED"
)

// Jira task request types
const (
	JiraTaskCopyUpdate  = "COPY_UPDATE"
	JiraTaskPageRefresh = "PAGE_REFRESH"
	JiraTaskNewWebpage  = "NEW_WEBPAGE"
	JiraTaskPageRemoval = "PAGE_REMOVAL"
)

// ChangeRequestType is the numeric request kind used by the console
type ChangeRequestType int

const (
	ChangeCopyUpdate ChangeRequestType = iota
	ChangePageRefresh
	ChangeNewWebpage
	ChangePageRemoval
)

// TaskType is the stored request type of a ticket of kind t.
func (t ChangeRequestType) TaskType() string {
	switch t {
	case ChangePageRefresh:
		return JiraTaskPageRefresh
	case ChangeNewWebpage:
		return JiraTaskNewWebpage
	case ChangePageRemoval:
		return JiraTaskPageRemoval
	}
	return JiraTaskCopyUpdate
}

// JiraTask links a page to a ticket in the ticketing system
type JiraTask struct {
	ID          string    `json:"id" db:"id"`
	JiraID      string    `json:"jira_id" db:"jira_id"`
	WebpageID   string    `json:"webpage_id" db:"webpage_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Status      string    `json:"status" db:"status"`
	Summary     string    `json:"summary" db:"summary"`
	RequestType string    `json:"request_type" db:"request_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ChangesRequest asks for an edit of an existing page
type ChangesRequest struct {
	DueDate     string            `json:"due_date"`
	Reporter    UserStruct        `json:"reporter_struct"`
	WebpageID   string            `json:"webpage_id"`
	Type        ChangeRequestType `json:"type"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	RequestType string            `json:"request_type"`
}

// RemovalRequest asks for a page to be removed
type RemovalRequest struct {
	DueDate     string     `json:"due_date"`
	Reporter    UserStruct `json:"reporter_struct"`
	WebpageID   string     `json:"webpage_id"`
	Description string     `json:"description"`
	RedirectURL string     `json:"redirect_url"`
	RequestType string     `json:"request_type"`
}

// CreatePageRequest registers a new page under an existing parent
type CreatePageRequest struct {
	Name       string       `json:"name"`
	CopyDoc    string       `json:"copy_doc"`
	Owner      UserStruct   `json:"owner"`
	Reviewers  []UserStruct `json:"reviewers"`
	Project    string       `json:"project"`
	Parent     string       `json:"parent"`
	ProductIDs []string     `json:"product_ids"`
}
