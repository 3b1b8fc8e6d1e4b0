package models

import "time"

// PageStatus is the lifecycle state of a page
type PageStatus string

const (
	PageStatusNew       PageStatus = "NEW"
	PageStatusAvailable PageStatus = "AVAILABLE"
	PageStatusToDelete  PageStatus = "TO_DELETE"
)

// Valid reports whether s is a known status.
func (s PageStatus) Valid() bool {
	switch s {
	case PageStatusNew, PageStatusAvailable, PageStatusToDelete:
		return true
	}
	return false
}

// Page is a node in a project's content tree. Name is the full path key
// (e.g. "/about/contact") and URL the display path.
type Page struct {
	ID            string     `json:"id" db:"id"`
	ProjectID     string     `json:"project_id,omitempty" db:"project_id"`
	ParentID      string     `json:"parent_id,omitempty" db:"parent_id"`
	Name          string     `json:"name" db:"name"`
	URL           string     `json:"url" db:"url"`
	Title         string     `json:"title,omitempty" db:"title"`
	Description   string     `json:"description,omitempty" db:"description"`
	CopyDocLink   string     `json:"copy_doc_link,omitempty" db:"copy_doc_link"`
	Status        PageStatus `json:"status" db:"status"`
	Ext           string     `json:"ext,omitempty" db:"ext"`
	ContentJiraID string     `json:"content_jira_id,omitempty" db:"content_jira_id"`
	FilePath      string     `json:"file_path,omitempty" db:"file_path"`
	OwnerID       string     `json:"-" db:"owner_id"`

	Owner     *User      `json:"owner"`
	Reviewers []User     `json:"reviewers"`
	Products  []Product  `json:"products"`
	JiraTasks []JiraTask `json:"jira_tasks"`
	Project   *Project   `json:"project,omitempty"`
	Children  []*Page    `json:"children"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ShallowCopy returns a copy of p sharing its attribute slices but with its
// own (nil) children list.
func (p *Page) ShallowCopy() *Page {
	cp := *p
	cp.Children = nil
	return &cp
}
