package models

import "time"

// DefaultProjectName is created on first start so that orphaned pages always
// have a project to belong to.
const DefaultProjectName = "Default"

// Project is a managed website (e.g. "ubuntu.com")
type Project struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectTree is a project together with its root page. Templates is the
// root of the site's page tree.
type ProjectTree struct {
	Name      string `json:"name"`
	Templates *Page  `json:"templates"`
}

// EmptyTree is returned when a project tree cannot be loaded.
func EmptyTree(name string) ProjectTree {
	return ProjectTree{
		Name: name,
		Templates: &Page{
			Children: []*Page{},
		},
	}
}
