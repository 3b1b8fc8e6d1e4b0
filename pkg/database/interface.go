package database

import (
	"errors"
	"fmt"

	"websites-content-system/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// DatabaseInterface defines storage access for the content system
type DatabaseInterface interface {
	// Projects
	GetOrCreateProject(name string) (*models.Project, error)
	GetProjectByName(name string) (*models.Project, error)
	GetProjectByID(id string) (*models.Project, error)
	ListProjects() ([]models.Project, error)

	// Pages. Reads return pages with Owner, Reviewers, Products and
	// JiraTasks (newest first) populated.
	ListPagesByProject(projectID string) ([]models.Page, error)
	GetPage(id string) (*models.Page, error)
	GetPageByName(projectID, name string) (*models.Page, error)
	GetPageByURL(projectID, url string) (*models.Page, error)
	CreatePage(page *models.Page) error
	UpdatePage(page *models.Page) error
	// DeletePage removes the page and its reviewer, product and asset links.
	DeletePage(id string) error
	SetPageStatus(id string, status models.PageStatus) error
	SetPageOwner(pageID, userID string) error
	// SetPageReviewers and SetPageProducts replace the previous assignment.
	SetPageReviewers(pageID string, userIDs []string) error
	SetPageProducts(pageID string, productIDs []string) error

	// Users. GetOrCreateUser matches on email, or on name for users without
	// an email (the Default user).
	GetOrCreateUser(user *models.User) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	ListUsers() ([]models.User, error)

	// Products
	ListProducts() ([]models.Product, error)
	// EnsureProducts inserts products whose slug is not stored yet.
	EnsureProducts(products []models.Product) error

	// Jira tasks
	CreateJiraTask(task *models.JiraTask) error
	ListJiraTasks() ([]models.JiraTask, error)
	SetJiraTaskStatus(id, status string) error
	// ListJiraTasksByPage returns tasks oldest first.
	ListJiraTasksByPage(pageID string) ([]models.JiraTask, error)
	DeleteJiraTask(id string) error
	// FindOpenJiraTask returns the page's non-rejected task of the given
	// request type, or ErrNotFound.
	FindOpenJiraTask(pageID, requestType string) (*models.JiraTask, error)

	// Assets
	AddPageAsset(pageID string, asset *models.Asset) error
	ListAssetsByPage(pageID string) ([]models.Asset, error)

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects and configures a storage backend
type DatabaseConfig struct {
	UseLocalDB  bool
	PostgresDSN string
	DataDir     string
	Debug       bool
}

// NewDatabase picks the storage backend: PostgreSQL when a DSN is
// configured and local storage is not forced, the local JSON store otherwise.
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if !config.UseLocalDB && config.PostgresDSN != "" {
		db, err := NewPostgresDatabase(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	}
	db, err := NewLocalDatabase(config.DataDir)
	if err != nil {
		return nil, err
	}
	return db, nil
}

var (
	_ DatabaseInterface = (*PostgresDatabase)(nil)
	_ DatabaseInterface = (*LocalDatabase)(nil)
)
