package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"websites-content-system/pkg/models"
)

// PostgresDatabase is the PostgreSQL implementation of DatabaseInterface
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a connection, trying a few DSN variants in order
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn,
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = fmt.Errorf("strategy %d open: %w", i+1, err)
			continue
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err = db.Ping(); err != nil {
			lastErr = fmt.Errorf("strategy %d ping: %w", i+1, err)
			db.Close()
			continue
		}
		return &PostgresDatabase{db: db}, nil
	}
	return nil, fmt.Errorf("connect to PostgreSQL with all strategies: %w", lastErr)
}

// addConnectionParams appends query parameters to a DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	// key=value DSNs take space separated options
	if !strings.Contains(dsn, "://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// Projects

func (db *PostgresDatabase) GetOrCreateProject(name string) (*models.Project, error) {
	query := `
		INSERT INTO projects (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at, updated_at
	`
	var p models.Project
	if err := db.db.QueryRow(query, name).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get or create project %s: %w", name, err)
	}
	return &p, nil
}

func (db *PostgresDatabase) GetProjectByName(name string) (*models.Project, error) {
	return db.getProject(`SELECT id, name, created_at, updated_at FROM projects WHERE name = $1`, name)
}

func (db *PostgresDatabase) GetProjectByID(id string) (*models.Project, error) {
	return db.getProject(`SELECT id, name, created_at, updated_at FROM projects WHERE id = $1`, id)
}

func (db *PostgresDatabase) getProject(query string, arg string) (*models.Project, error) {
	var p models.Project
	if err := db.db.QueryRow(query, arg).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, notFound(err, "project")
	}
	return &p, nil
}

func (db *PostgresDatabase) ListProjects() ([]models.Project, error) {
	rows, err := db.db.Query(`SELECT id, name, created_at, updated_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Pages

const pageColumns = `
	w.id, w.project_id, COALESCE(w.parent_id::text, ''), w.name, w.url,
	COALESCE(w.title, ''), COALESCE(w.description, ''), COALESCE(w.copy_doc_link, ''),
	w.status, COALESCE(w.ext, ''), COALESCE(w.content_jira_id, ''), COALESCE(w.file_path, ''),
	COALESCE(w.owner_id::text, ''), w.created_at, w.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (models.Page, error) {
	var p models.Page
	var status string
	err := row.Scan(&p.ID, &p.ProjectID, &p.ParentID, &p.Name, &p.URL,
		&p.Title, &p.Description, &p.CopyDocLink,
		&status, &p.Ext, &p.ContentJiraID, &p.FilePath,
		&p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	p.Status = models.PageStatus(status)
	return p, err
}

func (db *PostgresDatabase) ListPagesByProject(projectID string) ([]models.Page, error) {
	rows, err := db.db.Query(`SELECT `+pageColumns+` FROM webpages w WHERE w.project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	var pages []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.loadRelations(pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (db *PostgresDatabase) GetPage(id string) (*models.Page, error) {
	return db.getPage(`SELECT `+pageColumns+` FROM webpages w WHERE w.id = $1`, id)
}

func (db *PostgresDatabase) GetPageByName(projectID, name string) (*models.Page, error) {
	return db.getPage(`SELECT `+pageColumns+` FROM webpages w WHERE w.project_id = $1 AND w.name = $2`, projectID, name)
}

func (db *PostgresDatabase) GetPageByURL(projectID, url string) (*models.Page, error) {
	return db.getPage(`SELECT `+pageColumns+` FROM webpages w WHERE w.project_id = $1 AND w.url = $2`, projectID, url)
}

func (db *PostgresDatabase) getPage(query string, args ...any) (*models.Page, error) {
	p, err := scanPage(db.db.QueryRow(query, args...))
	if err != nil {
		return nil, notFound(err, "page")
	}
	pages := []models.Page{p}
	if err := db.loadRelations(pages); err != nil {
		return nil, err
	}
	return &pages[0], nil
}

func (db *PostgresDatabase) CreatePage(page *models.Page) error {
	if page.Status == "" {
		page.Status = models.PageStatusAvailable
	}
	query := `
		INSERT INTO webpages (project_id, parent_id, name, url, title, description, copy_doc_link,
			status, ext, content_jira_id, file_path, owner_id, created_at, updated_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, '')::uuid, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, page.ProjectID, page.ParentID, page.Name, page.URL, page.Title,
		page.Description, page.CopyDocLink, string(page.Status), page.Ext, page.ContentJiraID,
		page.FilePath, page.OwnerID).Scan(&page.ID, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create page %s: %w", page.Name, err)
	}
	return nil
}

func (db *PostgresDatabase) UpdatePage(page *models.Page) error {
	query := `
		UPDATE webpages
		SET parent_id = NULLIF($2, '')::uuid, name = $3, url = $4, title = $5, description = $6,
			copy_doc_link = $7, status = $8, ext = $9, content_jira_id = $10, file_path = $11,
			owner_id = COALESCE(NULLIF($12, '')::uuid, owner_id), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, page.ID, page.ParentID, page.Name, page.URL, page.Title,
		page.Description, page.CopyDocLink, string(page.Status), page.Ext, page.ContentJiraID,
		page.FilePath, page.OwnerID).Scan(&page.UpdatedAt)
	if err != nil {
		return notFound(err, "page")
	}
	return nil
}

func (db *PostgresDatabase) DeletePage(id string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM reviewers WHERE webpage_id = $1`,
		`DELETE FROM webpage_products WHERE webpage_id = $1`,
		`DELETE FROM webpage_assets WHERE webpage_id = $1`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("delete page links: %w", err)
		}
	}
	res, err := tx.Exec(`DELETE FROM webpages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("page %w", ErrNotFound)
	}
	return tx.Commit()
}

func (db *PostgresDatabase) SetPageStatus(id string, status models.PageStatus) error {
	return db.execOne("page", `UPDATE webpages SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

func (db *PostgresDatabase) SetPageOwner(pageID, userID string) error {
	return db.execOne("page", `UPDATE webpages SET owner_id = $2, updated_at = NOW() WHERE id = $1`, pageID, userID)
}

// execOne runs an update that must touch exactly one row of what.
func (db *PostgresDatabase) execOne(what, query string, args ...any) error {
	res, err := db.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}

func (db *PostgresDatabase) SetPageReviewers(pageID string, userIDs []string) error {
	return db.replaceLinks(
		`DELETE FROM reviewers WHERE webpage_id = $1`,
		`INSERT INTO reviewers (webpage_id, user_id)
		 SELECT $1, u FROM unnest($2::uuid[]) AS u ON CONFLICT DO NOTHING`,
		pageID, userIDs)
}

func (db *PostgresDatabase) SetPageProducts(pageID string, productIDs []string) error {
	return db.replaceLinks(
		`DELETE FROM webpage_products WHERE webpage_id = $1`,
		`INSERT INTO webpage_products (webpage_id, product_id)
		 SELECT $1, p FROM unnest($2::uuid[]) AS p ON CONFLICT DO NOTHING`,
		pageID, productIDs)
}

func (db *PostgresDatabase) replaceLinks(del, ins, pageID string, ids []string) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM webpages WHERE id = $1)`, pageID).Scan(&exists); err != nil {
		return fmt.Errorf("check page: %w", err)
	}
	if !exists {
		return fmt.Errorf("page %w", ErrNotFound)
	}
	if _, err := tx.Exec(del, pageID); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	if len(ids) > 0 {
		if _, err := tx.Exec(ins, pageID, pq.Array(ids)); err != nil {
			return fmt.Errorf("insert links: %w", err)
		}
	}
	return tx.Commit()
}

// loadRelations populates owners, reviewers, products and jira tasks of
// pages with one query per relation.
func (db *PostgresDatabase) loadRelations(pages []models.Page) error {
	if len(pages) == 0 {
		return nil
	}
	ids := make([]string, len(pages))
	index := make(map[string]int, len(pages))
	ownerIDs := []string{}
	for i := range pages {
		ids[i] = pages[i].ID
		index[pages[i].ID] = i
		pages[i].Reviewers = []models.User{}
		pages[i].Products = []models.Product{}
		pages[i].JiraTasks = []models.JiraTask{}
		if pages[i].OwnerID != "" {
			ownerIDs = append(ownerIDs, pages[i].OwnerID)
		}
	}

	owners, err := db.usersWhere(`WHERE id = ANY($1::uuid[])`, pq.Array(ownerIDs))
	if err != nil {
		return err
	}
	byID := make(map[string]models.User, len(owners))
	for _, u := range owners {
		byID[u.ID] = u
	}
	for i := range pages {
		if u, ok := byID[pages[i].OwnerID]; ok {
			u := u
			pages[i].Owner = &u
		}
	}

	rows, err := db.db.Query(`
		SELECT r.webpage_id, `+userColumns+`
		FROM reviewers r JOIN users u ON u.id = r.user_id
		WHERE r.webpage_id = ANY($1::uuid[])
		ORDER BY u.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load reviewers: %w", err)
	}
	for rows.Next() {
		var pageID string
		u, err := scanUser(rows, &pageID)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan reviewer: %w", err)
		}
		i := index[pageID]
		pages[i].Reviewers = append(pages[i].Reviewers, u)
	}
	rows.Close()

	rows, err = db.db.Query(`
		SELECT wp.webpage_id, p.id, p.slug, p.name, p.created_at, p.updated_at
		FROM webpage_products wp JOIN products p ON p.id = wp.product_id
		WHERE wp.webpage_id = ANY($1::uuid[])
		ORDER BY p.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	for rows.Next() {
		var pageID string
		var p models.Product
		if err := rows.Scan(&pageID, &p.ID, &p.Slug, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan product: %w", err)
		}
		i := index[pageID]
		pages[i].Products = append(pages[i].Products, p)
	}
	rows.Close()

	tasks, err := db.tasksWhere(`WHERE webpage_id = ANY($1::uuid[]) ORDER BY created_at DESC`, pq.Array(ids))
	if err != nil {
		return err
	}
	for _, t := range tasks {
		i := index[t.WebpageID]
		pages[i].JiraTasks = append(pages[i].JiraTasks, t)
	}
	return nil
}

// Users

const userColumns = `u.id, COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.jira_account_id, ''),
	COALESCE(u.team, ''), COALESCE(u.department, ''), COALESCE(u.hrc_id, ''),
	COALESCE(u.job_title, ''), COALESCE(u.role, ''), u.created_at, u.updated_at`

// scanUser scans userColumns, after any leading destinations.
func scanUser(row rowScanner, lead ...any) (models.User, error) {
	var u models.User
	dest := append(lead, &u.ID, &u.Name, &u.Email, &u.JiraAccountID, &u.Team, &u.Department,
		&u.HRCID, &u.JobTitle, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	err := row.Scan(dest...)
	return u, err
}

func (db *PostgresDatabase) usersWhere(where string, args ...any) ([]models.User, error) {
	rows, err := db.db.Query(`SELECT `+userColumns+` FROM users u `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) GetOrCreateUser(user *models.User) (*models.User, error) {
	var existing *models.User
	var err error
	if user.Email != "" {
		existing, err = db.GetUserByEmail(user.Email)
	} else {
		existing, err = db.firstUser(`WHERE COALESCE(u.email, '') = '' AND u.name = $1`, user.Name)
	}
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u := *user
	query := `
		INSERT INTO users (name, email, jira_account_id, team, department, hrc_id, job_title, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = db.db.QueryRow(query, u.Name, u.Email, u.JiraAccountID, u.Team, u.Department, u.HRCID,
		u.JobTitle, u.Role).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) firstUser(where string, args ...any) (*models.User, error) {
	u, err := scanUser(db.db.QueryRow(`SELECT `+userColumns+` FROM users u `+where+` LIMIT 1`, args...))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	return db.firstUser(`WHERE u.id = $1`, id)
}

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return db.firstUser(`WHERE u.email = $1`, email)
}

func (db *PostgresDatabase) ListUsers() ([]models.User, error) {
	return db.usersWhere(`ORDER BY lower(u.name)`)
}

// Products

func (db *PostgresDatabase) ListProducts() ([]models.Product, error) {
	rows, err := db.db.Query(`SELECT id, slug, name, created_at, updated_at FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) EnsureProducts(products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	slugs := make([]string, len(products))
	names := make([]string, len(products))
	for i, p := range products {
		slugs[i], names[i] = p.Slug, p.Name
	}
	_, err := db.db.Exec(`
		INSERT INTO products (slug, name, created_at, updated_at)
		SELECT s, n, NOW(), NOW() FROM unnest($1::text[], $2::text[]) AS t(s, n)
		ON CONFLICT (slug) DO NOTHING`, pq.Array(slugs), pq.Array(names))
	if err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	return nil
}

// Jira tasks

const taskColumns = `id, COALESCE(jira_id, ''), webpage_id, COALESCE(user_id::text, ''), status,
	COALESCE(summary, ''), COALESCE(request_type, ''), created_at, updated_at`

func (db *PostgresDatabase) tasksWhere(where string, args ...any) ([]models.JiraTask, error) {
	rows, err := db.db.Query(`SELECT `+taskColumns+` FROM jira_tasks `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query jira tasks: %w", err)
	}
	defer rows.Close()
	var out []models.JiraTask
	for rows.Next() {
		var t models.JiraTask
		if err := rows.Scan(&t.ID, &t.JiraID, &t.WebpageID, &t.UserID, &t.Status,
			&t.Summary, &t.RequestType, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan jira task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) CreateJiraTask(task *models.JiraTask) error {
	if task.Status == "" {
		task.Status = models.JiraStatusUntriaged
	}
	query := `
		INSERT INTO jira_tasks (jira_id, webpage_id, user_id, status, summary, request_type, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, task.JiraID, task.WebpageID, task.UserID, task.Status,
		task.Summary, task.RequestType).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create jira task: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListJiraTasks() ([]models.JiraTask, error) {
	return db.tasksWhere(`ORDER BY created_at`)
}

func (db *PostgresDatabase) SetJiraTaskStatus(id, status string) error {
	return db.execOne("jira task", `UPDATE jira_tasks SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (db *PostgresDatabase) ListJiraTasksByPage(pageID string) ([]models.JiraTask, error) {
	return db.tasksWhere(`WHERE webpage_id = $1 ORDER BY created_at`, pageID)
}

func (db *PostgresDatabase) DeleteJiraTask(id string) error {
	res, err := db.db.Exec(`DELETE FROM jira_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete jira task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("jira task %w", ErrNotFound)
	}
	return nil
}

func (db *PostgresDatabase) FindOpenJiraTask(pageID, requestType string) (*models.JiraTask, error) {
	tasks, err := db.tasksWhere(`WHERE webpage_id = $1 AND request_type = $2 AND status <> $3 LIMIT 1`,
		pageID, requestType, models.JiraStatusRejected)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("jira task %w", ErrNotFound)
	}
	return &tasks[0], nil
}

// Assets

func (db *PostgresDatabase) AddPageAsset(pageID string, asset *models.Asset) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO assets (type, url, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (url, type) DO UPDATE SET updated_at = NOW()
		RETURNING id, created_at, updated_at`, asset.Type, asset.URL).
		Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO webpage_assets (webpage_id, asset_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, pageID, asset.ID); err != nil {
		return fmt.Errorf("link asset: %w", err)
	}
	return tx.Commit()
}

func (db *PostgresDatabase) ListAssetsByPage(pageID string) ([]models.Asset, error) {
	rows, err := db.db.Query(`
		SELECT a.id, a.type, a.url, a.created_at, a.updated_at
		FROM assets a JOIN webpage_assets wa ON wa.asset_id = a.id
		WHERE wa.webpage_id = $1
		ORDER BY a.url`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	var out []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Type, &a.URL, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HealthCheck pings the database
func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

// Close closes the connection pool
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
