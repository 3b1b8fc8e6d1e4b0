package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"websites-content-system/pkg/models"
)

type reviewerRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	WebpageID string `json:"webpage_id"`
}

type pageProductRow struct {
	ID        string `json:"id"`
	WebpageID string `json:"webpage_id"`
	ProductID string `json:"product_id"`
}

type pageAssetRow struct {
	WebpageID string `json:"webpage_id"`
	AssetID   string `json:"asset_id"`
}

// localData is the whole store as persisted on disk.
type localData struct {
	Projects     []models.Project  `json:"projects"`
	Pages        []models.Page     `json:"pages"`
	PageOwners   map[string]string `json:"page_owners"`
	Users        []models.User     `json:"users"`
	Reviewers    []reviewerRow     `json:"reviewers"`
	Products     []models.Product  `json:"products"`
	PageProducts []pageProductRow  `json:"page_products"`
	JiraTasks    []models.JiraTask `json:"jira_tasks"`
	Assets       []models.Asset    `json:"assets"`
	PageAssets   []pageAssetRow    `json:"page_assets"`
}

// LocalDatabase is a JSON-file store for development and tests
type LocalDatabase struct {
	dataDir string
	mu      sync.Mutex
}

// NewLocalDatabase creates the data directory and returns a store in it
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dataDir, err)
	}
	return &LocalDatabase{dataDir: dataDir}, nil
}

func (db *LocalDatabase) filePath() string {
	return filepath.Join(db.dataDir, "content.json")
}

func (db *LocalDatabase) load() (*localData, error) {
	data := &localData{PageOwners: map[string]string{}}
	raw, err := os.ReadFile(db.filePath())
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", db.filePath(), err)
	}
	if data.PageOwners == nil {
		data.PageOwners = map[string]string{}
	}
	return data, nil
}

func (db *LocalDatabase) save(data *localData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := db.filePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, db.filePath())
}

// read runs fn against a snapshot of the store.
func (db *LocalDatabase) read(fn func(d *localData) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	data, err := db.load()
	if err != nil {
		return err
	}
	return fn(data)
}

// write runs fn and persists the store if fn succeeds.
func (db *LocalDatabase) write(fn func(d *localData) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	data, err := db.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return db.save(data)
}

// Projects

func (db *LocalDatabase) GetOrCreateProject(name string) (*models.Project, error) {
	var project models.Project
	err := db.write(func(d *localData) error {
		for _, p := range d.Projects {
			if p.Name == name {
				project = p
				return nil
			}
		}
		now := time.Now().UTC()
		project = models.Project{ID: uuid.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
		d.Projects = append(d.Projects, project)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (db *LocalDatabase) GetProjectByName(name string) (*models.Project, error) {
	return db.findProject(func(p models.Project) bool { return p.Name == name })
}

func (db *LocalDatabase) GetProjectByID(id string) (*models.Project, error) {
	return db.findProject(func(p models.Project) bool { return p.ID == id })
}

func (db *LocalDatabase) findProject(match func(models.Project) bool) (*models.Project, error) {
	var found *models.Project
	err := db.read(func(d *localData) error {
		for _, p := range d.Projects {
			if match(p) {
				p := p
				found = &p
				return nil
			}
		}
		return fmt.Errorf("project %w", ErrNotFound)
	})
	return found, err
}

func (db *LocalDatabase) ListProjects() ([]models.Project, error) {
	var out []models.Project
	err := db.read(func(d *localData) error {
		out = append(out, d.Projects...)
		return nil
	})
	return out, err
}

// Pages

func (db *LocalDatabase) ListPagesByProject(projectID string) ([]models.Page, error) {
	var out []models.Page
	err := db.read(func(d *localData) error {
		for _, p := range d.Pages {
			if p.ProjectID == projectID {
				out = append(out, d.hydrate(p))
			}
		}
		return nil
	})
	return out, err
}

func (db *LocalDatabase) GetPage(id string) (*models.Page, error) {
	return db.findPage(func(p models.Page) bool { return p.ID == id })
}

func (db *LocalDatabase) GetPageByName(projectID, name string) (*models.Page, error) {
	return db.findPage(func(p models.Page) bool { return p.ProjectID == projectID && p.Name == name })
}

func (db *LocalDatabase) GetPageByURL(projectID, url string) (*models.Page, error) {
	return db.findPage(func(p models.Page) bool { return p.ProjectID == projectID && p.URL == url })
}

func (db *LocalDatabase) findPage(match func(models.Page) bool) (*models.Page, error) {
	var found *models.Page
	err := db.read(func(d *localData) error {
		for _, p := range d.Pages {
			if match(p) {
				h := d.hydrate(p)
				found = &h
				return nil
			}
		}
		return fmt.Errorf("page %w", ErrNotFound)
	})
	return found, err
}

// stored strips relations so only columns are persisted.
func stored(p *models.Page) models.Page {
	row := *p
	row.Owner = nil
	row.Reviewers = nil
	row.Products = nil
	row.JiraTasks = nil
	row.Project = nil
	row.Children = nil
	return row
}

func (db *LocalDatabase) CreatePage(page *models.Page) error {
	return db.write(func(d *localData) error {
		for _, p := range d.Pages {
			if p.ProjectID == page.ProjectID && p.Name == page.Name {
				return fmt.Errorf("page %s already exists in project %s", page.Name, page.ProjectID)
			}
		}
		if page.ID == "" {
			page.ID = uuid.New().String()
		}
		if page.Status == "" {
			page.Status = models.PageStatusAvailable
		}
		now := time.Now().UTC()
		page.CreatedAt, page.UpdatedAt = now, now
		d.Pages = append(d.Pages, stored(page))
		if page.OwnerID != "" {
			d.PageOwners[page.ID] = page.OwnerID
		}
		return nil
	})
}

func (db *LocalDatabase) UpdatePage(page *models.Page) error {
	return db.write(func(d *localData) error {
		for i, p := range d.Pages {
			if p.ID == page.ID {
				page.CreatedAt = p.CreatedAt
				page.UpdatedAt = time.Now().UTC()
				d.Pages[i] = stored(page)
				if page.OwnerID != "" {
					d.PageOwners[page.ID] = page.OwnerID
				}
				return nil
			}
		}
		return fmt.Errorf("page %w", ErrNotFound)
	})
}

// DeletePage removes a page with all of its descendants and their links,
// matching the cascading foreign keys of the SQL schema.
func (db *LocalDatabase) DeletePage(id string) error {
	return db.write(func(d *localData) error {
		if !d.hasPage(id) {
			return fmt.Errorf("page %w", ErrNotFound)
		}
		doomed := map[string]bool{id: true}
		for grew := true; grew; {
			grew = false
			for _, p := range d.Pages {
				if !doomed[p.ID] && p.ParentID != "" && doomed[p.ParentID] {
					doomed[p.ID] = true
					grew = true
				}
			}
		}

		d.Pages = filterRows(d.Pages, func(p models.Page) bool { return !doomed[p.ID] })
		for pageID := range doomed {
			delete(d.PageOwners, pageID)
		}
		d.Reviewers = filterRows(d.Reviewers, func(r reviewerRow) bool { return !doomed[r.WebpageID] })
		d.PageProducts = filterRows(d.PageProducts, func(r pageProductRow) bool { return !doomed[r.WebpageID] })
		d.PageAssets = filterRows(d.PageAssets, func(r pageAssetRow) bool { return !doomed[r.WebpageID] })
		d.JiraTasks = filterRows(d.JiraTasks, func(t models.JiraTask) bool { return !doomed[t.WebpageID] })
		return nil
	})
}

func (db *LocalDatabase) SetPageStatus(id string, status models.PageStatus) error {
	return db.updatePage(id, func(p *models.Page) { p.Status = status })
}

func (db *LocalDatabase) SetPageOwner(pageID, userID string) error {
	return db.write(func(d *localData) error {
		for i := range d.Pages {
			if d.Pages[i].ID == pageID {
				d.Pages[i].OwnerID = userID
				d.Pages[i].UpdatedAt = time.Now().UTC()
				d.PageOwners[pageID] = userID
				return nil
			}
		}
		return fmt.Errorf("page %w", ErrNotFound)
	})
}

func (db *LocalDatabase) updatePage(id string, fn func(p *models.Page)) error {
	return db.write(func(d *localData) error {
		for i := range d.Pages {
			if d.Pages[i].ID == id {
				fn(&d.Pages[i])
				d.Pages[i].UpdatedAt = time.Now().UTC()
				return nil
			}
		}
		return fmt.Errorf("page %w", ErrNotFound)
	})
}

func (db *LocalDatabase) SetPageReviewers(pageID string, userIDs []string) error {
	return db.write(func(d *localData) error {
		if !d.hasPage(pageID) {
			return fmt.Errorf("page %w", ErrNotFound)
		}
		d.Reviewers = filterRows(d.Reviewers, func(r reviewerRow) bool { return r.WebpageID != pageID })
		seen := map[string]bool{}
		for _, uid := range userIDs {
			if seen[uid] {
				continue
			}
			seen[uid] = true
			d.Reviewers = append(d.Reviewers, reviewerRow{ID: uuid.New().String(), UserID: uid, WebpageID: pageID})
		}
		return nil
	})
}

func (db *LocalDatabase) SetPageProducts(pageID string, productIDs []string) error {
	return db.write(func(d *localData) error {
		if !d.hasPage(pageID) {
			return fmt.Errorf("page %w", ErrNotFound)
		}
		d.PageProducts = filterRows(d.PageProducts, func(r pageProductRow) bool { return r.WebpageID != pageID })
		seen := map[string]bool{}
		for _, pid := range productIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			d.PageProducts = append(d.PageProducts, pageProductRow{ID: uuid.New().String(), WebpageID: pageID, ProductID: pid})
		}
		return nil
	})
}

// Users

func (db *LocalDatabase) GetOrCreateUser(user *models.User) (*models.User, error) {
	var out models.User
	err := db.write(func(d *localData) error {
		for _, u := range d.Users {
			if (user.Email != "" && u.Email == user.Email) || (user.Email == "" && u.Email == "" && u.Name == user.Name) {
				out = u
				return nil
			}
		}
		out = *user
		if out.ID == "" {
			out.ID = uuid.New().String()
		}
		now := time.Now().UTC()
		out.CreatedAt, out.UpdatedAt = now, now
		d.Users = append(d.Users, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (db *LocalDatabase) GetUserByID(id string) (*models.User, error) {
	return db.findUser(func(u models.User) bool { return u.ID == id })
}

func (db *LocalDatabase) GetUserByEmail(email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return db.findUser(func(u models.User) bool { return u.Email == email })
}

func (db *LocalDatabase) findUser(match func(models.User) bool) (*models.User, error) {
	var found *models.User
	err := db.read(func(d *localData) error {
		for _, u := range d.Users {
			if match(u) {
				u := u
				found = &u
				return nil
			}
		}
		return fmt.Errorf("user %w", ErrNotFound)
	})
	return found, err
}

func (db *LocalDatabase) ListUsers() ([]models.User, error) {
	var out []models.User
	err := db.read(func(d *localData) error {
		out = append(out, d.Users...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, err
}

// Products

func (db *LocalDatabase) ListProducts() ([]models.Product, error) {
	var out []models.Product
	err := db.read(func(d *localData) error {
		out = append(out, d.Products...)
		return nil
	})
	return out, err
}

func (db *LocalDatabase) EnsureProducts(products []models.Product) error {
	return db.write(func(d *localData) error {
		existing := map[string]bool{}
		for _, p := range d.Products {
			existing[p.Slug] = true
		}
		now := time.Now().UTC()
		for _, p := range products {
			if existing[p.Slug] {
				continue
			}
			existing[p.Slug] = true
			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			p.CreatedAt, p.UpdatedAt = now, now
			d.Products = append(d.Products, p)
		}
		return nil
	})
}

// Jira tasks

func (db *LocalDatabase) CreateJiraTask(task *models.JiraTask) error {
	return db.write(func(d *localData) error {
		if task.ID == "" {
			task.ID = uuid.New().String()
		}
		if task.Status == "" {
			task.Status = models.JiraStatusUntriaged
		}
		now := time.Now().UTC()
		task.CreatedAt, task.UpdatedAt = now, now
		d.JiraTasks = append(d.JiraTasks, *task)
		return nil
	})
}

func (db *LocalDatabase) ListJiraTasks() ([]models.JiraTask, error) {
	var out []models.JiraTask
	err := db.read(func(d *localData) error {
		out = append(out, d.JiraTasks...)
		return nil
	})
	return out, err
}

func (db *LocalDatabase) SetJiraTaskStatus(id, status string) error {
	return db.write(func(d *localData) error {
		for i := range d.JiraTasks {
			if d.JiraTasks[i].ID == id {
				d.JiraTasks[i].Status = status
				d.JiraTasks[i].UpdatedAt = time.Now().UTC()
				return nil
			}
		}
		return fmt.Errorf("jira task %w", ErrNotFound)
	})
}

func (db *LocalDatabase) ListJiraTasksByPage(pageID string) ([]models.JiraTask, error) {
	var out []models.JiraTask
	err := db.read(func(d *localData) error {
		out = d.tasksFor(pageID)
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (db *LocalDatabase) DeleteJiraTask(id string) error {
	return db.write(func(d *localData) error {
		before := len(d.JiraTasks)
		d.JiraTasks = filterRows(d.JiraTasks, func(t models.JiraTask) bool { return t.ID != id })
		if len(d.JiraTasks) == before {
			return fmt.Errorf("jira task %w", ErrNotFound)
		}
		return nil
	})
}

func (db *LocalDatabase) FindOpenJiraTask(pageID, requestType string) (*models.JiraTask, error) {
	var found *models.JiraTask
	err := db.read(func(d *localData) error {
		for _, t := range d.JiraTasks {
			if t.WebpageID == pageID && t.RequestType == requestType && t.Status != models.JiraStatusRejected {
				t := t
				found = &t
				return nil
			}
		}
		return fmt.Errorf("jira task %w", ErrNotFound)
	})
	return found, err
}

// Assets

func (db *LocalDatabase) AddPageAsset(pageID string, asset *models.Asset) error {
	return db.write(func(d *localData) error {
		if !d.hasPage(pageID) {
			return fmt.Errorf("page %w", ErrNotFound)
		}
		var existing *models.Asset
		for i := range d.Assets {
			if d.Assets[i].URL == asset.URL && d.Assets[i].Type == asset.Type {
				existing = &d.Assets[i]
				break
			}
		}
		if existing == nil {
			if asset.ID == "" {
				asset.ID = uuid.New().String()
			}
			now := time.Now().UTC()
			asset.CreatedAt, asset.UpdatedAt = now, now
			d.Assets = append(d.Assets, *asset)
		} else {
			*asset = *existing
		}
		for _, pa := range d.PageAssets {
			if pa.WebpageID == pageID && pa.AssetID == asset.ID {
				return nil
			}
		}
		d.PageAssets = append(d.PageAssets, pageAssetRow{WebpageID: pageID, AssetID: asset.ID})
		return nil
	})
}

func (db *LocalDatabase) ListAssetsByPage(pageID string) ([]models.Asset, error) {
	var out []models.Asset
	err := db.read(func(d *localData) error {
		byID := map[string]models.Asset{}
		for _, a := range d.Assets {
			byID[a.ID] = a
		}
		for _, pa := range d.PageAssets {
			if pa.WebpageID == pageID {
				if a, ok := byID[pa.AssetID]; ok {
					out = append(out, a)
				}
			}
		}
		return nil
	})
	return out, err
}

// HealthCheck verifies that the data directory is reachable
func (db *LocalDatabase) HealthCheck() error {
	if _, err := os.Stat(db.dataDir); os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s", db.dataDir)
	}
	return nil
}

// Close is a no-op for the local store
func (db *LocalDatabase) Close() error {
	return nil
}

// helpers

func filterRows[T any](rows []T, keep func(T) bool) []T {
	out := rows[:0]
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (d *localData) hasPage(id string) bool {
	for _, p := range d.Pages {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (d *localData) tasksFor(pageID string) []models.JiraTask {
	var out []models.JiraTask
	for _, t := range d.JiraTasks {
		if t.WebpageID == pageID {
			out = append(out, t)
		}
	}
	return out
}

// hydrate fills in a page's relations.
func (d *localData) hydrate(p models.Page) models.Page {
	if ownerID, ok := d.PageOwners[p.ID]; ok && p.OwnerID == "" {
		p.OwnerID = ownerID
	}
	users := make(map[string]models.User, len(d.Users))
	for _, u := range d.Users {
		users[u.ID] = u
	}
	if u, ok := users[p.OwnerID]; ok {
		u := u
		p.Owner = &u
	}

	p.Reviewers = []models.User{}
	for _, r := range d.Reviewers {
		if r.WebpageID == p.ID {
			if u, ok := users[r.UserID]; ok {
				p.Reviewers = append(p.Reviewers, u)
			}
		}
	}

	products := make(map[string]models.Product, len(d.Products))
	for _, pr := range d.Products {
		products[pr.ID] = pr
	}
	p.Products = []models.Product{}
	for _, pp := range d.PageProducts {
		if pp.WebpageID == p.ID {
			if pr, ok := products[pp.ProductID]; ok {
				p.Products = append(p.Products, pr)
			}
		}
	}

	p.JiraTasks = d.tasksFor(p.ID)
	if p.JiraTasks == nil {
		p.JiraTasks = []models.JiraTask{}
	}
	sort.SliceStable(p.JiraTasks, func(i, j int) bool { return p.JiraTasks[i].CreatedAt.After(p.JiraTasks[j].CreatedAt) })

	for _, pr := range d.Projects {
		if pr.ID == p.ProjectID {
			pr := pr
			p.Project = &pr
			break
		}
	}
	return p
}
