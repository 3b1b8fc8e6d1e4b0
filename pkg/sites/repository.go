package sites

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"websites-content-system/pkg/cache"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sitescan"
	"websites-content-system/pkg/tree"
)

// maxParallelLoads bounds concurrent project loads in Projects.
const maxParallelLoads = 4

// Repository loads project page trees from the cache, the database or the
// site's checked out repository, in that order.
type Repository struct {
	db      database.DatabaseInterface
	cache   cache.Cache
	scanner *sitescan.Scanner
	baseDir string
	logger  *zap.Logger

	locks sync.Map // project name -> *sync.Mutex
}

// NewRepository wires a Repository. Site checkouts live under
// <baseDir>/repositories/<project>.
func NewRepository(db database.DatabaseInterface, c cache.Cache, scanner *sitescan.Scanner, baseDir string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scanner == nil {
		scanner = sitescan.New(logger)
	}
	return &Repository{db: db, cache: c, scanner: scanner, baseDir: baseDir, logger: logger}
}

// RepoPath returns the checkout directory of a project.
func (r *Repository) RepoPath(project string) string {
	return filepath.Join(r.baseDir, "repositories", filepath.Base(filepath.Clean("/"+project)))
}

func (r *Repository) lock(project string) func() {
	m, _ := r.locks.LoadOrStore(project, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetTree returns the project's tree. Load failures are logged and yield an
// empty tree.
func (r *Repository) GetTree(ctx context.Context, project string, noCache bool) models.ProjectTree {
	t, err := r.LoadTree(ctx, project, noCache)
	if err != nil {
		r.logger.Error("Error loading tree", zap.String("project", project), zap.Error(err))
		return models.EmptyTree(project)
	}
	return t
}

// LoadTree returns the cached tree unless noCache is set, then the tree stored
// in the database, and rescans the repository when the stored tree is empty,
// incomplete or noCache is set. The result is cached.
func (r *Repository) LoadTree(ctx context.Context, project string, noCache bool) (models.ProjectTree, error) {
	if !noCache {
		if t, ok := r.fromCache(ctx, project); ok {
			return t, nil
		}
	}

	unlock := r.lock(project)
	defer unlock()

	// another request may have filled the cache while we waited
	if !noCache {
		if t, ok := r.fromCache(ctx, project); ok {
			return t, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return models.ProjectTree{}, err
	}

	r.logger.Info("Loading tree from database", zap.String("project", project))
	proj, err := r.db.GetOrCreateProject(project)
	if err != nil {
		return models.ProjectTree{}, fmt.Errorf("project %s: %w", project, err)
	}

	var root *models.Page
	if !noCache {
		root, err = r.fromDatabase(proj)
		if err != nil {
			return models.ProjectTree{}, err
		}
	}
	if root == nil {
		r.logger.Info("Scanning repository", zap.String("project", project), zap.String("path", r.RepoPath(project)))
		root, err = r.fromRepository(proj)
		if err != nil {
			return models.ProjectTree{}, err
		}
	}

	t := models.ProjectTree{Name: project, Templates: tree.SortByName(root)}
	if err := r.cache.Set(ctx, project, t); err != nil {
		r.logger.Warn("Error caching tree", zap.String("project", project), zap.Error(err))
	}
	r.logger.Info("Tree loaded", zap.String("project", project), zap.Int("pages", tree.Count(t.Templates)))
	return t, nil
}

func (r *Repository) fromCache(ctx context.Context, project string) (models.ProjectTree, bool) {
	var t models.ProjectTree
	ok, err := r.cache.Get(ctx, project, &t)
	if err != nil {
		r.logger.Warn("Error reading cached tree", zap.String("project", project), zap.Error(err))
		return t, false
	}
	return t, ok && t.Templates != nil
}

// fromDatabase returns nil when the stored tree cannot be trusted.
func (r *Repository) fromDatabase(proj *models.Project) (*models.Page, error) {
	pages, err := r.db.ListPagesByProject(proj.ID)
	if err != nil {
		return nil, fmt.Errorf("list pages of %s: %w", proj.Name, err)
	}
	if len(pages) == 0 || incomplete(pages) {
		return nil, nil
	}
	root := tree.Build(pages)
	if root == nil || len(root.Children) == 0 {
		r.logger.Info("Reloading incomplete tree root", zap.String("project", proj.Name))
		return nil, nil
	}
	attachProject(root, proj)
	return root, nil
}

// incomplete reports pages saved before a scan finished: a child with
// neither name nor title, or a root without children.
func incomplete(pages []models.Page) bool {
	hasChildren := map[string]bool{}
	for _, p := range pages {
		if p.ParentID != "" {
			hasChildren[p.ParentID] = true
		}
	}
	for _, p := range pages {
		if p.ParentID != "" && p.Name == "" && p.Title == "" {
			return true
		}
		if p.ParentID == "" && !hasChildren[p.ID] {
			return true
		}
	}
	return false
}

func attachProject(root *models.Page, proj *models.Project) {
	tree.Walk(root, func(p *models.Page, _ int) bool {
		if p.Project == nil {
			p.Project = proj
		}
		return true
	})
}

func (r *Repository) fromRepository(proj *models.Project) (*models.Page, error) {
	scanned, err := r.scanner.ScanRepository(r.RepoPath(proj.Name))
	if err != nil {
		return nil, err
	}
	owner, err := r.db.GetOrCreateUser(&models.User{Name: models.DefaultUserName})
	if err != nil {
		return nil, fmt.Errorf("default owner: %w", err)
	}

	root, err := r.persist(proj, owner, scanned, "")
	if err != nil {
		return nil, err
	}
	if err := r.removeDeleted(proj, scanned); err != nil {
		return nil, err
	}
	return root, nil
}

// persist stores node and its descendants, returning the stored tree.
func (r *Repository) persist(proj *models.Project, owner *models.User, node *models.Page, parentID string) (*models.Page, error) {
	page, err := r.db.GetPageByName(proj.ID, node.Name)
	switch {
	case errors.Is(err, database.ErrNotFound):
		page = &models.Page{
			ProjectID: proj.ID,
			Name:      node.Name,
			URL:       node.Name,
			OwnerID:   owner.ID,
			Status:    models.PageStatusAvailable,
		}
		fillScanned(page, node, parentID)
		if err := r.db.CreatePage(page); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("get page %s: %w", node.Name, err)
	default:
		fillScanned(page, node, parentID)
		if page.Status == models.PageStatusNew {
			page.Status = models.PageStatusAvailable
		}
		if err := r.db.UpdatePage(page); err != nil {
			return nil, err
		}
	}

	stored, err := r.db.GetPage(page.ID)
	if err != nil {
		return nil, fmt.Errorf("reload page %s: %w", node.Name, err)
	}
	stored.Project = proj
	stored.Children = make([]*models.Page, 0, len(node.Children))
	for _, child := range node.Children {
		c, err := r.persist(proj, owner, child, stored.ID)
		if err != nil {
			return nil, err
		}
		stored.Children = append(stored.Children, c)
	}
	return stored, nil
}

func fillScanned(page, node *models.Page, parentID string) {
	page.ParentID = parentID
	page.Title = node.Title
	page.Description = node.Description
	page.CopyDocLink = node.CopyDocLink
	page.Ext = node.Ext
	page.FilePath = node.FilePath
}

// removeDeleted drops pages marked for deletion that are gone from the
// repository, unless tickets still reference them.
func (r *Repository) removeDeleted(proj *models.Project, scanned *models.Page) error {
	onDisk := map[string]bool{}
	for _, name := range tree.Names(scanned) {
		onDisk[name] = true
	}
	pages, err := r.db.ListPagesByProject(proj.ID)
	if err != nil {
		return fmt.Errorf("list pages of %s: %w", proj.Name, err)
	}
	for _, p := range pages {
		if p.Status != models.PageStatusToDelete || onDisk[p.Name] || len(p.JiraTasks) > 0 {
			continue
		}
		if err := r.db.DeletePage(p.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("delete page %s: %w", p.Name, err)
		}
		r.logger.Info("Removed deleted page", zap.String("project", proj.Name), zap.String("page", p.Name))
	}
	return nil
}

// Invalidate drops the cached tree of a project.
func (r *Repository) Invalidate(ctx context.Context, project string) error {
	if err := r.cache.Delete(ctx, project); err != nil {
		return fmt.Errorf("invalidate %s: %w", project, err)
	}
	return nil
}

// Store replaces the cached tree of a project, e.g. after a page was added.
func (r *Repository) Store(ctx context.Context, t models.ProjectTree) error {
	return r.cache.Set(ctx, t.Name, t)
}

// Projects loads every named project concurrently and applies the filter to
// each tree. Order follows names.
func (r *Repository) Projects(ctx context.Context, names []string, filter models.FilterSpec, policy tree.Policy) ([]models.ProjectTree, error) {
	trees := make([]models.ProjectTree, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, name := range names {
		i, name := i, strings.TrimSpace(name)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trees[i] = r.GetTree(ctx, name, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tree.FilterProjects(trees, filter, policy), nil
}
