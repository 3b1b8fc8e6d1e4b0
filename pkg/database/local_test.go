package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"websites-content-system/pkg/models"
)

func newTestDB(t *testing.T) *LocalDatabase {
	t.Helper()
	db, err := NewLocalDatabase(t.TempDir())
	require.NoError(t, err)
	return db
}

func TestLocalDatabase_Projects(t *testing.T) {
	db := newTestDB(t)

	p1, err := db.GetOrCreateProject("ubuntu.com")
	require.NoError(t, err)
	p2, err := db.GetOrCreateProject("ubuntu.com")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	got, err := db.GetProjectByName("ubuntu.com")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, got.ID)

	_, err = db.GetProjectByName("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := db.ListProjects()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLocalDatabase_PageLifecycle(t *testing.T) {
	db := newTestDB(t)
	project, err := db.GetOrCreateProject("canonical.com")
	require.NoError(t, err)
	owner, err := db.GetOrCreateUser(&models.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	reviewer, err := db.GetOrCreateUser(&models.User{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	require.NoError(t, db.EnsureProducts([]models.Product{{Name: "Juju", Slug: "juju"}}))
	products, err := db.ListProducts()
	require.NoError(t, err)
	require.Len(t, products, 1)

	root := &models.Page{ProjectID: project.ID, Name: "/", URL: "/", OwnerID: owner.ID}
	require.NoError(t, db.CreatePage(root))
	assert.NotEmpty(t, root.ID)
	assert.Equal(t, models.PageStatusAvailable, root.Status)

	child := &models.Page{ProjectID: project.ID, ParentID: root.ID, Name: "/about", URL: "/about", Status: models.PageStatusNew}
	require.NoError(t, db.CreatePage(child))
	assert.Error(t, db.CreatePage(&models.Page{ProjectID: project.ID, Name: "/about"}))

	require.NoError(t, db.SetPageOwner(child.ID, owner.ID))
	require.NoError(t, db.SetPageReviewers(child.ID, []string{reviewer.ID, reviewer.ID}))
	require.NoError(t, db.SetPageProducts(child.ID, []string{products[0].ID}))
	require.NoError(t, db.SetPageStatus(child.ID, models.PageStatusToDelete))

	got, err := db.GetPageByName(project.ID, "/about")
	require.NoError(t, err)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "alice@example.com", got.Owner.Email)
	require.Len(t, got.Reviewers, 1)
	assert.Equal(t, "bob@example.com", got.Reviewers[0].Email)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Juju", got.Products[0].Name)
	assert.Equal(t, models.PageStatusToDelete, got.Status)
	assert.Equal(t, root.ID, got.ParentID)

	// reviewers are replaced, not merged
	require.NoError(t, db.SetPageReviewers(child.ID, nil))
	got, err = db.GetPage(child.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Reviewers)

	pages, err := db.ListPagesByProject(project.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	require.NoError(t, db.DeletePage(child.ID))
	_, err = db.GetPage(child.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.DeletePage(child.ID), ErrNotFound))
}

func TestLocalDatabase_DeletePageRemovesDescendants(t *testing.T) {
	db := newTestDB(t)
	project, _ := db.GetOrCreateProject("p")
	about := &models.Page{ProjectID: project.ID, Name: "/about", URL: "/about"}
	require.NoError(t, db.CreatePage(about))
	team := &models.Page{ProjectID: project.ID, ParentID: about.ID, Name: "/about/team", URL: "/about/team"}
	require.NoError(t, db.CreatePage(team))
	leads := &models.Page{ProjectID: project.ID, ParentID: team.ID, Name: "/about/team/leads", URL: "/about/team/leads"}
	require.NoError(t, db.CreatePage(leads))
	pricing := &models.Page{ProjectID: project.ID, Name: "/pricing", URL: "/pricing"}
	require.NoError(t, db.CreatePage(pricing))

	require.NoError(t, db.CreateJiraTask(&models.JiraTask{JiraID: "WD-1", WebpageID: leads.ID}))
	require.NoError(t, db.SetPageProducts(team.ID, []string{"prod-1"}))

	require.NoError(t, db.DeletePage(about.ID))

	for _, id := range []string{about.ID, team.ID, leads.ID} {
		_, err := db.GetPage(id)
		assert.True(t, errors.Is(err, ErrNotFound), id)
	}
	pages, err := db.ListPagesByProject(project.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "/pricing", pages[0].Name)

	tasks, err := db.ListJiraTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLocalDatabase_OwnerSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	db, err := NewLocalDatabase(dir)
	require.NoError(t, err)
	project, _ := db.GetOrCreateProject("p")
	owner, _ := db.GetOrCreateUser(&models.User{Name: "Alice", Email: "alice@example.com"})
	page := &models.Page{ProjectID: project.ID, Name: "/", URL: "/", OwnerID: owner.ID}
	require.NoError(t, db.CreatePage(page))

	reopened, err := NewLocalDatabase(dir)
	require.NoError(t, err)
	got, err := reopened.GetPage(page.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Owner)
	assert.Equal(t, owner.ID, got.Owner.ID)
}

func TestLocalDatabase_Users(t *testing.T) {
	db := newTestDB(t)

	def1, err := db.GetOrCreateUser(&models.User{Name: models.DefaultUserName})
	require.NoError(t, err)
	def2, err := db.GetOrCreateUser(&models.User{Name: models.DefaultUserName})
	require.NoError(t, err)
	assert.Equal(t, def1.ID, def2.ID)
	assert.True(t, def1.IsDefault())

	_, err = db.GetOrCreateUser(&models.User{Name: "zed", Email: "zed@example.com"})
	require.NoError(t, err)
	_, err = db.GetOrCreateUser(&models.User{Name: "Amy", Email: "amy@example.com"})
	require.NoError(t, err)

	_, err = db.GetUserByEmail("")
	assert.True(t, errors.Is(err, ErrNotFound))

	users, err := db.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "Amy", users[0].Name)
	assert.Equal(t, "zed", users[2].Name)
}

func TestLocalDatabase_JiraTasks(t *testing.T) {
	db := newTestDB(t)
	project, _ := db.GetOrCreateProject("p")
	page := &models.Page{ProjectID: project.ID, Name: "/a", URL: "/a"}
	require.NoError(t, db.CreatePage(page))

	_, err := db.FindOpenJiraTask(page.ID, models.JiraTaskPageRemoval)
	assert.True(t, errors.Is(err, ErrNotFound))

	task := &models.JiraTask{JiraID: "WD-1", WebpageID: page.ID, RequestType: models.JiraTaskPageRemoval}
	require.NoError(t, db.CreateJiraTask(task))
	assert.Equal(t, models.JiraStatusUntriaged, task.Status)

	open, err := db.FindOpenJiraTask(page.ID, models.JiraTaskPageRemoval)
	require.NoError(t, err)
	assert.Equal(t, "WD-1", open.JiraID)

	rejected := &models.JiraTask{JiraID: "WD-2", WebpageID: page.ID, RequestType: models.JiraTaskCopyUpdate, Status: models.JiraStatusRejected}
	require.NoError(t, db.CreateJiraTask(rejected))
	_, err = db.FindOpenJiraTask(page.ID, models.JiraTaskCopyUpdate)
	assert.True(t, errors.Is(err, ErrNotFound))

	tasks, err := db.ListJiraTasksByPage(page.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, db.SetJiraTaskStatus(task.ID, models.JiraStatusDone))
	all, err := db.ListJiraTasks()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.JiraStatusDone, all[0].Status)
	assert.True(t, errors.Is(db.SetJiraTaskStatus("missing", models.JiraStatusDone), ErrNotFound))

	require.NoError(t, db.DeleteJiraTask(task.ID))
	tasks, err = db.ListJiraTasksByPage(page.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestLocalDatabase_Assets(t *testing.T) {
	db := newTestDB(t)
	project, _ := db.GetOrCreateProject("p")
	a := &models.Page{ProjectID: project.ID, Name: "/a", URL: "/a"}
	b := &models.Page{ProjectID: project.ID, Name: "/b", URL: "/b"}
	require.NoError(t, db.CreatePage(a))
	require.NoError(t, db.CreatePage(b))

	img := &models.Asset{Type: "image", URL: "https://assets.example.com/x.png"}
	require.NoError(t, db.AddPageAsset(a.ID, img))
	same := &models.Asset{Type: "image", URL: "https://assets.example.com/x.png"}
	require.NoError(t, db.AddPageAsset(b.ID, same))
	assert.Equal(t, img.ID, same.ID)

	assets, err := db.ListAssetsByPage(a.ID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, img.URL, assets[0].URL)

	assert.True(t, errors.Is(db.AddPageAsset("missing", img), ErrNotFound))
}

func TestLoadProductsAndBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`products:
  - name: Ubuntu Pro
  - name: MAAS
    slug: maas
  - name: ""
`), 0o644))

	products, err := LoadProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "ubuntu-pro", products[0].Slug)
	assert.Equal(t, "maas", products[1].Slug)

	missing, err := LoadProducts(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	db := newTestDB(t)
	defaults, err := Bootstrap(db, products)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultProjectName, defaults.Project.Name)
	assert.True(t, defaults.User.IsDefault())

	_, err = Bootstrap(db, products)
	require.NoError(t, err)
	stored, err := db.ListProducts()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestGetDatabase_ReusesInstance(t *testing.T) {
	t.Cleanup(func() { _ = ResetPool() })
	cfg := DatabaseConfig{UseLocalDB: true, DataDir: t.TempDir()}

	first, err := GetDatabase(cfg)
	require.NoError(t, err)
	second, err := GetDatabase(cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)

	cfg.DataDir = t.TempDir()
	third, err := GetDatabase(cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	stats := GetConnectionStats()
	assert.Equal(t, "connected", stats.Status)
	assert.Equal(t, "local", stats.Backend)

	require.NoError(t, ResetPool())
	assert.Equal(t, "no_connection", GetConnectionStats().Status)
}

func TestAddConnectionParams(t *testing.T) {
	assert.Equal(t, "postgres://h/db?connect_timeout=10", addConnectionParams("postgres://h/db", "connect_timeout=10"))
	assert.Equal(t, "postgres://h/db?a=b&c=d", addConnectionParams("postgres://h/db?a=b", "c=d"))
	assert.Equal(t, "host=h sslmode=require connect_timeout=10", addConnectionParams("host=h", "sslmode=require&connect_timeout=10"))
}
