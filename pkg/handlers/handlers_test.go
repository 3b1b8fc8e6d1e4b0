package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"websites-content-system/pkg/cache"
	"websites-content-system/pkg/config"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/jira"
	"websites-content-system/pkg/middleware"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/tree"
	"websites-content-system/pkg/utils"
)

const project = "example.com"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.APIError `json:"error"`
}

type testServer struct {
	router http.Handler
	db     *database.LocalDatabase
	repo   *sites.Repository
	jira   *jira.MockClient
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	baseDir := t.TempDir()

	templates := filepath.Join(baseDir, "repositories", project, "templates")
	files := map[string]string{
		"index.html":       `{% block title %}Home{% endblock %}`,
		"about/index.html": `{% block title %}About{% endblock %}`,
		"about/team.html":  `{% block title %}Team{% endblock %}`,
		"pricing.html":     `<title>Pricing</title>`,
	}
	for rel, content := range files {
		full := filepath.Join(templates, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	releases := filepath.Join(baseDir, "releases.yaml")
	require.NoError(t, os.WriteFile(releases, []byte("version: !ubuntu 24.04\nname: Noble\n"), 0o644))

	db, err := database.NewLocalDatabase(filepath.Join(baseDir, "data"))
	require.NoError(t, err)
	_, err = database.Bootstrap(db, []models.Product{
		{Name: "Kubernetes", Slug: "kubernetes"},
		{Name: "OpenStack", Slug: "openstack"},
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:  "development",
		DisableSSO:   true,
		UseLocalDB:   true,
		Projects:     []string{project},
		ReleasesFile: releases,
	}
	logger := zap.NewNop()
	repo := sites.NewRepository(db, cache.NewMemoryCache(time.Minute), nil, baseDir, logger)
	mock := jira.NewMockClient()

	treeHandler := NewTreeHandler(cfg, repo, logger)
	productsHandler := NewProductsHandler(db, repo, logger)
	usersHandler := NewUsersHandler(db, repo, logger)
	jiraHandler := NewJiraHandler(cfg, db, repo, mock, logger)
	assetsHandler := NewAssetsHandler(db)
	releasesHandler := NewReleasesHandler(cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(cfg, logger))
	r.Get("/get-tree/{uri}", treeHandler.GetTree)
	r.Get("/get-tree/{uri}/{no_cache}", treeHandler.GetTree)
	r.Get("/projects", treeHandler.ListProjects)
	r.Get("/get-products", productsHandler.GetProducts)
	r.Post("/set-product", productsHandler.SetProducts)
	r.Get("/get-users", usersHandler.GetUsers)
	r.Get("/get-users/{username}", usersHandler.GetUsers)
	r.Post("/set-owner", usersHandler.SetOwner)
	r.Post("/set-reviewers", usersHandler.SetReviewers)
	r.Get("/current-user", usersHandler.CurrentUser)
	r.Post("/request-changes", jiraHandler.RequestChanges)
	r.Get("/get-jira-tasks/{webpage_id}", jiraHandler.GetJiraTasks)
	r.Post("/request-removal", jiraHandler.RequestRemoval)
	r.Post("/create-page", jiraHandler.CreatePage)
	r.Post("/get-webpage-assets", assetsHandler.GetWebpageAssets)
	r.Get("/get-releases", releasesHandler.GetReleases)

	return &testServer{router: r, db: db, repo: repo, jira: mock, cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *testServer) tree(t *testing.T, target string) models.ProjectTree {
	t.Helper()
	rec, env := s.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out models.ProjectTree
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) page(t *testing.T, name string) *models.Page {
	t.Helper()
	got := s.tree(t, "/get-tree/"+project)
	p := tree.FindPage(got.Templates, name)
	require.NotNil(t, p, "page %s", name)
	return p
}

func TestGetTree(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/get-tree/"+project, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.True(t, env.Success)

	var got models.ProjectTree
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, project, got.Name)
	assert.Equal(t, []string{"/", "/about", "/about/team", "/pricing"}, tree.Names(got.Templates))
}

func TestGetTree_UnknownProject(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/get-tree/unknown.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestGetTree_InvalidPolicy(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/get-tree/"+project+"?policy=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTree_FiltersByOwner(t *testing.T) {
	s := newTestServer(t)
	team := s.page(t, "/about/team")

	rec, _ := s.do(t, http.MethodPost, "/set-owner", map[string]interface{}{
		"user_struct": models.UserStruct{Name: "Ada", Email: "ada@example.com"},
		"webpage_id":  team.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := s.tree(t, "/get-tree/"+project+"?owners=ada@example.com")
	assert.Equal(t, []string{"/", "/about", "/about/team"}, tree.Names(got.Templates))

	promoted := s.tree(t, "/get-tree/"+project+"?owners=ada@example.com&policy=promote")
	assert.Equal(t, []string{"/", "/about/team"}, tree.Names(promoted.Templates))

	none := s.tree(t, "/get-tree/"+project+"?owners=nobody@example.com")
	assert.Equal(t, []string{"/"}, tree.Names(none.Templates))
}

func TestGetTree_QueryAndProducts(t *testing.T) {
	s := newTestServer(t)
	pricing := s.page(t, "/pricing")

	products := listProducts(t, s)
	require.Len(t, products, 2)
	rec, _ := s.do(t, http.MethodPost, "/set-product", models.SetProductsRequest{
		WebpageID:  pricing.ID,
		ProductIDs: []string{products[0].ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	byProduct := s.tree(t, "/get-tree/"+project+"?products="+products[0].Name)
	assert.Equal(t, []string{"/", "/pricing"}, tree.Names(byProduct.Templates))

	byQuery := s.tree(t, "/get-tree/"+project+"?query=TEAM")
	assert.Equal(t, []string{"/", "/about", "/about/team"}, tree.Names(byQuery.Templates))

	blank := s.tree(t, "/get-tree/"+project+"?query=%20%20")
	assert.Equal(t, []string{"/"}, tree.Names(blank.Templates))

	empty := s.tree(t, "/get-tree/"+project+"?query=")
	assert.Len(t, tree.Names(empty.Templates), 4)
}

func TestListProjects(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.ProjectTree
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, project, got[0].Name)
}

func listProducts(t *testing.T, s *testServer) []models.Product {
	t.Helper()
	rec, env := s.do(t, http.MethodGet, "/get-products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []models.Product
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestSetProducts_UnknownPage(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodPost, "/set-product", models.SetProductsRequest{WebpageID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestUsers(t *testing.T) {
	s := newTestServer(t)
	about := s.page(t, "/about")

	rec, _ := s.do(t, http.MethodPost, "/set-reviewers", map[string]interface{}{
		"user_structs": []models.UserStruct{
			{Name: "Grace Hopper", Email: "grace@example.com"},
			{Name: "Alan Turing", Email: "alan@example.com"},
		},
		"webpage_id": about.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	about = s.page(t, "/about")
	require.Len(t, about.Reviewers, 2)

	_, env := s.do(t, http.MethodGet, "/get-users", nil)
	var all []models.UserStruct
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2, "the Default user is not listed")

	_, env = s.do(t, http.MethodGet, "/get-users/grace", nil)
	var grace []models.UserStruct
	require.NoError(t, json.Unmarshal(env.Data, &grace))
	require.Len(t, grace, 1)
	assert.Equal(t, "grace@example.com", grace[0].Email)

	got := s.tree(t, "/get-tree/"+project+"?reviewers=alan@example.com")
	assert.Equal(t, []string{"/", "/about"}, tree.Names(got.Templates))
}

func TestCurrentUser(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/current-user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user models.UserStruct
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "dev@localhost", user.Email)
}

func TestRequestChanges(t *testing.T) {
	s := newTestServer(t)
	team := s.page(t, "/about/team")

	rec, env := s.do(t, http.MethodPost, "/request-changes", models.ChangesRequest{
		WebpageID:   team.ID,
		Type:        models.ChangePageRefresh,
		Description: "Refresh the team photos",
		Reporter:    models.UserStruct{Name: "Ada", Email: "ada@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var msg message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "WD-1", msg.JiraTaskID)

	require.Len(t, s.jira.Issues, 1)
	assert.Equal(t, "Page refresh for /about/team", s.jira.Issues[0].Summary)
	assert.Equal(t, "ada@example.com", s.jira.Issues[0].ReporterEmail)

	_, env = s.do(t, http.MethodGet, "/get-jira-tasks/"+team.ID, nil)
	var tasks []models.JiraTask
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, models.JiraTaskPageRefresh, tasks[0].RequestType)

	team = s.page(t, "/about/team")
	require.Len(t, team.JiraTasks, 1, "cached tree was invalidated")
}

func TestRequestChanges_MissingPage(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodPost, "/request-changes", models.ChangesRequest{WebpageID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, s.jira.Issues)
}

func TestRequestRemoval_ExistingPage(t *testing.T) {
	s := newTestServer(t)
	pricing := s.page(t, "/pricing")

	req := models.RemovalRequest{WebpageID: pricing.ID, RedirectURL: "/"}
	rec, _ := s.do(t, http.MethodPost, "/request-removal", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Remove /pricing webpage from code repository and redirect to /", s.jira.Issues[0].Summary)

	pricing = s.page(t, "/pricing")
	assert.Equal(t, models.PageStatusToDelete, pricing.Status)

	rec, env := s.do(t, http.MethodPost, "/request-removal", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TASK_EXISTS", env.Error.Code)
	assert.Len(t, s.jira.Issues, 1)
}

func TestCreatePageAndRemoveIt(t *testing.T) {
	s := newTestServer(t)
	s.page(t, "/about")

	body := models.CreatePageRequest{
		Name:      "careers",
		CopyDoc:   "https://docs.example.com/careers",
		Owner:     models.UserStruct{Name: "Ada", Email: "ada@example.com"},
		Reviewers: []models.UserStruct{{Name: "Grace", Email: "grace@example.com"}},
		Project:   project,
		Parent:    "/about",
	}
	rec, env := s.do(t, http.MethodPost, "/create-page", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		CopyDoc string       `json:"copy_doc"`
		Webpage *models.Page `json:"webpage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, body.CopyDoc, created.CopyDoc)
	assert.Equal(t, "/about/careers", created.Webpage.Name)
	assert.Equal(t, models.PageStatusNew, created.Webpage.Status)

	careers := s.page(t, "/about/careers")
	require.NotNil(t, careers.Owner)
	assert.Equal(t, "ada@example.com", careers.Owner.Email)
	require.Len(t, careers.Reviewers, 1)

	rec, _ = s.do(t, http.MethodPost, "/create-page", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/request-changes", models.ChangesRequest{
		WebpageID: careers.ID,
		Type:      models.ChangeNewWebpage,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = s.do(t, http.MethodPost, "/request-removal", models.RemovalRequest{WebpageID: careers.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, jira.TransitionRejected, s.jira.Transitions["WD-1"])

	_, err := s.db.GetPage(careers.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	got := s.tree(t, "/get-tree/"+project)
	assert.Nil(t, tree.FindPage(got.Templates, "/about/careers"))
}

func TestCreatePage_UnknownParent(t *testing.T) {
	s := newTestServer(t)
	s.page(t, "/")
	rec, _ := s.do(t, http.MethodPost, "/create-page", models.CreatePageRequest{
		Name:    "x",
		Project: project,
		Parent:  "/nowhere",
		Owner:   models.UserStruct{Name: "Ada", Email: "ada@example.com"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePage_InvalidReviewerLeavesNoPage(t *testing.T) {
	s := newTestServer(t)
	s.page(t, "/about")

	body := models.CreatePageRequest{
		Name:      "careers",
		Owner:     models.UserStruct{Name: "Ada", Email: "ada@example.com"},
		Reviewers: []models.UserStruct{{}},
		Project:   project,
		Parent:    "/about",
	}
	rec, env := s.do(t, http.MethodPost, "/create-page", body)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	proj, err := s.db.GetProjectByName(project)
	require.NoError(t, err)
	_, err = s.db.GetPageByName(proj.ID, "/about/careers")
	assert.ErrorIs(t, err, database.ErrNotFound)

	body.Reviewers = []models.UserStruct{{Name: "Grace", Email: "grace@example.com"}}
	rec, _ = s.do(t, http.MethodPost, "/create-page", body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestGetWebpageAssets(t *testing.T) {
	s := newTestServer(t)
	pricing := s.page(t, "/pricing")
	require.NoError(t, s.db.AddPageAsset(pricing.ID, &models.Asset{Type: "image", URL: "https://assets.example.com/a.png"}))

	rec, env := s.do(t, http.MethodPost, "/get-webpage-assets", map[string]string{
		"webpage_url":  "/pricing",
		"project_name": project,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got struct {
		Assets []models.Asset `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got.Assets, 1)
	assert.Equal(t, "image", got.Assets[0].Type)
}

func TestGetReleases(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/get-releases", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t,
		`{"version":{"value":"24.04","type":"ubuntu","has_custom_tag":true},"name":"Noble"}`,
		string(env.Data))
}

func TestGetReleases_MissingFile(t *testing.T) {
	s := newTestServer(t)
	s.cfg.ReleasesFile = filepath.Join(t.TempDir(), "missing.yaml")
	rec, env := s.do(t, http.MethodGet, "/get-releases", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RELEASES_ERROR", env.Error.Code)
}

func TestParseFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?owners=a@x.com,b@x.com&owners=c@x.com&products=&query=team&policy=promote", nil)
	filter, policy, err := parseFilter(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, filter.Owners)
	assert.Empty(t, filter.Products)
	require.NotNil(t, filter.Query)
	assert.Equal(t, "team", *filter.Query)
	assert.Equal(t, tree.PromoteDescendants, policy)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	filter, policy, err = parseFilter(req)
	require.NoError(t, err)
	assert.Nil(t, filter.Query)
	assert.False(t, tree.IsActive(filter))
	assert.Equal(t, tree.KeepAncestors, policy)
}

func TestInvalidateProject_UnknownProjectIsLogged(t *testing.T) {
	s := newTestServer(t)
	assert.NotPanics(t, func() {
		invalidateProject(context.Background(), s.db, s.repo, zap.NewNop(), "missing")
	})
}
