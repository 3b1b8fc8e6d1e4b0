package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"websites-content-system/pkg/cache"
	"websites-content-system/pkg/config"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/jira"
	"websites-content-system/pkg/sites"
)

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	baseDir := t.TempDir()
	index := filepath.Join(baseDir, "repositories", "example.com", "templates", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(index), 0o755))
	require.NoError(t, os.WriteFile(index, []byte("<title>Home</title>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(index), "about.html"), []byte("<title>About</title>"), 0o644))

	db, err := database.NewLocalDatabase(filepath.Join(baseDir, "data"))
	require.NoError(t, err)
	_, err = database.Bootstrap(db, nil)
	require.NoError(t, err)

	repo := sites.NewRepository(db, cache.NewMemoryCache(time.Minute), nil, baseDir, zap.NewNop())
	return NewRouter(cfg, db, repo, jira.NewMockClient(), zap.NewNop())
}

func TestRouter(t *testing.T) {
	cfg := &config.Config{
		Environment: "development",
		DisableSSO:  true,
		UseLocalDB:  true,
		Projects:    []string{"example.com"},
	}
	router := newTestRouter(t, cfg)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		status      int
	}{
		{"health", http.MethodGet, "/", "", http.StatusOK},
		{"heartbeat", http.MethodGet, "/ping", "", http.StatusOK},
		{"pool stats", http.MethodGet, "/debug/db-pool", "", http.StatusOK},
		{"tree", http.MethodGet, "/api/get-tree/example.com", "", http.StatusOK},
		{"trailing slash", http.MethodGet, "/api/get-tree/example.com/", "", http.StatusOK},
		{"tree without cache", http.MethodGet, "/api/get-tree/example.com/no-cache", "", http.StatusOK},
		{"projects", http.MethodGet, "/api/projects", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/projects", "", http.StatusMethodNotAllowed},
		{"post without json", http.MethodPost, "/api/set-owner", "text/plain", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	cfg := &config.Config{
		Environment: "production",
		JWTSecret:   "secret",
		Projects:    []string{"example.com"},
	}
	router := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/db-pool", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewJiraClient(t *testing.T) {
	_, ok := NewJiraClient(&config.Config{}, zap.NewNop()).(*jira.MockClient)
	assert.True(t, ok)

	_, ok = NewJiraClient(&config.Config{JiraURL: "https://jira.example.com"}, zap.NewNop()).(*jira.HTTPClient)
	assert.True(t, ok)
}

func TestAppScheduler(t *testing.T) {
	app := &App{Logger: zap.NewNop(), Jira: jira.NewMockClient()}

	s := app.Scheduler(&config.Config{TreeRefreshInterval: time.Hour, JiraStatusInterval: time.Minute})
	assert.Equal(t, []string{"refresh-trees", "update-jira-statuses"}, s.Jobs())

	s = app.Scheduler(&config.Config{JiraStatusInterval: time.Minute})
	assert.Equal(t, []string{"update-jira-statuses"}, s.Jobs())
}
