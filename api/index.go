package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"websites-content-system/pkg/cache"
	"websites-content-system/pkg/config"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/handlers"
	"websites-content-system/pkg/jira"
	"websites-content-system/pkg/logger"
	customMiddleware "websites-content-system/pkg/middleware"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/sitescan"
	"websites-content-system/pkg/tasks"
	"websites-content-system/pkg/utils"
)

// maxBodyBytes bounds request payloads; the largest is a create-page form.
const maxBodyBytes = 1 << 20

var (
	appOnce sync.Once
	app     *App
	appErr  error
)

// App is the assembled service
type App struct {
	Handler http.Handler
	DB      database.DatabaseInterface
	Repo    *sites.Repository
	Jira    jira.Client
	Logger  *zap.Logger
}

// Handler is the serverless entry point. The router and its dependencies are
// built on the first request and reused afterwards.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	appOnce.Do(func() {
		app, appErr = Build(cfg)
	})
	if appErr != nil {
		utils.WriteInternalServerErrorResponse(w, "Startup error: "+appErr.Error())
		return
	}
	app.Handler.ServeHTTP(w, r)
}

// Build wires storage, cache, ticketing and logging from cfg.
func Build(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	database.SetLogger(log)

	db, err := database.GetDatabase(database.DatabaseConfig{
		UseLocalDB:  cfg.UseLocalDB,
		PostgresDSN: cfg.PostgresDSN,
		DataDir:     cfg.DataDir,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	products, err := database.LoadProducts(cfg.ProductsFile)
	if err != nil {
		return nil, err
	}
	if _, err := database.Bootstrap(db, products); err != nil {
		return nil, err
	}

	treeCache := cache.New(cfg.CacheDir, cfg.TreeCacheTTL, log)
	repo := sites.NewRepository(db, treeCache, sitescan.New(log), cfg.BaseDir, log)
	jiraClient := NewJiraClient(cfg, log)

	return &App{
		Handler: NewRouter(cfg, db, repo, jiraClient, log),
		DB:      db,
		Repo:    repo,
		Jira:    jiraClient,
		Logger:  log,
	}, nil
}

// Scheduler returns the background jobs of a long-running server: periodic
// tree rebuilds and ticket status polling.
func (a *App) Scheduler(cfg *config.Config) *tasks.Scheduler {
	s := tasks.NewScheduler(a.Logger)
	s.Add(tasks.Job{
		Name:     "refresh-trees",
		Interval: cfg.TreeRefreshInterval,
		Run:      tasks.RefreshTrees(a.Repo, cfg.Projects, a.Logger),
	})
	s.Add(tasks.Job{
		Name:     "update-jira-statuses",
		Interval: cfg.JiraStatusInterval,
		Run:      tasks.UpdateJiraStatuses(a.DB, a.Jira, a.Repo, a.Logger),
	})
	return s
}

// NewJiraClient returns the HTTP client when a Jira URL is configured and an
// in-memory client otherwise.
func NewJiraClient(cfg *config.Config, log *zap.Logger) jira.Client {
	if cfg.JiraURL == "" {
		log.Warn("JIRA_URL not set, tickets are kept in memory")
		return jira.NewMockClient()
	}
	return jira.NewHTTPClient(jira.Config{
		URL:             cfg.JiraURL,
		Email:           cfg.JiraEmail,
		Token:           cfg.JiraToken,
		Labels:          cfg.JiraLabels,
		CopyUpdatesEpic: cfg.JiraCopyUpdatesEpic,
	}, log)
}

// NewRouter assembles middleware and routes
func NewRouter(cfg *config.Config, db database.DatabaseInterface, repo *sites.Repository, jiraClient jira.Client, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	setupMiddleware(r, cfg, log)
	setupRoutes(r, cfg, db, repo, jiraClient, log)
	return r
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, log *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(log))
	router.Use(customMiddleware.Recovery(cfg, log))

	router.Use(customMiddleware.CORS(cfg))

	// Repository scans of large sites can take a while on a cold cache.
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.Compress(5))
	router.Use(customMiddleware.MaxBodySize(maxBodyBytes))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, repo *sites.Repository, jiraClient jira.Client, log *zap.Logger) {
	healthHandler := handlers.NewHealthHandler(cfg, db)
	treeHandler := handlers.NewTreeHandler(cfg, repo, log)
	productsHandler := handlers.NewProductsHandler(db, repo, log)
	usersHandler := handlers.NewUsersHandler(db, repo, log)
	jiraHandler := handlers.NewJiraHandler(cfg, db, repo, jiraClient, log)
	assetsHandler := handlers.NewAssetsHandler(db)
	releasesHandler := handlers.NewReleasesHandler(cfg, log)

	router.Get("/", healthHandler.HealthCheck)

	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
		router.Get("/debug/config", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, map[string]interface{}{
				"projects":       cfg.Projects,
				"base_dir":       cfg.BaseDir,
				"repositories":   filepath.Join(cfg.BaseDir, "repositories"),
				"tree_cache_ttl": cfg.TreeCacheTTL.String(),
				"jira":           cfg.JiraURL != "",
				"disable_sso":    cfg.DisableSSO,
			})
		})
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.AuthMiddleware(cfg, log))

		r.Get("/current-user", usersHandler.CurrentUser)

		r.Get("/projects", treeHandler.ListProjects)
		r.Get("/get-tree/{uri}", treeHandler.GetTree)
		r.Get("/get-tree/{uri}/{no_cache}", treeHandler.GetTree)

		r.Get("/get-products", productsHandler.GetProducts)
		r.Get("/get-users", usersHandler.GetUsers)
		r.Get("/get-users/{username}", usersHandler.GetUsers)
		r.Get("/get-jira-tasks/{webpage_id}", jiraHandler.GetJiraTasks)
		r.Get("/get-releases", releasesHandler.GetReleases)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeJSON)

			r.Post("/set-product", productsHandler.SetProducts)
			r.Post("/set-reviewers", usersHandler.SetReviewers)
			r.Post("/set-owner", usersHandler.SetOwner)
			r.Post("/request-changes", jiraHandler.RequestChanges)
			r.Post("/request-removal", jiraHandler.RequestRemoval)
			r.Post("/create-page", jiraHandler.CreatePage)
			r.Post("/get-webpage-assets", assetsHandler.GetWebpageAssets)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
