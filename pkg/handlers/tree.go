package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"websites-content-system/pkg/config"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/tree"
	"websites-content-system/pkg/utils"
)

// TreeHandler serves project page trees
type TreeHandler struct {
	config *config.Config
	repo   *sites.Repository
	logger *zap.Logger
}

func NewTreeHandler(cfg *config.Config, repo *sites.Repository, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{config: cfg, repo: repo, logger: logger}
}

// GET /api/get-tree/{uri} and /api/get-tree/{uri}/{no_cache}
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	uri := chi.URLParam(r, "uri")
	if uri == "" {
		utils.WriteBadRequestResponse(w, "project uri required")
		return
	}
	if !h.config.HasProject(uri) {
		utils.WriteNotFoundResponse(w, "unknown project: "+uri)
		return
	}
	noCache := chi.URLParam(r, "no_cache") != ""

	filter, policy, err := parseFilter(r)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "invalid policy", err.Error())
		return
	}

	project := h.repo.GetTree(r.Context(), uri, noCache)
	if tree.IsActive(filter) {
		project = tree.FilterProjectWithPolicy(project, filter, policy)
	}
	utils.WriteNoStoreResponse(w, project)
}

// GET /api/projects
func (h *TreeHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	filter, policy, err := parseFilter(r)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "invalid policy", err.Error())
		return
	}

	projects, err := h.repo.Projects(r.Context(), h.config.Projects, filter, policy)
	if err != nil {
		h.logger.Error("Loading projects failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "failed to load projects")
		return
	}
	utils.WriteNoStoreResponse(w, projects)
}
