package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"websites-content-system/pkg/database"
	"websites-content-system/pkg/middleware"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/utils"
)

// UsersHandler serves people and page ownership
type UsersHandler struct {
	db     database.DatabaseInterface
	repo   *sites.Repository
	logger *zap.Logger
}

func NewUsersHandler(db database.DatabaseInterface, repo *sites.Repository, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{db: db, repo: repo, logger: logger}
}

type setReviewersRequest struct {
	UserStructs []models.UserStruct `json:"user_structs"`
	WebpageID   string              `json:"webpage_id"`
}

type setOwnerRequest struct {
	UserStruct models.UserStruct `json:"user_struct"`
	WebpageID  string            `json:"webpage_id"`
}

// GET /api/get-users and /api/get-users/{username}
func (h *UsersHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	name := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "username")))
	out := make([]models.UserStruct, 0, len(users))
	for _, u := range users {
		if u.IsDefault() {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(u.Name), name) {
			continue
		}
		out = append(out, toUserStruct(u))
	}
	utils.WriteSuccessResponse(w, out)
}

func toUserStruct(u models.User) models.UserStruct {
	return models.UserStruct{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Team:       u.Team,
		Department: u.Department,
		JobTitle:   u.JobTitle,
		Role:       u.Role,
	}
}

// POST /api/set-reviewers
func (h *UsersHandler) SetReviewers(w http.ResponseWriter, r *http.Request) {
	var req setReviewersRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.WebpageID == "" {
		utils.WriteValidationErrorResponse(w, "webpage_id required", "")
		return
	}

	page, err := h.db.GetPage(req.WebpageID)
	if err != nil {
		writeStoreError(w, err, "webpage")
		return
	}

	ids := make([]string, 0, len(req.UserStructs))
	for _, s := range req.UserStructs {
		user, err := resolveUser(h.db, s)
		if err != nil {
			utils.WriteValidationErrorResponse(w, "invalid reviewer", err.Error())
			return
		}
		ids = append(ids, user.ID)
	}
	if err := h.db.SetPageReviewers(page.ID, ids); err != nil {
		writeStoreError(w, err, "webpage")
		return
	}

	invalidateProject(r.Context(), h.db, h.repo, h.logger, page.ProjectID)
	utils.WriteSuccessResponse(w, message{Message: "Successfully set reviewers"})
}

// POST /api/set-owner
func (h *UsersHandler) SetOwner(w http.ResponseWriter, r *http.Request) {
	var req setOwnerRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.WebpageID == "" {
		utils.WriteValidationErrorResponse(w, "webpage_id required", "")
		return
	}

	page, err := h.db.GetPage(req.WebpageID)
	if err != nil {
		writeStoreError(w, err, "webpage")
		return
	}
	user, err := resolveUser(h.db, req.UserStruct)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "invalid owner", err.Error())
		return
	}
	if err := h.db.SetPageOwner(page.ID, user.ID); err != nil {
		writeStoreError(w, err, "webpage")
		return
	}

	invalidateProject(r.Context(), h.db, h.repo, h.logger, page.ProjectID)
	utils.WriteSuccessResponse(w, message{Message: "Successfully set owner"})
}

// GET /api/current-user
func (h *UsersHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	stored, err := h.db.GetUserByEmail(user.Email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		utils.WriteSuccessResponse(w, toUserStruct(*user))
	case err != nil:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	default:
		utils.WriteSuccessResponse(w, toUserStruct(*stored))
	}
}
