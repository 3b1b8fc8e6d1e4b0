package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"websites-content-system/pkg/database"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/utils"
)

// writeStoreError maps storage errors to 404 or 500 responses.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, database.ErrNotFound) {
		utils.WriteNotFoundResponse(w, what+" not found")
		return
	}
	utils.WriteInternalServerErrorResponse(w, err.Error())
}

// message is the body of mutation responses.
type message struct {
	Message    string `json:"message"`
	JiraTaskID string `json:"jira_task_id,omitempty"`
}

// invalidateProject drops the cached tree of the project a page belongs to.
func invalidateProject(ctx context.Context, db database.DatabaseInterface, repo *sites.Repository, logger *zap.Logger, projectID string) {
	project, err := db.GetProjectByID(projectID)
	if err != nil {
		logger.Warn("Cannot resolve project for cache invalidation", zap.String("project_id", projectID), zap.Error(err))
		return
	}
	if err := repo.Invalidate(ctx, project.Name); err != nil {
		logger.Warn("Cache invalidation failed", zap.String("project", project.Name), zap.Error(err))
	}
}

// resolveUser stores a directory user payload and returns the stored row.
func resolveUser(db database.DatabaseInterface, s models.UserStruct) (*models.User, error) {
	if s.Email == "" && s.Name == "" {
		return nil, errors.New("user needs a name or an email")
	}
	return db.GetOrCreateUser(s.ToUser())
}
