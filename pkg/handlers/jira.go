package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"websites-content-system/pkg/config"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/jira"
	"websites-content-system/pkg/middleware"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/tree"
	"websites-content-system/pkg/utils"
)

// JiraHandler opens tickets for page changes, removals and new pages
type JiraHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	repo   *sites.Repository
	jira   jira.Client
	logger *zap.Logger
}

func NewJiraHandler(cfg *config.Config, db database.DatabaseInterface, repo *sites.Repository, client jira.Client, logger *zap.Logger) *JiraHandler {
	return &JiraHandler{config: cfg, db: db, repo: repo, jira: client, logger: logger}
}

// reporter resolves the payload's reporter, defaulting to the caller.
func (h *JiraHandler) reporter(r *http.Request, s models.UserStruct) (*models.User, error) {
	if s.Email == "" && s.Name == "" {
		user, err := middleware.RequireUser(r.Context())
		if err != nil {
			return nil, err
		}
		s = models.UserStruct{Name: user.Name, Email: user.Email}
	}
	return resolveUser(h.db, s)
}

// openTicket creates the issue and records it against the page.
func (h *JiraHandler) openTicket(r *http.Request, page *models.Page, reporter *models.User, req jira.IssueRequest, requestType string) (*models.JiraTask, error) {
	req.ReporterEmail = reporter.Email
	req.ReporterAccountID = reporter.JiraAccountID
	issue, err := h.jira.CreateIssue(r.Context(), req)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	task := &models.JiraTask{
		JiraID:      issue.Key,
		WebpageID:   page.ID,
		UserID:      reporter.ID,
		Summary:     req.Summary,
		RequestType: requestType,
	}
	if err := h.db.CreateJiraTask(task); err != nil {
		return nil, err
	}
	h.logger.Info("Jira task created",
		zap.String("jira_id", task.JiraID),
		zap.String("page", page.Name),
		zap.String("request_type", requestType))
	return task, nil
}

// POST /api/request-changes
func (h *JiraHandler) RequestChanges(w http.ResponseWriter, r *http.Request) {
	var req models.ChangesRequest
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
	reporter, err := h.reporter(r, req.Reporter)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "invalid reporter", err.Error())
		return
	}

	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		summary = jira.DefaultSummary(req.Type, page.Name)
	}
	requestType := req.RequestType
	if requestType == "" {
		requestType = req.Type.TaskType()
	}

	task, err := h.openTicket(r, page, reporter, jira.IssueRequest{
		Summary:     summary,
		Description: req.Description,
		RequestType: req.Type,
		DueDate:     req.DueDate,
	}, requestType)
	if err != nil {
		h.logger.Error("Request changes failed", zap.String("webpage_id", page.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	invalidateProject(r.Context(), h.db, h.repo, h.logger, page.ProjectID)
	utils.WriteCreatedResponse(w, message{Message: "Task created successfully", JiraTaskID: task.JiraID})
}

// GET /api/get-jira-tasks/{webpage_id}
func (h *JiraHandler) GetJiraTasks(w http.ResponseWriter, r *http.Request) {
	webpageID := chi.URLParam(r, "webpage_id")
	tasks, err := h.db.ListJiraTasksByPage(webpageID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if tasks == nil {
		tasks = []models.JiraTask{}
	}
	utils.WriteSuccessResponse(w, tasks)
}

// POST /api/request-removal
//
// NEW pages only exist in the console and are deleted outright after their
// tickets are rejected. Pages in the repository get a removal ticket and are
// marked TO_DELETE.
func (h *JiraHandler) RequestRemoval(w http.ResponseWriter, r *http.Request) {
	var req models.RemovalRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	page, err := h.db.GetPage(req.WebpageID)
	if err != nil {
		writeStoreError(w, err, "webpage")
		return
	}

	if page.Status == models.PageStatusNew {
		h.deleteNewPage(w, r, page)
		return
	}

	if _, err := h.db.FindOpenJiraTask(page.ID, models.JiraTaskPageRemoval); err == nil {
		utils.WriteErrorResponseWithCode(w, http.StatusBadRequest, "TASK_EXISTS", "Jira task already exists",
			"Please reject or complete the existing task before creating a new one")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	reporter, err := h.reporter(r, req.Reporter)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "provided parameters are incorrect", err.Error())
		return
	}

	requestType := req.RequestType
	if requestType == "" {
		requestType = models.JiraTaskPageRemoval
	}
	task, err := h.openTicket(r, page, reporter, jira.IssueRequest{
		Summary:     jira.RemovalSummary(page.Name, req.RedirectURL),
		Description: req.Description,
		RequestType: models.ChangePageRemoval,
		DueDate:     req.DueDate,
	}, requestType)
	if err != nil {
		h.logger.Error("Removal request failed", zap.String("webpage_id", page.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if err := h.db.SetPageStatus(page.ID, models.PageStatusToDelete); err != nil {
		writeStoreError(w, err, "webpage")
		return
	}

	invalidateProject(r.Context(), h.db, h.repo, h.logger, page.ProjectID)
	utils.WriteSuccessResponse(w, message{
		Message:    fmt.Sprintf("removal of %s processed successfully", page.Name),
		JiraTaskID: task.JiraID,
	})
}

func (h *JiraHandler) deleteNewPage(w http.ResponseWriter, r *http.Request, page *models.Page) {
	tasks, err := h.db.ListJiraTasksByPage(page.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	for _, task := range tasks {
		if err := h.jira.ChangeIssueStatus(r.Context(), task.JiraID, jira.TransitionRejected); err != nil {
			h.logger.Error("Rejecting jira task failed", zap.String("jira_id", task.JiraID), zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, fmt.Sprintf("failed to change status of Jira task %s", task.JiraID))
			return
		}
		if err := h.db.DeleteJiraTask(task.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
	}
	if err := h.db.DeletePage(page.ID); err != nil {
		h.logger.Error("Error deleting webpage", zap.String("webpage_id", page.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "unable to delete the webpage")
		return
	}

	invalidateProject(r.Context(), h.db, h.repo, h.logger, page.ProjectID)
	utils.WriteSuccessResponse(w, message{Message: "Webpage has been removed successfully"})
}

// POST /api/create-page
func (h *JiraHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePageRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Project == "" || req.Parent == "" {
		utils.WriteValidationErrorResponse(w, "name, project and parent required", "")
		return
	}

	project, err := h.db.GetProjectByName(req.Project)
	if err != nil {
		writeStoreError(w, err, "project")
		return
	}
	parent, err := h.db.GetPageByName(project.ID, req.Parent)
	if err != nil {
		writeStoreError(w, err, "parent webpage")
		return
	}

	name := strings.TrimSpace(req.Name)
	if !strings.HasPrefix(name, "/") {
		name = path.Join(parent.Name, name)
	}
	if _, err := h.db.GetPageByName(project.ID, name); err == nil {
		utils.WriteConflictResponse(w, "webpage already exists: "+name)
		return
	}

	owner, err := resolveUser(h.db, req.Owner)
	if err != nil {
		utils.WriteValidationErrorResponse(w, "invalid owner", err.Error())
		return
	}
	reviewerIDs := make([]string, 0, len(req.Reviewers))
	for _, s := range req.Reviewers {
		reviewer, err := resolveUser(h.db, s)
		if err != nil {
			utils.WriteValidationErrorResponse(w, "invalid reviewer", err.Error())
			return
		}
		reviewerIDs = append(reviewerIDs, reviewer.ID)
	}

	page := &models.Page{
		ProjectID:   project.ID,
		ParentID:    parent.ID,
		Name:        name,
		URL:         name,
		CopyDocLink: req.CopyDoc,
		Status:      models.PageStatusNew,
		OwnerID:     owner.ID,
	}
	if err := h.db.CreatePage(page); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// A page is created whole or not at all.
	fail := func(err error) {
		if derr := h.db.DeletePage(page.ID); derr != nil {
			h.logger.Error("Rolling back created page",
				zap.String("page", page.Name), zap.Error(derr))
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
	if err := h.db.SetPageReviewers(page.ID, reviewerIDs); err != nil {
		fail(err)
		return
	}
	if err := h.db.SetPageProducts(page.ID, req.ProductIDs); err != nil {
		fail(err)
		return
	}

	stored, err := h.db.GetPage(page.ID)
	if err != nil {
		writeStoreError(w, err, "webpage")
		return
	}
	h.addToCachedTree(r, project.Name, stored)

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"copy_doc": stored.CopyDocLink,
		"webpage":  stored,
	})
}

// addToCachedTree inserts a new page into the cached tree, or drops the cached
// tree when the parent is not part of it.
func (h *JiraHandler) addToCachedTree(r *http.Request, project string, page *models.Page) {
	current := h.repo.GetTree(r.Context(), project, false)
	updated, ok := tree.InsertPage(current, page)
	if ok {
		if err := h.repo.Store(r.Context(), updated); err == nil {
			return
		}
	}
	if err := h.repo.Invalidate(r.Context(), project); err != nil {
		h.logger.Warn("Cache invalidation failed", zap.String("project", project), zap.Error(err))
	}
}
