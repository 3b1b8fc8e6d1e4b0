package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"websites-content-system/pkg/database"
	"websites-content-system/pkg/jira"
	"websites-content-system/pkg/sites"
)

// RefreshTrees rebuilds every project tree from its repository and replaces
// the cached copy.
func RefreshTrees(repo *sites.Repository, projects []string, logger *zap.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		var errs []error
		for _, project := range projects {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := repo.LoadTree(ctx, project, true)
			if err != nil {
				errs = append(errs, fmt.Errorf("refresh %s: %w", project, err))
				continue
			}
			logger.Info("Tree refreshed", zap.String("project", t.Name))
		}
		return errors.Join(errs...)
	}
}

// UpdateJiraStatuses copies each ticket's current status into the database
// and invalidates the cached trees of projects whose tickets changed.
func UpdateJiraStatuses(db database.DatabaseInterface, client jira.Client, repo *sites.Repository, logger *zap.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		tasks, err := db.ListJiraTasks()
		if err != nil {
			return fmt.Errorf("list jira tasks: %w", err)
		}

		changedPages := map[string]struct{}{}
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			status, err := client.IssueStatus(ctx, task.JiraID)
			if err != nil {
				logger.Warn("Fetching jira status", zap.String("jira_id", task.JiraID), zap.Error(err))
				continue
			}
			if status == task.Status {
				continue
			}
			if err := db.SetJiraTaskStatus(task.ID, status); err != nil {
				return err
			}
			logger.Info("Jira task status updated",
				zap.String("jira_id", task.JiraID),
				zap.String("from", task.Status),
				zap.String("to", status))
			changedPages[task.WebpageID] = struct{}{}
		}

		for _, project := range projectsOf(db, changedPages, logger) {
			if err := repo.Invalidate(ctx, project); err != nil {
				return err
			}
		}
		return nil
	}
}

// projectsOf resolves page ids to sorted, distinct project names. Pages that
// no longer exist are skipped.
func projectsOf(db database.DatabaseInterface, pageIDs map[string]struct{}, logger *zap.Logger) []string {
	seen := map[string]struct{}{}
	for id := range pageIDs {
		page, err := db.GetPage(id)
		if err != nil {
			logger.Debug("Page of jira task not found", zap.String("webpage_id", id), zap.Error(err))
			continue
		}
		proj, err := db.GetProjectByID(page.ProjectID)
		if err != nil {
			logger.Debug("Project of page not found", zap.String("project_id", page.ProjectID), zap.Error(err))
			continue
		}
		seen[proj.Name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
