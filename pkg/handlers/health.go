package handlers

import (
	"net/http"
	"time"

	"websites-content-system/pkg/config"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/utils"
)

// HealthHandler reports service status
type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// GET /
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	if err := h.db.HealthCheck(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     "websites-content-system",
		"environment": h.config.Environment,
		"database":    h.databaseType(),
		"db_status":   dbStatus,
		"projects":    h.config.Projects,
		"timestamp":   time.Now().Unix(),
		"status":      "healthy",
	})
}

func (h *HealthHandler) databaseType() string {
	if !h.config.UseLocalDB && h.config.PostgresDSN != "" {
		return "postgresql"
	}
	return "local"
}
