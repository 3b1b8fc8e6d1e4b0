package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"websites-content-system/pkg/config"
	"websites-content-system/pkg/releases"
	"websites-content-system/pkg/utils"
)

// ReleasesHandler serves the parsed releases file
type ReleasesHandler struct {
	config *config.Config
	logger *zap.Logger
}

func NewReleasesHandler(cfg *config.Config, logger *zap.Logger) *ReleasesHandler {
	return &ReleasesHandler{config: cfg, logger: logger}
}

// GET /api/get-releases
func (h *ReleasesHandler) GetReleases(w http.ResponseWriter, r *http.Request) {
	data, err := releases.ParseFile(h.config.ReleasesFile)
	if err != nil {
		h.logger.Error("Failed to parse releases YAML", zap.String("file", h.config.ReleasesFile), zap.Error(err))
		utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "RELEASES_ERROR",
			"Failed to parse releases YAML", err.Error())
		return
	}
	utils.WriteNoStoreResponse(w, data)
}
