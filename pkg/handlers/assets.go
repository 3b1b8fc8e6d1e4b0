package handlers

import (
	"net/http"

	"websites-content-system/pkg/database"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/utils"
)

// AssetsHandler lists the files a page references
type AssetsHandler struct {
	db database.DatabaseInterface
}

func NewAssetsHandler(db database.DatabaseInterface) *AssetsHandler {
	return &AssetsHandler{db: db}
}

type webpageAssetsRequest struct {
	WebpageURL  string `json:"webpage_url"`
	ProjectName string `json:"project_name"`
}

// POST /api/get-webpage-assets
func (h *AssetsHandler) GetWebpageAssets(w http.ResponseWriter, r *http.Request) {
	var req webpageAssetsRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.WebpageURL == "" || req.ProjectName == "" {
		utils.WriteValidationErrorResponse(w, "webpage_url and project_name required", "")
		return
	}

	project, err := h.db.GetProjectByName(req.ProjectName)
	if err != nil {
		writeStoreError(w, err, "project")
		return
	}
	page, err := h.db.GetPageByURL(project.ID, req.WebpageURL)
	if err != nil {
		writeStoreError(w, err, "webpage")
		return
	}
	assets, err := h.db.ListAssetsByPage(page.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"assets": assets})
}
