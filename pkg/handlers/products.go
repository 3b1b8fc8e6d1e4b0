package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"websites-content-system/pkg/database"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/sites"
	"websites-content-system/pkg/utils"
)

// ProductsHandler lists products and tags pages with them
type ProductsHandler struct {
	db     database.DatabaseInterface
	repo   *sites.Repository
	logger *zap.Logger
}

func NewProductsHandler(db database.DatabaseInterface, repo *sites.Repository, logger *zap.Logger) *ProductsHandler {
	return &ProductsHandler{db: db, repo: repo, logger: logger}
}

// GET /api/get-products
func (h *ProductsHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.db.ListProducts()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.WriteSuccessResponse(w, products)
}

// POST /api/set-product
func (h *ProductsHandler) SetProducts(w http.ResponseWriter, r *http.Request) {
	var req models.SetProductsRequest
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
	if err := h.db.SetPageProducts(page.ID, req.ProductIDs); err != nil {
		writeStoreError(w, err, "webpage")
		return
	}

	invalidateProject(r.Context(), h.db, h.repo, h.logger, page.ProjectID)
	utils.WriteSuccessResponse(w, message{Message: "Successfully set product"})
}
