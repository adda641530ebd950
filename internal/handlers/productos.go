package handlers

import (
	"net/http"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models/serviceresponse"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/service"
)

type ProductHandler struct {
	products *service.ProductRegistry
}

func NewProductHandler(app *service.App) *ProductHandler {
	return &ProductHandler{products: app.Products}
}

// List GET /api/productos
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serviceresponse.ProductList{
		Products:    h.products.List(),
		Stats:       h.products.Stats(),
		RefreshedAt: refreshedAt(h.products.RefreshedAt()),
	})
}

// Refresh POST /api/productos/refrescar
func (h *ProductHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.List(w, r)
}

// FetchSuggestions POST /api/productos/{id}/sugerencias
func (h *ProductHandler) FetchSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ranked, err := h.products.FetchSuggestions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeSuggestions(w, id, ranked)
}

// Suggestions GET /api/productos/{id}/sugerencias devuelve la última consulta
func (h *ProductHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ranked, _ := h.products.Suggestions(id)
	h.writeSuggestions(w, id, ranked)
}

func (h *ProductHandler) writeSuggestions(w http.ResponseWriter, id int64, ranked []models.Suggestion) {
	views := make([]serviceresponse.SuggestionView, 0, len(ranked))
	for _, s := range ranked {
		views = append(views, serviceresponse.SuggestionView{Suggestion: s, Recommendation: s.Band()})
	}
	product, _ := h.products.Get(id)
	writeJSON(w, http.StatusOK, serviceresponse.SuggestionList{
		ProductID:   id,
		Suggestions: views,
		Product:     product,
	})
}

// Confirm POST /api/productos/{id}/confirmar body {"codigo": "..."}
func (h *ProductHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.products.Confirm(r.Context(), id, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// MarkForCreation POST /api/productos/{id}/creacion
func (h *ProductHandler) MarkForCreation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.CreationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.products.MarkForCreation(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ExportForCreation GET /api/productos/para-creacion/excel
func (h *ProductHandler) ExportForCreation(w http.ResponseWriter, r *http.Request) {
	dl, err := h.products.ExportForCreation(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeDownload(w, dl)
}

// Message GET /api/productos/mensaje
func (h *ProductHandler) Message(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, h.products.Notifier())
}

// CreationOptions GET /api/productos/opciones-creacion
func (h *ProductHandler) CreationOptions(w http.ResponseWriter, r *http.Request) {
	reasons := make([]map[string]string, 0, len(models.CreationReasonLabels))
	for _, reason := range []models.CreationReason{
		models.ReasonNotFound,
		models.ReasonLowConfidence,
		models.ReasonNewProduct,
		models.ReasonDifferentSpecs,
		models.ReasonSpecialBrand,
		models.ReasonOther,
	} {
		reasons = append(reasons, map[string]string{
			"valor":    string(reason),
			"etiqueta": models.CreationReasonLabels[reason],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"razones":    reasons,
		"categorias": models.ProductCategories,
	})
}
