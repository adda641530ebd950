package handlers

import (
	"net/http"
	"strconv"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models/serviceresponse"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/service"
)

type ExceptionHandler struct {
	exceptions *service.ExceptionRegistry
}

func NewExceptionHandler(app *service.App) *ExceptionHandler {
	return &ExceptionHandler{exceptions: app.Exceptions}
}

// List GET /api/excepciones[?accionables=true][&loteId=N]
func (h *ExceptionHandler) List(w http.ResponseWriter, r *http.Request) {
	var list []models.Exception
	query := r.URL.Query()

	switch {
	case query.Get("loteId") != "":
		batchID, err := strconv.ParseInt(query.Get("loteId"), 10, 64)
		if err != nil {
			writeError(w, apperrors.ErrValidation("loteId inválido", err))
			return
		}
		list = h.exceptions.ForBatch(batchID)
	case query.Get("accionables") == "true":
		list = h.exceptions.Actionable()
	default:
		list = h.exceptions.List()
	}

	writeJSON(w, http.StatusOK, serviceresponse.ExceptionList{
		Exceptions:  list,
		Actionable:  h.exceptions.ActionableCount(),
		RefreshedAt: refreshedAt(h.exceptions.RefreshedAt()),
	})
}

// Refresh POST /api/excepciones/refrescar
func (h *ExceptionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.exceptions.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.List(w, r)
}

// Resolve POST /api/excepciones/{id}/{accion} body {"notas": "..."}
func (h *ExceptionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	action, err := models.ParseExceptionAction(r.PathValue("accion"))
	if err != nil {
		writeError(w, apperrors.ErrValidation("acción no permitida", err).
			WithMetadata("accion", r.PathValue("accion")))
		return
	}

	var req models.ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.exceptions.Resolve(r.Context(), id, action, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Message GET /api/excepciones/mensaje
func (h *ExceptionHandler) Message(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, h.exceptions.Notifier())
}
