package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models/serviceresponse"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/service"
)

// multipartOverhead es el margen sobre el tamaño máximo de archivo para
// los demás campos del formulario.
const multipartOverhead = 1 << 20

type BatchHandler struct {
	batches        *service.BatchRegistry
	gateway        *service.Gateway
	maxUploadBytes int64
}

func NewBatchHandler(app *service.App, maxUploadBytes int64) *BatchHandler {
	return &BatchHandler{
		batches:        app.Batches,
		gateway:        app.Gateway,
		maxUploadBytes: maxUploadBytes,
	}
}

// List GET /api/lotes
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serviceresponse.BatchList{
		Batches:     h.batches.List(),
		RefreshedAt: refreshedAt(h.batches.RefreshedAt()),
	})
}

// Refresh POST /api/lotes/refrescar
func (h *BatchHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.batches.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.List(w, r)
}

// Detail GET /api/lotes/{id}
func (h *BatchHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	detail, err := h.batches.Detail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DownloadTemplate GET /api/lotes/{id}/plantilla
func (h *BatchHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	dl, err := h.batches.DownloadTemplate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeDownload(w, dl)
}

// Upload POST /api/lotes (multipart: archivo, clienteId, formatoArchivo)
func (h *BatchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := apperrors.ErrValidation("Archivo muy grande", err).
				WithMetadata("max_bytes", h.maxUploadBytes)
			h.batches.Notifier().Error(apperrors.UserMessage(appErr))
			writeError(w, appErr)
			return
		}
		writeError(w, apperrors.ErrBadRequest("formulario inválido", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	up := models.Upload{
		ClientID:   r.FormValue("clienteId"),
		FormatHint: r.FormValue("formatoArchivo"),
	}

	file, header, err := r.FormFile("archivo")
	switch {
	case err == nil:
		defer file.Close()
		up.FileName = header.Filename
		up.Size = header.Size
		up.Content = file
	case errors.Is(err, http.ErrMissingFile):
		// sin archivo: el gateway lo rechaza con el mensaje correspondiente
	default:
		logging.FromContext(r.Context()).Error("failed to read uploaded file", zap.Error(err))
		writeError(w, apperrors.ErrValidation("no se pudo leer el archivo", err))
		return
	}

	batch, err := h.gateway.Upload(r.Context(), up)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

// MappingSuggestions GET /api/lotes/{id}/mapeo/sugerencias?formatoDestino=comiagro
func (h *BatchHandler) MappingSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	suggestions, err := h.gateway.MappingSuggestions(r.Context(), id, r.URL.Query().Get("formatoDestino"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		models.MappingSuggestions
		Proposed models.FieldMapping `json:"mapeoPropuesto"`
		Required []string            `json:"camposRequeridos"`
	}{
		MappingSuggestions: suggestions,
		Proposed:           suggestions.ProposedMapping(),
		Required:           models.RequiredMappingFields,
	})
}

// SubmitMapping POST /api/lotes/{id}/mapeo
func (h *BatchHandler) SubmitMapping(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.MappingSubmission
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ack, err := h.gateway.SubmitMapping(r.Context(), id, req.Mapping)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// Message GET /api/lotes/mensaje
func (h *BatchHandler) Message(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, h.batches.Notifier())
}
