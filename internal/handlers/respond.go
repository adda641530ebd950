package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models/serviceresponse"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

// writeError traduce el error al cuerpo que ve el tablero. El mensaje es
// el mismo que se publica en el canal de mensajes del registro.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, serviceresponse.ErrorBody{
			Code:    50000,
			Message: err.Error(),
		})
		return
	}

	body := serviceresponse.ErrorBody{
		Code:      appErr.Code,
		Message:   apperrors.UserMessage(err),
		Details:   appErr.Details,
		Retryable: apperrors.IsRetryable(err),
	}
	if len(appErr.Metadata) > 0 {
		body.Metadata = appErr.Metadata
	}
	writeJSON(w, appErr.StatusCode, body)
}

func writeDownload(w http.ResponseWriter, dl models.Download) {
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Data); err != nil {
		zap.L().Error("failed to write download", zap.String("file_name", dl.FileName), zap.Error(err))
	}
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	// cuerpo vacío: los campos quedan en cero
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.ErrBadRequest("JSON inválido", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrValidation(fmt.Sprintf("%s inválido: %q", name, raw), err)
	}
	return id, nil
}

func refreshedAt(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
