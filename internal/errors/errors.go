package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind separa los errores que se detectan localmente (antes de cualquier
// llamada al backend) de las fallas del backend.
type Kind string

const (
	KindLocal   Kind = "local"
	KindBackend Kind = "backend"
)

// AppError representa un error de aplicación con código HTTP y contexto
type AppError struct {
	Code       int                    `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Internal   error                  `json:"-"` // No se expone al cliente
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Kind       Kind                   `json:"kind"`
	StatusCode int                    `json:"-"` // HTTP status code
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewAppError crea un nuevo error de aplicación
func NewAppError(statusCode int, code int, message string, internal error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Internal:   internal,
		StatusCode: statusCode,
		Metadata:   make(map[string]interface{}),
		Retryable:  false,
		Kind:       KindBackend,
	}
}

// WithDetails agrega detalles adicionales al error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithMetadata agrega metadata al error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRetryable marca el error como reintentable
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

func (e *AppError) local() *AppError {
	e.Kind = KindLocal
	return e
}

// Errores locales: se rechazan sin llamar al backend y sin mutar estado
var (
	ErrValidation = func(details string, err error) *AppError {
		return NewAppError(http.StatusUnprocessableEntity, 42200, "Validation error", err).
			WithDetails(details).
			local()
	}

	// ErrInvalidFormat se usa cuando la extensión del archivo no está permitida
	ErrInvalidFormat = func(fileName string) *AppError {
		return NewAppError(http.StatusUnprocessableEntity, 42201,
			"Formato no válido. Use archivos de facturación (Excel, CSV, XML, TXT).", nil).
			WithMetadata("file_name", fileName).
			local()
	}

	// ErrMissingFields enumera los campos requeridos que faltan
	ErrMissingFields = func(message string, missing []string) *AppError {
		return NewAppError(http.StatusUnprocessableEntity, 42202, message, nil).
			WithMetadata("missing_fields", missing).
			local()
	}

	// ErrActionNotAllowed se usa para acciones sobre registros en estado terminal
	ErrActionNotAllowed = func(details string) *AppError {
		return NewAppError(http.StatusConflict, 40900, "Action not allowed in current state", nil).
			WithDetails(details).
			local()
	}

	ErrNotFound = func(details string, err error) *AppError {
		return NewAppError(http.StatusNotFound, 40400, "Resource not found", err).
			WithDetails(details).
			local()
	}

	// ErrBadRequest se usa cuando la petición del tablero no se puede leer
	ErrBadRequest = func(details string, err error) *AppError {
		return NewAppError(http.StatusBadRequest, 40000, "Invalid request", err).
			WithDetails(details).
			local()
	}
)

// Errores del backend Armorum
var (
	ErrUnauthorized = func(details string, err error) *AppError {
		return NewAppError(http.StatusUnauthorized, 40100, "Authentication failed", err).
			WithDetails(details).
			WithRetryable(false)
	}

	ErrServiceUnavailable = func(details string, err error) *AppError {
		return NewAppError(http.StatusServiceUnavailable, 50300, "Service temporarily unavailable", err).
			WithDetails(details).
			WithRetryable(true)
	}

	ErrGatewayTimeout = func(details string, err error) *AppError {
		return NewAppError(http.StatusGatewayTimeout, 50400, "Request timeout", err).
			WithDetails(details).
			WithRetryable(true)
	}

	// ErrExternalAPI conserva el mensaje del backend tal cual en Details
	ErrExternalAPI = func(statusCode int, details string, err error) *AppError {
		return NewAppError(http.StatusBadGateway, 50200, "External API error", err).
			WithDetails(details).
			WithMetadata("external_status_code", statusCode).
			WithRetryable(statusCode >= 500)
	}
)

// As extrae el *AppError de la cadena de errores
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsLocal indica si el error se detectó antes de llamar al backend
func IsLocal(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.Kind == KindLocal
	}
	return false
}

// IsRetryable verifica si un error es reintentable
func IsRetryable(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode obtiene el código HTTP de un error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// UserMessage devuelve el texto que ve el usuario. Para fallas del backend
// es el mensaje del backend sin modificar.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	if appErr.Details != "" {
		return appErr.Details
	}
	return appErr.Message
}
