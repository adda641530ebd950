package validator

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

// DefaultMaxUploadBytes es el tamaño máximo que acepta el backend (50MB).
const DefaultMaxUploadBytes int64 = 50 * 1024 * 1024

// RequestValidator hace las validaciones locales previas a cualquier
// llamada al backend. Un rechazo aquí nunca genera tráfico de red.
type RequestValidator struct {
	structs        *playground.Validate
	maxUploadBytes int64
}

// NewRequestValidator creates a new RequestValidator instance
func NewRequestValidator(maxUploadBytes int64) *RequestValidator {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}

	v := playground.New()
	// Reportar los errores con el nombre JSON del campo
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("creation_reason", func(fl playground.FieldLevel) bool {
		_, ok := models.CreationReasonLabels[models.CreationReason(fl.Field().String())]
		return ok
	})
	_ = v.RegisterValidation("product_category", func(fl playground.FieldLevel) bool {
		value := fl.Field().String()
		for _, c := range models.ProductCategories {
			if c == value {
				return true
			}
		}
		return false
	})

	return &RequestValidator{
		structs:        v,
		maxUploadBytes: maxUploadBytes,
	}
}

// ValidateFileName rechaza nombres vacíos o con rutas
func (v *RequestValidator) ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.ErrValidation("Debe seleccionar un archivo", nil)
	}

	// solo el nombre base; ".." únicamente es ruta como componente completo
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return apperrors.ErrValidation("el nombre del archivo no puede contener rutas", nil)
	}

	dangerousChars := []string{"<", ">", "\"", "|", "\n", "\r", "\t", "\x00"}
	for _, char := range dangerousChars {
		if strings.Contains(name, char) {
			return apperrors.ErrValidation("el nombre del archivo contiene caracteres inválidos", nil)
		}
	}
	return nil
}

// ClientHint normaliza el cliente indicado por el usuario; vacío es "auto".
func ClientHint(clientID string) string {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return models.AutoHint
	}
	return clientID
}

// FormatHint devuelve el valor que se envía al backend y la categoría con la
// que se valida la extensión. La autodetección viaja como "auto_detect" y
// valida contra el conjunto completo de extensiones.
func FormatHint(hint string) (string, models.FormatCategory, error) {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch h {
	case "", models.AutoHint, models.AutoDetectHint:
		return models.AutoDetectHint, models.FormatCustom, nil
	}
	category, err := models.ParseFormatCategory(h)
	if err != nil {
		return "", "", apperrors.ErrValidation("formato de archivo desconocido", err).
			WithMetadata("format_hint", hint)
	}
	return h, category, nil
}

// ValidateUpload valida nombre, extensión y tamaño del archivo contra la
// categoría de formato seleccionada. Devuelve el hint de formato para el backend.
func (v *RequestValidator) ValidateUpload(name string, size int64, formatHint string) (string, error) {
	if err := v.ValidateFileName(name); err != nil {
		return "", err
	}

	wireHint, category, err := FormatHint(formatHint)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !contains(category.Extensions(), ext) {
		return "", apperrors.ErrInvalidFormat(name).
			WithMetadata("allowed_extensions", category.Extensions())
	}

	if size > v.maxUploadBytes {
		return "", apperrors.ErrValidation("Archivo muy grande", nil).
			WithMetadata("max_bytes", v.maxUploadBytes).
			WithMetadata("size_bytes", size)
	}

	return wireHint, nil
}

// ValidateMapping exige que todos los campos requeridos tengan columna.
// El mensaje enumera exactamente los faltantes.
func (v *RequestValidator) ValidateMapping(mapping models.FieldMapping) error {
	missing := mapping.Missing(models.RequiredMappingFields)
	if len(missing) > 0 {
		return apperrors.ErrMissingFields(
			"Faltan campos requeridos por mapear: "+strings.Join(missing, ", "),
			missing,
		)
	}
	return nil
}

// ValidateCreation valida el formulario de creación manual de producto.
func (v *RequestValidator) ValidateCreation(req models.CreationRequest) error {
	err := v.structs.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.ErrValidation("formulario inválido", err)
	}

	missing := []string{}
	invalid := []string{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}

	if len(missing) > 0 {
		return apperrors.ErrMissingFields(
			"Faltan campos obligatorios: "+strings.Join(missing, ", "),
			missing,
		)
	}
	return apperrors.ErrValidation("valores no permitidos: "+strings.Join(invalid, ", "), nil).
		WithMetadata("invalid_fields", invalid)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
