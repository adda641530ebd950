// internal/models/serviceresponse/types.go
package serviceresponse

import (
	"time"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

// BatchList es la respuesta del registro de lotes.
type BatchList struct {
	Batches     []models.Batch `json:"lotes"`
	RefreshedAt *time.Time     `json:"actualizado,omitempty"`
}

// ExceptionList es la respuesta del registro de excepciones DIAN.
type ExceptionList struct {
	Exceptions  []models.Exception `json:"excepciones"`
	Actionable  int                `json:"accionables"`
	RefreshedAt *time.Time         `json:"actualizado,omitempty"`
}

// ProductList es la respuesta del registro de homologación.
type ProductList struct {
	Products    []models.Product    `json:"productos"`
	Stats       models.ProductStats `json:"estadisticas"`
	RefreshedAt *time.Time          `json:"actualizado,omitempty"`
}

// SuggestionList son las sugerencias de IA ya ordenadas para un producto.
type SuggestionList struct {
	ProductID   int64            `json:"productoId"`
	Suggestions []SuggestionView `json:"sugerencias"`
	Product     models.Product   `json:"producto"`
}

// SuggestionView agrega la recomendación según la banda de confianza.
type SuggestionView struct {
	models.Suggestion
	Recommendation models.ConfidenceBand `json:"recomendacion"`
}

// ErrorBody es el cuerpo de error que ve el tablero. Reintentable indica
// que el usuario puede volver a intentar la acción a mano.
type ErrorBody struct {
	Code      int            `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Retryable bool           `json:"reintentable"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
