package models

import "sort"

// Formato destino por defecto para el mapeo manual.
const TargetComiagro = "comiagro"

// RequiredMappingFields son los campos Comiagro que deben quedar mapeados
// antes de reanudar el procesamiento de un lote.
var RequiredMappingFields = []string{
	"nombreUsuario",
	"nitUsuario",
	"fecha",
	"factNro",
	"producto",
	"cantidad",
	"valorUnitario",
	"total",
}

// DestinationField es un campo del formato destino.
type DestinationField struct {
	ID   string `json:"id"`
	Name string `json:"nombre"`
}

// MappingSuggestions es la propuesta de mapeo que arma el backend a partir
// de las columnas detectadas en el archivo.
type MappingSuggestions struct {
	DestinationFields []DestinationField `json:"camposDestino"`
	DetectedColumns   []string           `json:"columnasDetectadas"`
	// columna origen -> id del campo destino
	Suggestions map[string]string `json:"sugerencias"`
}

// FieldMapping es el mapeo que envía el usuario: id del campo destino -> columna origen.
type FieldMapping map[string]string

// ProposedMapping invierte las sugerencias del backend al formato que se envía.
// Si dos columnas apuntan al mismo campo gana la primera en el orden de
// columnas detectadas.
func (s MappingSuggestions) ProposedMapping() FieldMapping {
	mapping := FieldMapping{}
	seen := map[string]bool{}
	for _, col := range s.DetectedColumns {
		field, ok := s.Suggestions[col]
		if !ok || field == "" || seen[field] {
			continue
		}
		mapping[field] = col
		seen[field] = true
	}
	// sugerencias sobre columnas que no vinieron en la lista detectada
	extra := make([]string, 0, len(s.Suggestions))
	for col := range s.Suggestions {
		extra = append(extra, col)
	}
	sort.Strings(extra)
	for _, col := range extra {
		field := s.Suggestions[col]
		if field == "" || seen[field] {
			continue
		}
		mapping[field] = col
		seen[field] = true
	}
	return mapping
}

// Missing devuelve, en el orden de required, los campos sin columna asignada.
func (m FieldMapping) Missing(required []string) []string {
	missing := []string{}
	for _, field := range required {
		if m[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// MappingSubmission es el cuerpo enviado al reanudar un lote.
type MappingSubmission struct {
	Mapping FieldMapping `json:"mapeo"`
}

// Ack es la confirmación genérica del backend.
type Ack struct {
	Status  string `json:"estado"`
	Message string `json:"mensaje,omitempty"`
}
