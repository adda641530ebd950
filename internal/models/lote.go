package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// BatchState es el estado de un lote tal como lo reporta el backend.
type BatchState string

const (
	BatchProcessing         BatchState = "Procesando"
	BatchValidating         BatchState = "Validando"
	BatchCompleted          BatchState = "Completado"
	BatchCompletedWithWarns BatchState = "Completado con Advertencias"
	BatchError              BatchState = "Error"
)

var batchStates = map[string]BatchState{
	stateKey(string(BatchProcessing)):         BatchProcessing,
	stateKey(string(BatchValidating)):         BatchValidating,
	stateKey(string(BatchCompleted)):          BatchCompleted,
	stateKey(string(BatchCompletedWithWarns)): BatchCompletedWithWarns,
	stateKey(string(BatchError)):              BatchError,
}

// ParseBatchState normaliza cualquier variante de escritura al valor canónico.
func ParseBatchState(s string) (BatchState, error) {
	if st, ok := batchStates[stateKey(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown batch state %q", s)
}

func (s BatchState) IsTerminal() bool {
	switch s {
	case BatchCompleted, BatchCompletedWithWarns, BatchError:
		return true
	}
	return false
}

// AllowsDownload indica si la plantilla Comiagro puede descargarse.
func (s BatchState) AllowsDownload() bool {
	return s == BatchCompleted || s == BatchCompletedWithWarns
}

// CanTransitionTo valida una transición observada entre dos consultas.
// Procesando puede saltar directo a un estado final porque Validando
// no siempre alcanza a verse entre dos polls.
func (s BatchState) CanTransitionTo(next BatchState) bool {
	if s == next {
		return true
	}
	switch s {
	case BatchProcessing:
		return next == BatchValidating || next.IsTerminal()
	case BatchValidating:
		return next.IsTerminal()
	}
	return false
}

func (s *BatchState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("batch state must be a string: %w", err)
	}
	st, err := ParseBatchState(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// FormatCategory es la categoría de formato detectada para el archivo.
type FormatCategory string

const (
	FormatXMLInvoice FormatCategory = "xml"
	FormatTemplate   FormatCategory = "plantilla"
	FormatPlainText  FormatCategory = "texto"
	FormatCustom     FormatCategory = "personalizado"
)

// Hints de autodetección aceptados por el gateway.
const (
	AutoHint       = "auto"
	AutoDetectHint = "auto_detect"
)

// AcceptedExtensions es el conjunto global de extensiones de facturación.
var AcceptedExtensions = []string{".xlsx", ".xls", ".csv", ".xml", ".txt"}

var categoryExtensions = map[FormatCategory][]string{
	FormatXMLInvoice: {".xml"},
	FormatTemplate:   {".xlsx", ".xls", ".csv"},
	FormatPlainText:  {".txt"},
	FormatCustom:     AcceptedExtensions,
}

// ParseFormatCategory acepta la categoría o los nombres de plantilla que
// usa el backend ("comiagro" y "plantilla51" son plantillas tabulares).
func ParseFormatCategory(s string) (FormatCategory, error) {
	switch stateKey(s) {
	case "xml", "xml_factura":
		return FormatXMLInvoice, nil
	case "plantilla", "csv", "excel", "comiagro", "plantilla51":
		return FormatTemplate, nil
	case "texto", "txt":
		return FormatPlainText, nil
	case "personalizado", "custom":
		return FormatCustom, nil
	}
	return "", fmt.Errorf("unknown format category %q", s)
}

// Extensions devuelve las extensiones permitidas para la categoría.
func (c FormatCategory) Extensions() []string {
	if exts, ok := categoryExtensions[c]; ok {
		return exts
	}
	return AcceptedExtensions
}

// CategoryForFile deduce la categoría a partir de la extensión.
func CategoryForFile(name string) FormatCategory {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml":
		return FormatXMLInvoice
	case ".xlsx", ".xls", ".csv":
		return FormatTemplate
	case ".txt":
		return FormatPlainText
	}
	return FormatCustom
}

// Batch (lote) es un archivo cargado y su corrida de procesamiento.
type Batch struct {
	ID             int64      `json:"id"`
	FileName       string     `json:"nombreArchivo"`
	UploadedAt     Timestamp  `json:"fechaCarga"`
	Client         string     `json:"cliente"`
	Format         string     `json:"formato"`
	State          BatchState `json:"estado"`
	TotalRecords   int        `json:"registrosTotales"`
	ErrorCount     int        `json:"errores"`
	NeedsMapping   bool       `json:"requiereMapeo,omitempty"`
	ManuallyMapped bool       `json:"procesadoManualmente,omitempty"`
}

// Category devuelve la categoría de formato del lote. Si el backend no
// la reporta de forma reconocible se deduce del nombre del archivo.
func (b Batch) Category() FormatCategory {
	if c, err := ParseFormatCategory(b.Format); err == nil {
		return c
	}
	return CategoryForFile(b.FileName)
}

// CanDownload indica si el lote permite descargar la plantilla.
func (b Batch) CanDownload() bool {
	return b.State.AllowsDownload()
}

// Normalize fuerza 0 <= errores <= registrosTotales. Devuelve true si tuvo
// que corregir algún valor.
func (b *Batch) Normalize() bool {
	changed := false
	if b.TotalRecords < 0 {
		b.TotalRecords = 0
		changed = true
	}
	if b.ErrorCount < 0 {
		b.ErrorCount = 0
		changed = true
	}
	if b.ErrorCount > b.TotalRecords {
		b.ErrorCount = b.TotalRecords
		changed = true
	}
	return changed
}

// ProcessingLog es una entrada del log de procesamiento de un lote.
type ProcessingLog struct {
	Timestamp Timestamp `json:"timestamp"`
	Message   string    `json:"mensaje"`
}

// RowError es un error de validación en una fila del archivo original.
type RowError struct {
	Row   int    `json:"fila"`
	Field string `json:"campo"`
	Error string `json:"error"`
}

// MappingInfo describe cómo se mapearon las columnas del archivo.
type MappingInfo struct {
	SourceFormat   string   `json:"formatoOrigen"`
	OriginalFields []string `json:"camposOriginales"`
	Mapped         bool     `json:"camposMapeados"`
	UnmappedFields []string `json:"camposNoMapeados"`
}

// BatchDetail es el detalle completo de un lote.
type BatchDetail struct {
	Batch
	Logs      []ProcessingLog `json:"logs"`
	RowErrors []RowError      `json:"erroresFila"`
	Mapping   *MappingInfo    `json:"mapeo,omitempty"`
}

// UnmarshalJSON soporta el formato del backend, donde "errores" puede ser
// el contador del lote o la lista de errores por fila, y el resumen del
// lote puede venir plano o anidado bajo "lote".
func (d *BatchDetail) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID             int64           `json:"id"`
		FileName       string          `json:"nombreArchivo"`
		UploadedAt     Timestamp       `json:"fechaCarga"`
		Client         string          `json:"cliente"`
		Format         string          `json:"formato"`
		State          BatchState      `json:"estado"`
		TotalRecords   int             `json:"registrosTotales"`
		Errors         json.RawMessage `json:"errores"`
		RowErrors      []RowError      `json:"erroresFila"`
		NeedsMapping   bool            `json:"requiereMapeo"`
		ManuallyMapped bool            `json:"procesadoManualmente"`
		Logs           []ProcessingLog `json:"logs"`
		Mapping        *MappingInfo    `json:"mapeo"`
		Summary        *Batch          `json:"lote"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	d.Batch = Batch{
		ID:             aux.ID,
		FileName:       aux.FileName,
		UploadedAt:     aux.UploadedAt,
		Client:         aux.Client,
		Format:         aux.Format,
		State:          aux.State,
		TotalRecords:   aux.TotalRecords,
		NeedsMapping:   aux.NeedsMapping,
		ManuallyMapped: aux.ManuallyMapped,
	}
	if aux.Summary != nil {
		d.Batch = *aux.Summary
	}
	d.Logs = aux.Logs
	d.Mapping = aux.Mapping
	d.RowErrors = aux.RowErrors

	raw := bytes.TrimSpace(aux.Errors)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &d.RowErrors); err != nil {
			return fmt.Errorf("invalid row errors: %w", err)
		}
		if d.ErrorCount == 0 {
			d.ErrorCount = len(d.RowErrors)
		}
	default:
		if err := json.Unmarshal(raw, &d.ErrorCount); err != nil {
			return fmt.Errorf("invalid error count: %w", err)
		}
	}
	return nil
}
