package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// HomologationState es el estado de homologación de un producto contra BMC.
type HomologationState string

const (
	HomologationPending       HomologationState = "Pendiente"
	HomologationLowConfidence HomologationState = "Baja_Confianza"
	HomologationDone          HomologationState = "Homologado"
	HomologationForCreation   HomologationState = "Para_Creacion"
)

var homologationStates = map[string]HomologationState{
	"pendiente":      HomologationPending,
	"baja_confianza": HomologationLowConfidence,
	"homologado":     HomologationDone,
	"para_creacion":  HomologationForCreation,
}

func ParseHomologationState(s string) (HomologationState, error) {
	if st, ok := homologationStates[stateKey(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown homologation state %q", s)
}

// IsActionable indica si el producto admite confirmar match o marcar para creación.
func (s HomologationState) IsActionable() bool {
	return s == HomologationPending || s == HomologationLowConfidence
}

func (s HomologationState) IsTerminal() bool {
	return s == HomologationDone || s == HomologationForCreation
}

func (s *HomologationState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("homologation state must be a string: %w", err)
	}
	st, err := ParseHomologationState(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Umbrales de confianza de la IA (0-100). Son guía para el usuario, no
// reglas que el backend haga cumplir.
const (
	AutoAcceptConfidence = 90
	LowConfidence        = 60
)

// ConfidenceBand es la acción recomendada según la confianza de la IA.
type ConfidenceBand string

const (
	BandAutoAccept   ConfidenceBand = "auto_aceptable"
	BandConfirm      ConfidenceBand = "confirmacion_manual"
	BandManualCreate ConfidenceBand = "creacion_manual"
)

func BandFor(confidence int) ConfidenceBand {
	switch {
	case confidence >= AutoAcceptConfidence:
		return BandAutoAccept
	case confidence >= LowConfidence:
		return BandConfirm
	default:
		return BandManualCreate
	}
}

// Suggestion es un código BMC candidato devuelto por el matcher de IA.
type Suggestion struct {
	Code        string `json:"codigo"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion,omitempty"`
	Confidence  int    `json:"confianza"`
	Category    string `json:"categoria,omitempty"`
	Brand       string `json:"marca,omitempty"`
}

// Band devuelve la recomendación para esta sugerencia.
func (s Suggestion) Band() ConfidenceBand {
	return BandFor(s.Confidence)
}

// RankSuggestions ordena por confianza descendente. El orden es estable:
// con igual confianza se respeta el orden en que respondió el backend.
func RankSuggestions(in []Suggestion) []Suggestion {
	out := make([]Suggestion, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Product es un registro de homologación: un producto del archivo original
// que no se pudo mapear automáticamente a un código BMC.
type Product struct {
	ID                  int64             `json:"id"`
	BatchID             string            `json:"loteId"`
	SourceRow           int               `json:"filaOriginal"`
	OriginalDescription string            `json:"descripcionOriginal"`
	Client              string            `json:"cliente"`
	State               HomologationState `json:"estadoHomologacion"`
	Confidence          *int              `json:"confianzaIA"`
	AssignedCode        *string           `json:"codigoAsignado"`
	MatchAttempts       int               `json:"intentosMatch"`
	DetectedAt          Timestamp         `json:"fechaDeteccion"`
	TopSuggestion       *Suggestion       `json:"sugerenciaIA,omitempty"`
	CreationNotes       string            `json:"notasCreacion,omitempty"`
	HomologatedAt       *Timestamp        `json:"fechaHomologacion,omitempty"`
	MarkedAt            *Timestamp        `json:"fechaMarcado,omitempty"`
}

// Validate revisa las invariantes del registro: un producto Homologado
// siempre lleva código asignado y la confianza está en [0, 100].
func (p Product) Validate() error {
	if p.State == HomologationDone && (p.AssignedCode == nil || *p.AssignedCode == "") {
		return fmt.Errorf("product %d is %s without assigned code", p.ID, p.State)
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 100) {
		return fmt.Errorf("product %d has confidence %d out of range", p.ID, *p.Confidence)
	}
	return nil
}

// ApplySuggestions proyecta sobre el registro el resultado de una consulta
// a la IA: guarda la mejor sugerencia, suma un intento y pasa a
// Baja_Confianza si la mejor confianza no alcanza el umbral.
func (p *Product) ApplySuggestions(ranked []Suggestion) {
	p.MatchAttempts++
	if len(ranked) == 0 {
		zero := 0
		p.Confidence = &zero
		p.TopSuggestion = nil
		if p.State == HomologationPending {
			p.State = HomologationLowConfidence
		}
		return
	}

	best := ranked[0]
	conf := best.Confidence
	p.Confidence = &conf
	p.TopSuggestion = &best

	if !p.State.IsActionable() {
		return
	}
	if conf < LowConfidence {
		p.State = HomologationLowConfidence
	} else {
		p.State = HomologationPending
	}
}

// CreationReason es el motivo por el que un producto se envía a creación en BMC.
type CreationReason string

const (
	ReasonNotFound       CreationReason = "no_encontrado"
	ReasonLowConfidence  CreationReason = "baja_confianza"
	ReasonNewProduct     CreationReason = "nuevo_producto"
	ReasonDifferentSpecs CreationReason = "especificaciones_diferentes"
	ReasonSpecialBrand   CreationReason = "marca_especial"
	ReasonOther          CreationReason = "otro"
)

var CreationReasonLabels = map[CreationReason]string{
	ReasonNotFound:       "Producto no encontrado en catálogo BMC",
	ReasonLowConfidence:  "Confianza IA muy baja (< 60%)",
	ReasonNewProduct:     "Producto nuevo en el mercado",
	ReasonDifferentSpecs: "Especificaciones diferentes a catálogo",
	ReasonSpecialBrand:   "Marca o presentación especial",
	ReasonOther:          "Otro motivo",
}

// ProductCategories son las categorías estimadas que acepta el equipo BMC.
var ProductCategories = []string{
	"Granos y Cereales",
	"Aceites y Grasas",
	"Azúcar y Edulcorantes",
	"Lácteos y Derivados",
	"Carnes y Embutidos",
	"Frutas y Verduras",
	"Bebidas",
	"Productos de Panadería",
	"Condimentos y Especias",
	"Productos Procesados",
	"Productos de Limpieza",
	"Cuidado Personal",
	"Otro",
}

// CreationRequest es el formulario para marcar un producto para creación manual.
type CreationRequest struct {
	Reason         CreationReason `json:"razonCreacion" validate:"required,creation_reason"`
	Category       string         `json:"categoriaEstimada" validate:"required,product_category"`
	Specifications string         `json:"especificaciones" validate:"max=2000"`
	Notes          string         `json:"notas" validate:"max=2000"`
}

// Summary arma las notas consolidadas que se guardan con el producto.
func (r CreationRequest) Summary() string {
	label, ok := CreationReasonLabels[r.Reason]
	if !ok {
		label = string(r.Reason)
	}
	return fmt.Sprintf("Razón de creación: %s\nCategoría estimada: %s\nEspecificaciones: %s\nNotas adicionales: %s",
		label, r.Category, r.Specifications, r.Notes)
}

// ConfirmRequest es el cuerpo enviado al confirmar un match.
type ConfirmRequest struct {
	Code string `json:"codigo"`
}

// SuggestionRequest es el cuerpo enviado al pedir sugerencias a la IA.
type SuggestionRequest struct {
	Description string `json:"descripcion"`
}

// ProductStats resume el registro de productos por estado.
type ProductStats struct {
	Total         int `json:"total"`
	Pending       int `json:"pendientes"`
	LowConfidence int `json:"bajaConfianza"`
	Homologated   int `json:"homologados"`
	ForCreation   int `json:"paraCreacion"`
}

func ComputeProductStats(products []Product) ProductStats {
	stats := ProductStats{Total: len(products)}
	for _, p := range products {
		switch p.State {
		case HomologationPending:
			stats.Pending++
		case HomologationLowConfidence:
			stats.LowConfidence++
		case HomologationDone:
			stats.Homologated++
		case HomologationForCreation:
			stats.ForCreation++
		}
	}
	return stats
}
