package models

import (
	"encoding/json"
	"fmt"
)

// ExceptionState es el estado de validación DIAN de un tercero.
type ExceptionState string

const (
	ExceptionNotFound        ExceptionState = "No_Encontrado"
	ExceptionInconsistent    ExceptionState = "Inconsistente"
	ExceptionCorrected       ExceptionState = "Corregida"
	ExceptionPendingCreation ExceptionState = "En_Creacion_Manual"
	ExceptionIgnored         ExceptionState = "Ignorada"
)

// Variantes observadas en el backend y en versiones anteriores del tablero.
var exceptionStates = map[string]ExceptionState{
	"no_encontrado":      ExceptionNotFound,
	"inconsistente":      ExceptionInconsistent,
	"corregida":          ExceptionCorrected,
	"corregido":          ExceptionCorrected,
	"en_creacion_manual": ExceptionPendingCreation,
	"ignorada":           ExceptionIgnored,
	"ignorado":           ExceptionIgnored,
}

func ParseExceptionState(s string) (ExceptionState, error) {
	if st, ok := exceptionStates[stateKey(s)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown exception state %q", s)
}

// IsActive indica si la excepción admite acciones del usuario.
func (s ExceptionState) IsActive() bool {
	return s == ExceptionNotFound || s == ExceptionInconsistent
}

func (s *ExceptionState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("exception state must be a string: %w", err)
	}
	st, err := ParseExceptionState(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ExceptionAction es la acción que el usuario aplica sobre una excepción.
type ExceptionAction string

const (
	ActionCorrect ExceptionAction = "corregir"
	ActionCreate  ExceptionAction = "crear"
	ActionIgnore  ExceptionAction = "ignorar"
)

func ParseExceptionAction(s string) (ExceptionAction, error) {
	switch a := ExceptionAction(stateKey(s)); a {
	case ActionCorrect, ActionCreate, ActionIgnore:
		return a, nil
	}
	return "", fmt.Errorf("unknown exception action %q", s)
}

// Target devuelve el estado final al que lleva la acción.
func (a ExceptionAction) Target() ExceptionState {
	switch a {
	case ActionCorrect:
		return ExceptionCorrected
	case ActionCreate:
		return ExceptionPendingCreation
	case ActionIgnore:
		return ExceptionIgnored
	}
	return ""
}

// Exception (excepción de tercero) es un fallo de validación contra la DIAN
// que requiere resolución manual.
type Exception struct {
	ID            int64          `json:"id"`
	BatchID       int64          `json:"loteId"`
	SourceRow     int            `json:"filaOrigen"`
	Document      string         `json:"documento"`
	ReportedName  string         `json:"nombreReportado"`
	AffectedField string         `json:"campoAfectado"`
	State         ExceptionState `json:"estadoValidacion"`
	Notes         string         `json:"notas"`
	DetectedAt    Timestamp      `json:"fechaDeteccion"`
	FileFormat    string         `json:"formatoArchivo,omitempty"`
}

func (e Exception) IsActionable() bool {
	return e.State.IsActive()
}

// ResolveRequest es el cuerpo enviado al aplicar una acción.
type ResolveRequest struct {
	Notes string `json:"notas,omitempty"`
}
