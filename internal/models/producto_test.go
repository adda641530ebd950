package models

import (
	"encoding/json"
	"testing"
)

func TestParseHomologationState(t *testing.T) {
	tests := map[string]HomologationState{
		"Pendiente":      HomologationPending,
		"baja confianza": HomologationLowConfidence,
		"Baja_Confianza": HomologationLowConfidence,
		"homologado":     HomologationDone,
		"Para Creación":  HomologationForCreation,
		"para_creacion":  HomologationForCreation,
	}
	for in, want := range tests {
		got, err := ParseHomologationState(in)
		if err != nil || got != want {
			t.Errorf("ParseHomologationState(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseHomologationState("Rechazado"); err == nil {
		t.Errorf("expected error for unknown state")
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		confidence int
		want       ConfidenceBand
	}{
		{100, BandAutoAccept},
		{90, BandAutoAccept},
		{89, BandConfirm},
		{60, BandConfirm},
		{59, BandManualCreate},
		{0, BandManualCreate},
	}
	for _, tt := range tests {
		if got := BandFor(tt.confidence); got != tt.want {
			t.Errorf("BandFor(%d) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestRankSuggestions_StableDescending(t *testing.T) {
	in := []Suggestion{
		{Code: "A", Confidence: 70},
		{Code: "B", Confidence: 95},
		{Code: "C", Confidence: 70},
		{Code: "D", Confidence: 40},
		{Code: "E", Confidence: 95},
	}
	got := RankSuggestions(in)

	want := []string{"B", "E", "A", "C", "D"}
	for i, code := range want {
		if got[i].Code != code {
			t.Fatalf("position %d = %s, want %s (got %+v)", i, got[i].Code, code, got)
		}
	}
	if in[0].Code != "A" {
		t.Errorf("RankSuggestions must not reorder its input")
	}
}

func TestProduct_ApplySuggestions(t *testing.T) {
	t.Run("low best confidence moves to Baja_Confianza", func(t *testing.T) {
		p := Product{ID: 1, State: HomologationPending}
		p.ApplySuggestions([]Suggestion{{Code: "BMC-1", Confidence: 45}, {Code: "BMC-2", Confidence: 30}})
		if p.State != HomologationLowConfidence {
			t.Errorf("State = %q", p.State)
		}
		if p.Confidence == nil || *p.Confidence != 45 {
			t.Errorf("Confidence = %v", p.Confidence)
		}
		if p.MatchAttempts != 1 || p.TopSuggestion == nil || p.TopSuggestion.Code != "BMC-1" {
			t.Errorf("attempts = %d, top = %+v", p.MatchAttempts, p.TopSuggestion)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		p := Product{ID: 2, State: HomologationPending, MatchAttempts: 2}
		p.ApplySuggestions(nil)
		if p.State != HomologationLowConfidence || *p.Confidence != 0 || p.MatchAttempts != 3 {
			t.Errorf("got state %q confidence %d attempts %d", p.State, *p.Confidence, p.MatchAttempts)
		}
	})

	t.Run("high confidence keeps it pending", func(t *testing.T) {
		p := Product{ID: 3, State: HomologationLowConfidence}
		p.ApplySuggestions([]Suggestion{{Code: "BMC-AR-001", Confidence: 92}})
		if p.State != HomologationPending {
			t.Errorf("State = %q", p.State)
		}
	})

	t.Run("terminal state is not changed", func(t *testing.T) {
		code := "BMC-X"
		p := Product{ID: 4, State: HomologationDone, AssignedCode: &code}
		p.ApplySuggestions([]Suggestion{{Code: "BMC-Y", Confidence: 10}})
		if p.State != HomologationDone {
			t.Errorf("State = %q", p.State)
		}
	})
}

func TestProduct_Validate(t *testing.T) {
	empty := ""
	code := "BMC-AR-001"
	over := 120

	tests := []struct {
		name    string
		p       Product
		wantErr bool
	}{
		{"homologated with code", Product{State: HomologationDone, AssignedCode: &code}, false},
		{"homologated without code", Product{State: HomologationDone}, true},
		{"homologated with empty code", Product{State: HomologationDone, AssignedCode: &empty}, true},
		{"confidence out of range", Product{State: HomologationPending, Confidence: &over}, true},
		{"pending without confidence", Product{State: HomologationPending}, false},
	}
	for _, tt := range tests {
		err := tt.p.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestProduct_Unmarshal(t *testing.T) {
	raw := `{
		"id": 3,
		"loteId": "LOTE-001",
		"filaOriginal": 8,
		"descripcionOriginal": "ARROZ DIANA 500GR",
		"cliente": "Comiagro",
		"estadoHomologacion": "Pendiente",
		"confianzaIA": 75,
		"codigoAsignado": null,
		"intentosMatch": 1,
		"fechaDeteccion": "2025-05-02T10:30:00"
	}`
	var p Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.State != HomologationPending || p.AssignedCode != nil || *p.Confidence != 75 {
		t.Errorf("unexpected product %+v", p)
	}
}

func TestComputeProductStats(t *testing.T) {
	products := []Product{
		{State: HomologationPending},
		{State: HomologationPending},
		{State: HomologationLowConfidence},
		{State: HomologationDone},
		{State: HomologationForCreation},
	}
	got := ComputeProductStats(products)
	want := ProductStats{Total: 5, Pending: 2, LowConfidence: 1, Homologated: 1, ForCreation: 1}
	if got != want {
		t.Errorf("ComputeProductStats() = %+v, want %+v", got, want)
	}
}

func TestCreationRequest_Summary(t *testing.T) {
	req := CreationRequest{
		Reason:         ReasonNewProduct,
		Category:       "Aceites y Grasas",
		Specifications: "900ml",
		Notes:          "Marca regional",
	}
	want := "Razón de creación: Producto nuevo en el mercado\nCategoría estimada: Aceites y Grasas\nEspecificaciones: 900ml\nNotas adicionales: Marca regional"
	if got := req.Summary(); got != want {
		t.Errorf("Summary() = %q", got)
	}
}
