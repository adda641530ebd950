package models

import (
	"reflect"
	"testing"
)

func TestFieldMapping_Missing(t *testing.T) {
	mapping := FieldMapping{
		"nombreUsuario": "Cliente",
		"nitUsuario":    "NIT",
		"fecha":         "Fecha",
		"producto":      "Descripcion",
		"cantidad":      "Cant",
		"total":         "",
	}
	got := mapping.Missing(RequiredMappingFields)
	want := []string{"factNro", "valorUnitario", "total"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}

	full := FieldMapping{}
	for _, f := range RequiredMappingFields {
		full[f] = "col_" + f
	}
	if missing := full.Missing(RequiredMappingFields); len(missing) != 0 {
		t.Errorf("Missing() on complete mapping = %v", missing)
	}
}

func TestMappingSuggestions_ProposedMapping(t *testing.T) {
	s := MappingSuggestions{
		DetectedColumns: []string{"NIT", "Razon Social", "NIT Cliente", "Fecha"},
		Suggestions: map[string]string{
			"NIT":          "nitUsuario",
			"Razon Social": "nombreUsuario",
			"NIT Cliente":  "nitUsuario",
			"Fecha":        "fecha",
			"Valor":        "valorUnitario",
		},
	}
	got := s.ProposedMapping()
	want := FieldMapping{
		"nitUsuario":    "NIT",
		"nombreUsuario": "Razon Social",
		"fecha":         "Fecha",
		"valorUnitario": "Valor",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ProposedMapping() = %v, want %v", got, want)
	}
}
