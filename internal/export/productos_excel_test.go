package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

func TestFileName(t *testing.T) {
	day := time.Date(2025, 5, 2, 23, 10, 0, 0, time.UTC)
	if got := FileName(day); got != "productos_para_creacion_2025-05-02.xlsx" {
		t.Fatalf("FileName() = %q", got)
	}
}

func TestProductsForCreation(t *testing.T) {
	conf := 45
	marked := models.Timestamp{Time: time.Date(2025, 5, 2, 11, 0, 0, 0, time.UTC)}
	products := []models.Product{
		{
			ID:                  7,
			BatchID:             "LOTE-001",
			SourceRow:           12,
			OriginalDescription: "ACEITE GIRASOL PREMIUM 900ML",
			Client:              "Comiagro",
			State:               models.HomologationForCreation,
			Confidence:          &conf,
			MatchAttempts:       2,
			DetectedAt:          models.Timestamp{Time: time.Date(2025, 5, 2, 10, 30, 0, 0, time.UTC)},
			MarkedAt:            &marked,
			CreationNotes:       "Razón de creación: Producto nuevo en el mercado",
			TopSuggestion:       &models.Suggestion{Code: "BMC-AC-010", Name: "Aceite girasol 1L"},
		},
	}

	dl, err := ProductsForCreation(products, marked.Time)
	if err != nil {
		t.Fatalf("ProductsForCreation() error = %v", err)
	}
	if dl.ContentType != ContentType {
		t.Errorf("ContentType = %q", dl.ContentType)
	}
	if dl.FileName != "productos_para_creacion_2025-05-02.xlsx" {
		t.Errorf("FileName = %q", dl.FileName)
	}

	f, err := excelize.OpenReader(bytes.NewReader(dl.Data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[0][3] != "Descripción Original" {
		t.Errorf("header[3] = %q", rows[0][3])
	}

	want := map[int]string{
		0:  "7",
		1:  "LOTE-001",
		3:  "ACEITE GIRASOL PREMIUM 900ML",
		5:  "45%",
		6:  "BMC-AC-010 - Aceite girasol 1L",
		8:  "2025-05-02 10:30:00",
		9:  "2025-05-02 11:00:00",
		10: "Razón de creación: Producto nuevo en el mercado",
	}
	for col, expected := range want {
		if rows[1][col] != expected {
			t.Errorf("row[1][%d] = %q, want %q", col, rows[1][col], expected)
		}
	}
}

func TestProductsForCreation_Empty(t *testing.T) {
	dl, err := ProductsForCreation(nil, time.Now())
	if err != nil {
		t.Fatalf("ProductsForCreation() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(dl.Data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d", len(rows))
	}
}
