// Package export genera el Excel de productos marcados para creación
// manual que se entrega al equipo BMC.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

const (
	SheetName   = "Productos"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Columns es el encabezado de la hoja, en orden.
var Columns = []string{
	"ID",
	"Lote",
	"Fila Original",
	"Descripción Original",
	"Cliente",
	"Confianza IA",
	"Mejor Sugerencia",
	"Intentos Match",
	"Fecha Detección",
	"Fecha Marcado",
	"Notas Creación",
}

// FileName arma el nombre del archivo para el día dado.
func FileName(day time.Time) string {
	return fmt.Sprintf("productos_para_creacion_%s.xlsx", day.Format("2006-01-02"))
}

// ProductsForCreation escribe una fila por producto. No filtra por estado:
// el llamador decide qué productos exportar.
func ProductsForCreation(products []models.Product, day time.Time) (models.Download, error) {
	f := excelize.NewFile()
	defer f.Close()

	// La hoja por defecto se renombra en lugar de crear una nueva
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return models.Download{}, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return models.Download{}, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, col); err != nil {
			return models.Download{}, err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return models.Download{}, err
		}
	}

	for rowIdx, p := range products {
		for colIdx, value := range row(p) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return models.Download{}, fmt.Errorf("failed to write product %d: %w", p.ID, err)
			}
		}
	}

	for i := range Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 15.0
		if Columns[i] == "Descripción Original" || Columns[i] == "Notas Creación" {
			width = 45
		}
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return models.Download{}, fmt.Errorf("failed to write workbook: %w", err)
	}

	return models.Download{
		FileName:    FileName(day),
		ContentType: ContentType,
		Data:        buffer.Bytes(),
	}, nil
}

func row(p models.Product) []any {
	confidence := ""
	if p.Confidence != nil {
		confidence = strconv.Itoa(*p.Confidence) + "%"
	}
	suggestion := ""
	if p.TopSuggestion != nil {
		suggestion = fmt.Sprintf("%s - %s", p.TopSuggestion.Code, p.TopSuggestion.Name)
	}

	return []any{
		p.ID,
		p.BatchID,
		p.SourceRow,
		p.OriginalDescription,
		p.Client,
		confidence,
		suggestion,
		p.MatchAttempts,
		formatTimestamp(&p.DetectedAt),
		formatTimestamp(p.MarkedAt),
		p.CreationNotes,
	}
}

func formatTimestamp(t *models.Timestamp) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
