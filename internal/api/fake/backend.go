// Package fake implementa en memoria las mismas operaciones que el cliente
// HTTP del backend Armorum. Se usa en pruebas de los registros.
package fake

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

type Backend struct {
	mu sync.Mutex

	Batches     []models.Batch
	Details     map[int64]models.BatchDetail
	Exceptions  []models.Exception
	Products    []models.Product
	Suggestions map[string][]models.Suggestion
	Mapping     models.MappingSuggestions
	Templates   map[int64][]byte

	// Errors fuerza una falla por operación (ej: "ListBatches").
	Errors map[string]error
	// Block, si no es nil, detiene las operaciones de lectura hasta que se
	// cierre o se cancele el contexto.
	Block chan struct{}
	// ConfirmResponse, si no es nil, es lo que responde ConfirmMatch sin
	// modificar el producto guardado.
	ConfirmResponse *models.Product

	calls       map[string]int
	nextBatchID int64
	Submitted   []models.Upload
	Mappings    map[int64]models.FieldMapping
}

func NewBackend() *Backend {
	return &Backend{
		Details:     map[int64]models.BatchDetail{},
		Suggestions: map[string][]models.Suggestion{},
		Templates:   map[int64][]byte{},
		Errors:      map[string]error{},
		calls:       map[string]int{},
		Mappings:    map[int64]models.FieldMapping{},
		nextBatchID: 100,
	}
}

// Calls devuelve cuántas veces se invocó una operación.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// TotalCalls suma las llamadas de todas las operaciones.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// SetBatchState simula el avance del procesamiento en el backend.
func (b *Backend) SetBatchState(id int64, state models.BatchState, total, errs int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Batches {
		if b.Batches[i].ID == id {
			b.Batches[i].State = state
			b.Batches[i].TotalRecords = total
			b.Batches[i].ErrorCount = errs
		}
	}
}

func (b *Backend) enter(ctx context.Context, op string, read bool) error {
	b.mu.Lock()
	b.calls[op]++
	block := b.Block
	err := b.Errors[op]
	b.mu.Unlock()

	if read && block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return fmt.Errorf("request cancelled: %w", ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("request cancelled: %w", err)
	}
	return err
}

func notFound(what string, id int64) error {
	return apperrors.ErrExternalAPI(http.StatusNotFound, fmt.Sprintf("%s %d no encontrado", what, id), nil)
}

func (b *Backend) SubmitBatch(ctx context.Context, up models.Upload) (models.Batch, error) {
	if err := b.enter(ctx, "SubmitBatch", false); err != nil {
		return models.Batch{}, err
	}
	if up.Content != nil {
		if _, err := io.Copy(io.Discard, up.Content); err != nil {
			return models.Batch{}, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextBatchID++
	batch := models.Batch{
		ID:         b.nextBatchID,
		FileName:   up.FileName,
		UploadedAt: models.Timestamp{Time: time.Now().UTC()},
		Client:     up.ClientID,
		Format:     up.FormatHint,
		State:      models.BatchProcessing,
	}
	b.Batches = append([]models.Batch{batch}, b.Batches...)
	b.Submitted = append(b.Submitted, up)
	return batch, nil
}

func (b *Backend) ListBatches(ctx context.Context) ([]models.Batch, error) {
	if err := b.enter(ctx, "ListBatches", true); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Batch(nil), b.Batches...), nil
}

func (b *Backend) GetBatch(ctx context.Context, batchID int64) (models.BatchDetail, error) {
	if err := b.enter(ctx, "GetBatch", true); err != nil {
		return models.BatchDetail{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.Details[batchID]; ok {
		return d, nil
	}
	for _, batch := range b.Batches {
		if batch.ID == batchID {
			return models.BatchDetail{Batch: batch}, nil
		}
	}
	return models.BatchDetail{}, notFound("Lote", batchID)
}

func (b *Backend) DownloadTemplate(ctx context.Context, batchID int64) (models.Download, error) {
	if err := b.enter(ctx, "DownloadTemplate", false); err != nil {
		return models.Download{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.Templates[batchID]
	if !ok {
		return models.Download{}, notFound("Plantilla del lote", batchID)
	}
	return models.Download{
		FileName:    fmt.Sprintf("plantilla_comiagro_lote_%d.xlsx", batchID),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

func (b *Backend) MappingSuggestions(ctx context.Context, batchID int64, target string) (models.MappingSuggestions, error) {
	if err := b.enter(ctx, "MappingSuggestions", true); err != nil {
		return models.MappingSuggestions{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Mapping, nil
}

func (b *Backend) SubmitMapping(ctx context.Context, batchID int64, mapping models.FieldMapping) (models.Ack, error) {
	if err := b.enter(ctx, "SubmitMapping", false); err != nil {
		return models.Ack{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Batches {
		if b.Batches[i].ID == batchID {
			b.Batches[i].State = models.BatchProcessing
			b.Batches[i].NeedsMapping = false
			b.Batches[i].ManuallyMapped = true
			b.Mappings[batchID] = mapping
			return models.Ack{Status: "success"}, nil
		}
	}
	return models.Ack{}, notFound("Lote", batchID)
}

func (b *Backend) ListExceptions(ctx context.Context) ([]models.Exception, error) {
	if err := b.enter(ctx, "ListExceptions", true); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Exception(nil), b.Exceptions...), nil
}

func (b *Backend) ResolveException(ctx context.Context, exceptionID int64, action models.ExceptionAction, notes string) (models.Exception, error) {
	if err := b.enter(ctx, "ResolveException", false); err != nil {
		return models.Exception{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Exceptions {
		if b.Exceptions[i].ID == exceptionID {
			b.Exceptions[i].State = action.Target()
			if notes != "" {
				b.Exceptions[i].Notes = notes
			}
			return b.Exceptions[i], nil
		}
	}
	return models.Exception{}, notFound("Excepción", exceptionID)
}

func (b *Backend) ListProducts(ctx context.Context) ([]models.Product, error) {
	if err := b.enter(ctx, "ListProducts", true); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Product(nil), b.Products...), nil
}

func (b *Backend) SuggestProducts(ctx context.Context, description string) ([]models.Suggestion, error) {
	if err := b.enter(ctx, "SuggestProducts", false); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Suggestion(nil), b.Suggestions[description]...), nil
}

func (b *Backend) ConfirmMatch(ctx context.Context, productID int64, code string) (models.Product, error) {
	if err := b.enter(ctx, "ConfirmMatch", false); err != nil {
		return models.Product{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ConfirmResponse != nil {
		return *b.ConfirmResponse, nil
	}
	for i := range b.Products {
		if b.Products[i].ID == productID {
			c := code
			now := models.Timestamp{Time: time.Now().UTC()}
			b.Products[i].State = models.HomologationDone
			b.Products[i].AssignedCode = &c
			b.Products[i].HomologatedAt = &now
			return b.Products[i], nil
		}
	}
	return models.Product{}, notFound("Producto", productID)
}

func (b *Backend) MarkForCreation(ctx context.Context, productID int64, req models.CreationRequest) (models.Product, error) {
	if err := b.enter(ctx, "MarkForCreation", false); err != nil {
		return models.Product{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Products {
		if b.Products[i].ID == productID {
			now := models.Timestamp{Time: time.Now().UTC()}
			b.Products[i].State = models.HomologationForCreation
			b.Products[i].CreationNotes = req.Summary()
			b.Products[i].MarkedAt = &now
			return b.Products[i], nil
		}
	}
	return models.Product{}, notFound("Producto", productID)
}
