package service

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/validator"
)

// Gateway recibe archivos de facturación y mapeos manuales. Todo lo que
// se puede validar localmente se valida antes de llamar al backend; lo
// demás lo decide el backend.
type Gateway struct {
	backend   GatewayBackend
	validator *validator.RequestValidator
	batches   *BatchRegistry
}

func NewGateway(backend GatewayBackend, v *validator.RequestValidator, batches *BatchRegistry) *Gateway {
	return &Gateway{
		backend:   backend,
		validator: v,
		batches:   batches,
	}
}

// Upload envía el archivo al backend. El lote creado se agrega al inicio
// del registro en Procesando y se refresca la lista.
func (g *Gateway) Upload(ctx context.Context, up models.Upload) (models.Batch, error) {
	notifier := g.batches.Notifier()
	logger := logging.FromContext(ctx).With(
		zap.String("file_name", up.FileName),
		zap.Int64("size_bytes", up.Size),
	)

	wireHint, err := g.validator.ValidateUpload(up.FileName, up.Size, up.FormatHint)
	if err != nil {
		logger.Warn("upload rejected locally", zap.Error(err))
		notifier.Error(apperrors.UserMessage(err))
		return models.Batch{}, err
	}
	up.FormatHint = wireHint
	up.ClientID = validator.ClientHint(up.ClientID)

	batch, err := g.backend.SubmitBatch(ctx, up)
	if err != nil {
		logger.Error("error submitting batch", zap.Error(err))
		notifier.Error("Error al subir archivo: " + apperrors.UserMessage(err))
		return models.Batch{}, err
	}

	if batch.State == "" {
		batch.State = models.BatchProcessing
	}
	if batch.FileName == "" {
		batch.FileName = up.FileName
	}
	batch.Normalize()
	g.batches.upsert(batch)

	logger.Info("batch submitted",
		zap.Int64("lote_id", batch.ID),
		zap.String("formato", up.FormatHint),
		zap.String("categoria", string(batch.Category())),
		zap.String("cliente", up.ClientID),
	)
	notifier.Success("Archivo subido correctamente")

	if err := g.batches.refresh(ctx, false); err != nil {
		logger.Warn("refresh after upload failed", zap.Error(err))
	}
	return batch, nil
}

// MappingSuggestions trae las columnas detectadas y la propuesta de
// mapeo para un lote que requiere mapeo manual.
func (g *Gateway) MappingSuggestions(ctx context.Context, batchID int64, target string) (models.MappingSuggestions, error) {
	ctx = logging.WithBatchID(ctx, batchID)
	if target == "" {
		target = models.TargetComiagro
	}

	suggestions, err := g.backend.MappingSuggestions(ctx, batchID, target)
	if err != nil {
		logging.FromContext(ctx).Error("error fetching mapping suggestions", zap.Error(err))
		g.batches.Notifier().Error("Error al cargar sugerencias: " + apperrors.UserMessage(err))
		return models.MappingSuggestions{}, err
	}
	return suggestions, nil
}

// SubmitMapping envía el mapeo campo → columna. Si falta algún campo
// requerido se rechaza sin llamar al backend.
func (g *Gateway) SubmitMapping(ctx context.Context, batchID int64, mapping models.FieldMapping) (models.Ack, error) {
	ctx = logging.WithBatchID(ctx, batchID)
	logger := logging.FromContext(ctx)
	notifier := g.batches.Notifier()

	if err := g.validator.ValidateMapping(mapping); err != nil {
		logger.Warn("mapping rejected locally", zap.Error(err))
		notifier.Error(apperrors.UserMessage(err))
		return models.Ack{}, err
	}

	ack, err := g.backend.SubmitMapping(ctx, batchID, mapping)
	if err != nil {
		logger.Error("error submitting mapping", zap.Error(err))
		notifier.Error("Error al aplicar mapeo: " + apperrors.UserMessage(err))
		return models.Ack{}, err
	}

	g.batches.markMappingSubmitted(batchID)
	logger.Info("manual mapping applied", zap.Int("fields", len(mapping)))
	notifier.Success("Mapeo manual aplicado. El lote continuará su procesamiento.")

	if err := g.batches.refresh(ctx, false); err != nil {
		logger.Warn("refresh after mapping failed", zap.Error(err))
	}
	return ack, nil
}
