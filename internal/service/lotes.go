package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/compare"
	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/notify"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/poller"
)

const batchRegistryName = "lotes"

// BatchRegistry es la proyección local de los lotes del backend.
type BatchRegistry struct {
	backend  BatchBackend
	notifier *notify.Notifier
	poller   *poller.Poller
	cache    cache[models.Batch]
	now      func() time.Time
}

func NewBatchRegistry(backend BatchBackend, notifier *notify.Notifier, interval time.Duration) *BatchRegistry {
	r := &BatchRegistry{
		backend:  backend,
		notifier: notifier,
		now:      time.Now,
	}
	r.poller = poller.New(batchRegistryName, interval, r.poll)
	return r
}

// Start activa el refresco periódico (y uno inmediato).
func (r *BatchRegistry) Start(ctx context.Context) error {
	return r.poller.Start(ctx)
}

// Stop detiene el polling, cancela las peticiones en curso y descarta
// cualquier resultado que llegue después.
func (r *BatchRegistry) Stop() {
	r.poller.Stop()
	r.cache.invalidate()
}

func (r *BatchRegistry) Notifier() *notify.Notifier {
	return r.notifier
}

func (r *BatchRegistry) poll(ctx context.Context) {
	_ = r.Refresh(ctx)
}

// Refresh consulta la lista de lotes. Si falla se conserva el último
// estado conocido y se publica el error.
func (r *BatchRegistry) Refresh(ctx context.Context) error {
	return r.refresh(ctx, true)
}

// refresh con report=false solo registra el error en el log; se usa
// después de una acción para no tapar su mensaje.
func (r *BatchRegistry) refresh(ctx context.Context, report bool) error {
	ctx = logging.WithRegistry(ctx, batchRegistryName)
	logger := logging.FromContext(ctx)

	t := r.cache.begin()
	batches, err := r.backend.ListBatches(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("error fetching batches", zap.Error(err))
		if report {
			r.notifier.Error("Error al cargar lotes: " + apperrors.UserMessage(err))
		}
		return err
	}

	for i := range batches {
		before := batches[i]
		if batches[i].Normalize() {
			logger.Warn("batch counters out of range, normalized",
				zap.Int64("lote_id", before.ID),
				zap.Int("registros_totales", before.TotalRecords),
				zap.Int("errores", before.ErrorCount),
			)
		}
	}

	previous := r.cache.snapshot()
	if !r.cache.replace(t, batches, r.now()) {
		logger.Debug("discarding stale batch refresh")
		return nil
	}

	changes := compare.CompareBatches(previous, batches, logger)
	logger.Info("batches refreshed",
		zap.Int("total_batches", len(batches)),
		zap.Int("changes", len(changes)),
	)
	return nil
}

// List devuelve los lotes en el orden del backend.
func (r *BatchRegistry) List() []models.Batch {
	return r.cache.snapshot()
}

func (r *BatchRegistry) Get(batchID int64) (models.Batch, bool) {
	return r.cache.find(func(b models.Batch) bool { return b.ID == batchID })
}

func (r *BatchRegistry) RefreshedAt() time.Time {
	return r.cache.lastRefresh()
}

// Detail trae el detalle del lote (logs, errores por fila, mapeo) y
// actualiza la proyección con los datos del resumen.
func (r *BatchRegistry) Detail(ctx context.Context, batchID int64) (models.BatchDetail, error) {
	ctx = logging.WithBatchID(ctx, batchID)

	detail, err := r.backend.GetBatch(ctx, batchID)
	if err != nil {
		logging.FromContext(ctx).Error("error fetching batch detail", zap.Error(err))
		r.notifier.Error("Error al obtener detalles: " + apperrors.UserMessage(err))
		return models.BatchDetail{}, err
	}

	if len(detail.RowErrors) > detail.TotalRecords && detail.TotalRecords > 0 {
		logging.FromContext(ctx).Warn("batch detail has more row errors than records",
			zap.Int("errores_fila", len(detail.RowErrors)),
			zap.Int("registros_totales", detail.TotalRecords),
		)
	}
	detail.Batch.Normalize()
	r.upsert(detail.Batch)
	return detail, nil
}

// DownloadTemplate descarga la plantilla Comiagro. Solo se permite para
// lotes Completado o Completado con Advertencias; en otro caso se rechaza
// sin llamar al backend.
func (r *BatchRegistry) DownloadTemplate(ctx context.Context, batchID int64) (models.Download, error) {
	ctx = logging.WithBatchID(ctx, batchID)

	batch, ok := r.Get(batchID)
	if !ok {
		err := apperrors.ErrNotFound(fmt.Sprintf("Lote %d no encontrado", batchID), nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Download{}, err
	}
	if !batch.CanDownload() {
		err := apperrors.ErrActionNotAllowed(
			fmt.Sprintf("La plantilla del lote %d no está disponible en estado %s", batchID, batch.State))
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Download{}, err
	}

	download, err := r.backend.DownloadTemplate(ctx, batchID)
	if err != nil {
		logging.FromContext(ctx).Error("error downloading template", zap.Error(err))
		r.notifier.Error("Error al descargar plantilla: " + apperrors.UserMessage(err))
		return models.Download{}, err
	}

	logging.FromContext(ctx).Info("template downloaded",
		zap.String("file_name", download.FileName),
		zap.Int("bytes", len(download.Data)),
	)
	r.notifier.Success("La plantilla se descargará en breve...")
	return download, nil
}

// upsert inserta o reemplaza un lote. Los lotes nuevos van al inicio.
func (r *BatchRegistry) upsert(batch models.Batch) {
	r.cache.mutate(func(items []models.Batch) []models.Batch {
		for i := range items {
			if items[i].ID == batch.ID {
				items[i] = batch
				return items
			}
		}
		return append([]models.Batch{batch}, items...)
	})
}

// markMappingSubmitted saca al lote de la espera de mapeo manual.
func (r *BatchRegistry) markMappingSubmitted(batchID int64) {
	r.cache.mutate(func(items []models.Batch) []models.Batch {
		for i := range items {
			if items[i].ID == batchID {
				items[i].State = models.BatchProcessing
				items[i].NeedsMapping = false
				items[i].ManuallyMapped = true
			}
		}
		return items
	})
}
