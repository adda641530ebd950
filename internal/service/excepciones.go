package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/notify"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/poller"
)

const exceptionRegistryName = "excepciones"

// ExceptionRegistry es la proyección local de las excepciones de terceros.
type ExceptionRegistry struct {
	backend  ExceptionBackend
	notifier *notify.Notifier
	poller   *poller.Poller
	cache    cache[models.Exception]
	now      func() time.Time
}

func NewExceptionRegistry(backend ExceptionBackend, notifier *notify.Notifier, interval time.Duration) *ExceptionRegistry {
	r := &ExceptionRegistry{
		backend:  backend,
		notifier: notifier,
		now:      time.Now,
	}
	r.poller = poller.New(exceptionRegistryName, interval, r.poll)
	return r
}

func (r *ExceptionRegistry) Start(ctx context.Context) error {
	return r.poller.Start(ctx)
}

func (r *ExceptionRegistry) Stop() {
	r.poller.Stop()
	r.cache.invalidate()
}

func (r *ExceptionRegistry) Notifier() *notify.Notifier {
	return r.notifier
}

func (r *ExceptionRegistry) poll(ctx context.Context) {
	_ = r.Refresh(ctx)
}

func (r *ExceptionRegistry) Refresh(ctx context.Context) error {
	return r.refresh(ctx, true)
}

// refresh con report=false solo registra el error en el log; se usa
// después de una acción para no tapar su mensaje.
func (r *ExceptionRegistry) refresh(ctx context.Context, report bool) error {
	ctx = logging.WithRegistry(ctx, exceptionRegistryName)
	logger := logging.FromContext(ctx)

	t := r.cache.begin()
	exceptions, err := r.backend.ListExceptions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("error fetching exceptions", zap.Error(err))
		if report {
			r.notifier.Error("Error al cargar excepciones: " + apperrors.UserMessage(err))
		}
		return err
	}

	if !r.cache.replace(t, exceptions, r.now()) {
		logger.Debug("discarding stale exception refresh")
		return nil
	}
	logger.Info("exceptions refreshed",
		zap.Int("total_exceptions", len(exceptions)),
		zap.Int("actionable", countActionable(exceptions)),
	)
	return nil
}

func (r *ExceptionRegistry) List() []models.Exception {
	return r.cache.snapshot()
}

func (r *ExceptionRegistry) Get(exceptionID int64) (models.Exception, bool) {
	return r.cache.find(func(e models.Exception) bool { return e.ID == exceptionID })
}

// Actionable devuelve solo las excepciones en estado activo.
func (r *ExceptionRegistry) Actionable() []models.Exception {
	out := []models.Exception{}
	for _, e := range r.cache.snapshot() {
		if e.IsActionable() {
			out = append(out, e)
		}
	}
	return out
}

func (r *ExceptionRegistry) ActionableCount() int {
	return countActionable(r.cache.snapshot())
}

// ForBatch filtra las excepciones de un lote.
func (r *ExceptionRegistry) ForBatch(batchID int64) []models.Exception {
	out := []models.Exception{}
	for _, e := range r.cache.snapshot() {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out
}

func (r *ExceptionRegistry) RefreshedAt() time.Time {
	return r.cache.lastRefresh()
}

// Resolve aplica corregir, crear o ignorar sobre una excepción activa.
// Una excepción ya resuelta se rechaza sin llamar al backend.
func (r *ExceptionRegistry) Resolve(ctx context.Context, exceptionID int64, action models.ExceptionAction, notes string) (models.Exception, error) {
	logger := logging.FromContext(ctx).With(
		zap.Int64("excepcion_id", exceptionID),
		zap.String("accion", string(action)),
	)

	if action.Target() == "" {
		err := apperrors.ErrValidation(fmt.Sprintf("Acción desconocida %q", action), nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Exception{}, err
	}

	current, ok := r.Get(exceptionID)
	if !ok {
		err := apperrors.ErrNotFound(fmt.Sprintf("Excepción %d no encontrada", exceptionID), nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Exception{}, err
	}
	if !current.IsActionable() {
		err := apperrors.ErrActionNotAllowed(
			fmt.Sprintf("La excepción %d ya está en estado %s", exceptionID, current.State))
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Exception{}, err
	}

	updated, err := r.backend.ResolveException(ctx, exceptionID, action, notes)
	if err != nil {
		logger.Error("error resolving exception", zap.Error(err))
		r.notifier.Error("Error al actualizar tercero: " + apperrors.UserMessage(err))
		return models.Exception{}, err
	}

	// El backend puede responder solo con un acuse; se completa con lo local
	if updated.ID == 0 {
		updated = current
	}
	if updated.State == "" || updated.State.IsActive() {
		updated.State = action.Target()
	}
	if notes != "" && updated.Notes == "" {
		updated.Notes = notes
	}

	r.cache.mutate(func(items []models.Exception) []models.Exception {
		for i := range items {
			if items[i].ID == exceptionID {
				items[i] = updated
			}
		}
		return items
	})

	logger.Info("exception resolved", zap.String("estado", string(updated.State)))
	r.notifier.Success(fmt.Sprintf("Tercero actualizado correctamente: %s", action))

	if err := r.refresh(ctx, false); err != nil {
		logger.Warn("refresh after resolve failed", zap.Error(err))
	}
	return updated, nil
}

func countActionable(exceptions []models.Exception) int {
	n := 0
	for _, e := range exceptions {
		if e.IsActionable() {
			n++
		}
	}
	return n
}
