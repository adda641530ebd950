package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/notify"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/validator"
)

// Settings agrupa los intervalos de polling y el TTL de los mensajes.
type Settings struct {
	BatchPollInterval     time.Duration
	ExceptionPollInterval time.Duration
	ProductPollInterval   time.Duration
	MessageTTL            time.Duration
	MaxUploadBytes        int64
}

// App es el contenedor de los tres registros y el gateway. Cada registro
// tiene su propio canal de mensajes.
type App struct {
	Batches    *BatchRegistry
	Exceptions *ExceptionRegistry
	Products   *ProductRegistry
	Gateway    *Gateway
}

func NewApp(backend Backend, settings Settings) *App {
	v := validator.NewRequestValidator(settings.MaxUploadBytes)

	batches := NewBatchRegistry(backend, notify.NewNotifier(settings.MessageTTL), settings.BatchPollInterval)
	return &App{
		Batches:    batches,
		Exceptions: NewExceptionRegistry(backend, notify.NewNotifier(settings.MessageTTL), settings.ExceptionPollInterval),
		Products:   NewProductRegistry(backend, v, notify.NewNotifier(settings.MessageTTL), settings.ProductPollInterval),
		Gateway:    NewGateway(backend, v, batches),
	}
}

// Start arranca el polling de los tres registros. Si alguno falla se
// detienen los que ya habían arrancado.
func (a *App) Start(ctx context.Context) error {
	if err := a.Batches.Start(ctx); err != nil {
		return err
	}
	if err := a.Exceptions.Start(ctx); err != nil {
		a.Batches.Stop()
		return err
	}
	if err := a.Products.Start(ctx); err != nil {
		a.Batches.Stop()
		a.Exceptions.Stop()
		return err
	}
	return nil
}

func (a *App) Stop() {
	a.Batches.Stop()
	a.Exceptions.Stop()
	a.Products.Stop()
}

// RefreshAll refresca los tres registros en paralelo. Una falla no cancela
// a los demás: cada registro conserva sus últimos datos buenos y se
// devuelve el primer error.
func (a *App) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return a.Batches.Refresh(ctx) })
	g.Go(func() error { return a.Exceptions.Refresh(ctx) })
	g.Go(func() error { return a.Products.Refresh(ctx) })

	if err := g.Wait(); err != nil {
		zap.L().Warn("refresh all finished with errors", zap.Error(err))
		return err
	}
	return nil
}
