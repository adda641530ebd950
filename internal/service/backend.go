package service

import (
	"context"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

// Una interfaz por operación del backend Armorum. El cliente HTTP
// (api.ArmorumClient) y el fake de pruebas implementan todas.

type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, up models.Upload) (models.Batch, error)
}

type BatchLister interface {
	ListBatches(ctx context.Context) ([]models.Batch, error)
}

type BatchDetailGetter interface {
	GetBatch(ctx context.Context, batchID int64) (models.BatchDetail, error)
}

type TemplateDownloader interface {
	DownloadTemplate(ctx context.Context, batchID int64) (models.Download, error)
}

type ExceptionLister interface {
	ListExceptions(ctx context.Context) ([]models.Exception, error)
}

type ExceptionResolver interface {
	ResolveException(ctx context.Context, exceptionID int64, action models.ExceptionAction, notes string) (models.Exception, error)
}

type MappingSuggester interface {
	MappingSuggestions(ctx context.Context, batchID int64, target string) (models.MappingSuggestions, error)
}

type MappingSubmitter interface {
	SubmitMapping(ctx context.Context, batchID int64, mapping models.FieldMapping) (models.Ack, error)
}

type ProductLister interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type ProductSuggester interface {
	SuggestProducts(ctx context.Context, description string) ([]models.Suggestion, error)
}

type MatchConfirmer interface {
	ConfirmMatch(ctx context.Context, productID int64, code string) (models.Product, error)
}

type CreationMarker interface {
	MarkForCreation(ctx context.Context, productID int64, req models.CreationRequest) (models.Product, error)
}

// BatchBackend agrupa lo que necesita el registro de lotes.
type BatchBackend interface {
	BatchLister
	BatchDetailGetter
	TemplateDownloader
}

// GatewayBackend agrupa lo que necesita el gateway de carga y mapeo.
type GatewayBackend interface {
	BatchSubmitter
	MappingSuggester
	MappingSubmitter
}

type ExceptionBackend interface {
	ExceptionLister
	ExceptionResolver
}

type ProductBackend interface {
	ProductLister
	ProductSuggester
	MatchConfirmer
	CreationMarker
}

// Backend es el backend Armorum completo.
type Backend interface {
	BatchBackend
	GatewayBackend
	ExceptionBackend
	ProductBackend
}
