package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/export"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/notify"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/poller"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/validator"
)

const productRegistryName = "productos"

// ProductRegistry es la proyección local de los productos no homologados.
// También guarda el resultado de la última consulta a la IA por producto.
type ProductRegistry struct {
	backend   ProductBackend
	validator *validator.RequestValidator
	notifier  *notify.Notifier
	poller    *poller.Poller
	cache     cache[models.Product]
	now       func() time.Time

	mu       sync.Mutex
	outcomes map[int64]matchOutcome
}

// matchOutcome es lo que una consulta a la IA dejó en el registro. El
// backend no lo persiste, así que se vuelve a aplicar en cada refresco
// mientras el producto siga accionable y el backend no reporte más intentos.
type matchOutcome struct {
	ranked     []models.Suggestion
	confidence *int
	top        *models.Suggestion
	attempts   int
	state      models.HomologationState
}

func outcomeOf(p models.Product, ranked []models.Suggestion) matchOutcome {
	return matchOutcome{
		ranked:     ranked,
		confidence: p.Confidence,
		top:        p.TopSuggestion,
		attempts:   p.MatchAttempts,
		state:      p.State,
	}
}

func (o matchOutcome) apply(p *models.Product) {
	p.Confidence = o.confidence
	p.TopSuggestion = o.top
	p.MatchAttempts = o.attempts
	p.State = o.state
}

// pending indica si el registro del backend todavía no refleja la consulta.
func (o matchOutcome) pending(p models.Product) bool {
	return p.State.IsActionable() && p.MatchAttempts < o.attempts
}

func NewProductRegistry(backend ProductBackend, v *validator.RequestValidator, notifier *notify.Notifier, interval time.Duration) *ProductRegistry {
	r := &ProductRegistry{
		backend:   backend,
		validator: v,
		notifier:  notifier,
		now:       time.Now,
		outcomes:  map[int64]matchOutcome{},
	}
	r.poller = poller.New(productRegistryName, interval, r.poll)
	return r
}

func (r *ProductRegistry) Start(ctx context.Context) error {
	return r.poller.Start(ctx)
}

func (r *ProductRegistry) Stop() {
	r.poller.Stop()
	r.cache.invalidate()
}

func (r *ProductRegistry) Notifier() *notify.Notifier {
	return r.notifier
}

func (r *ProductRegistry) poll(ctx context.Context) {
	_ = r.Refresh(ctx)
}

func (r *ProductRegistry) Refresh(ctx context.Context) error {
	return r.refresh(ctx, true)
}

func (r *ProductRegistry) refresh(ctx context.Context, report bool) error {
	ctx = logging.WithRegistry(ctx, productRegistryName)
	logger := logging.FromContext(ctx)

	t := r.cache.begin()
	products, err := r.backend.ListProducts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("error fetching products", zap.Error(err))
		if report {
			r.notifier.Error("Error al cargar productos: " + apperrors.UserMessage(err))
		}
		return err
	}

	valid := make([]models.Product, 0, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			logger.Error("discarding invalid product record", zap.Int64("producto_id", p.ID), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	r.applyOutcomes(valid)

	if !r.cache.replace(t, valid, r.now()) {
		logger.Debug("discarding stale product refresh")
		return nil
	}
	r.pruneOutcomes(valid)

	logger.Info("products refreshed",
		zap.Int("total_products", len(valid)),
		zap.Int("discarded", len(products)-len(valid)),
	)
	return nil
}

func (r *ProductRegistry) List() []models.Product {
	return r.cache.snapshot()
}

func (r *ProductRegistry) Get(productID int64) (models.Product, bool) {
	return r.cache.find(func(p models.Product) bool { return p.ID == productID })
}

func (r *ProductRegistry) Stats() models.ProductStats {
	return models.ComputeProductStats(r.cache.snapshot())
}

func (r *ProductRegistry) RefreshedAt() time.Time {
	return r.cache.lastRefresh()
}

// ForCreation devuelve los productos en Para_Creacion.
func (r *ProductRegistry) ForCreation() []models.Product {
	out := []models.Product{}
	for _, p := range r.cache.snapshot() {
		if p.State == models.HomologationForCreation {
			out = append(out, p)
		}
	}
	return out
}

// Suggestions devuelve las últimas sugerencias consultadas para el producto.
func (r *ProductRegistry) Suggestions(productID int64) ([]models.Suggestion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.outcomes[productID]
	if !ok {
		return nil, false
	}
	return append([]models.Suggestion(nil), o.ranked...), true
}

// FetchSuggestions consulta a la IA por la descripción original del
// producto, ordena los candidatos y actualiza confianza, intentos y estado
// del registro.
func (r *ProductRegistry) FetchSuggestions(ctx context.Context, productID int64) ([]models.Suggestion, error) {
	logger := logging.FromContext(ctx).With(zap.Int64("producto_id", productID))

	product, ok := r.Get(productID)
	if !ok {
		err := apperrors.ErrNotFound(fmt.Sprintf("Producto %d no encontrado", productID), nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return nil, err
	}
	if strings.TrimSpace(product.OriginalDescription) == "" {
		err := apperrors.ErrValidation("El producto no tiene descripción original", nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return nil, err
	}

	candidates, err := r.backend.SuggestProducts(ctx, product.OriginalDescription)
	if err != nil {
		logger.Error("error fetching suggestions", zap.Error(err))
		r.notifier.Error("Error al obtener sugerencias: " + apperrors.UserMessage(err))
		return nil, err
	}

	ranked := models.RankSuggestions(candidates)

	// el resultado queda guardado antes de mutar la caché
	updated := product
	updated.ApplySuggestions(ranked)
	outcome := outcomeOf(updated, ranked)

	r.mu.Lock()
	r.outcomes[productID] = outcome
	r.mu.Unlock()

	r.cache.mutate(func(items []models.Product) []models.Product {
		for i := range items {
			if items[i].ID == productID {
				outcome.apply(&items[i])
			}
		}
		return items
	})

	logger.Info("suggestions fetched",
		zap.Int("candidates", len(ranked)),
		zap.String("estado", string(updated.State)),
		zap.Int("intentos", updated.MatchAttempts),
	)
	if len(ranked) == 0 {
		r.notifier.Warning("No se encontraron sugerencias para este producto")
	}
	return ranked, nil
}

// Confirm homologa el producto con el código BMC elegido.
func (r *ProductRegistry) Confirm(ctx context.Context, productID int64, code string) (models.Product, error) {
	logger := logging.FromContext(ctx).With(zap.Int64("producto_id", productID))
	code = strings.TrimSpace(code)

	if code == "" {
		err := apperrors.ErrValidation("Debe seleccionar un código BMC", nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Product{}, err
	}
	current, err := r.actionable(productID)
	if err != nil {
		return models.Product{}, err
	}

	updated, err := r.backend.ConfirmMatch(ctx, productID, code)
	if err != nil {
		logger.Error("error confirming match", zap.Error(err))
		r.notifier.Error("Error al confirmar producto: " + apperrors.UserMessage(err))
		return models.Product{}, err
	}

	if updated.ID == 0 {
		updated = current
	}
	if updated.State == "" || updated.State.IsActionable() {
		updated.State = models.HomologationDone
	}
	if updated.AssignedCode == nil || *updated.AssignedCode == "" {
		c := code
		updated.AssignedCode = &c
	}
	if updated.HomologatedAt == nil {
		now := models.Timestamp{Time: r.now()}
		updated.HomologatedAt = &now
	}

	if *updated.AssignedCode != code || updated.State != models.HomologationDone {
		err := apperrors.ErrExternalAPI(0,
			fmt.Sprintf("Respuesta inconsistente: estado %s con código %s", updated.State, *updated.AssignedCode), nil)
		logger.Error("confirm response does not match request",
			zap.String("codigo_enviado", code),
			zap.String("codigo_recibido", *updated.AssignedCode),
			zap.String("estado", string(updated.State)),
		)
		r.notifier.Error("Error al confirmar producto: " + apperrors.UserMessage(err))
		_ = r.refresh(ctx, false)
		return models.Product{}, err
	}
	if err := updated.Validate(); err != nil {
		logger.Error("invalid product in confirm response", zap.Error(err))
		return models.Product{}, apperrors.ErrExternalAPI(0, err.Error(), err)
	}

	r.replaceProduct(updated)
	logger.Info("product homologated", zap.String("codigo", code))
	r.notifier.Success("Producto homologado exitosamente")

	if err := r.refresh(ctx, false); err != nil {
		logger.Warn("refresh after confirm failed", zap.Error(err))
	}
	return updated, nil
}

// MarkForCreation envía el producto al equipo BMC para creación manual. El
// formulario se valida antes de cualquier llamada al backend.
func (r *ProductRegistry) MarkForCreation(ctx context.Context, productID int64, req models.CreationRequest) (models.Product, error) {
	logger := logging.FromContext(ctx).With(zap.Int64("producto_id", productID))

	if err := r.validator.ValidateCreation(req); err != nil {
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Product{}, err
	}
	current, err := r.actionable(productID)
	if err != nil {
		return models.Product{}, err
	}

	updated, err := r.backend.MarkForCreation(ctx, productID, req)
	if err != nil {
		logger.Error("error marking product for creation", zap.Error(err))
		r.notifier.Error("Error al marcar producto: " + apperrors.UserMessage(err))
		return models.Product{}, err
	}

	if updated.ID == 0 {
		updated = current
	}
	if updated.State == "" || updated.State.IsActionable() {
		updated.State = models.HomologationForCreation
	}
	if updated.CreationNotes == "" {
		updated.CreationNotes = req.Summary()
	}
	if updated.MarkedAt == nil {
		now := models.Timestamp{Time: r.now()}
		updated.MarkedAt = &now
	}

	r.replaceProduct(updated)
	logger.Info("product marked for creation",
		zap.String("razon", string(req.Reason)),
		zap.String("categoria", req.Category),
	)
	r.notifier.Success("Producto marcado para creación manual")

	if err := r.refresh(ctx, false); err != nil {
		logger.Warn("refresh after mark for creation failed", zap.Error(err))
	}
	return updated, nil
}

// ExportForCreation genera el Excel con los productos en Para_Creacion.
// Sin productos no se genera archivo.
func (r *ProductRegistry) ExportForCreation(ctx context.Context) (models.Download, error) {
	products := r.ForCreation()
	if len(products) == 0 {
		r.notifier.Warning("No hay productos marcados para creación")
		return models.Download{}, apperrors.ErrNotFound("No hay productos marcados para creación", nil)
	}

	dl, err := export.ProductsForCreation(products, r.now())
	if err != nil {
		logging.FromContext(ctx).Error("error generating creation export", zap.Error(err))
		r.notifier.Error("Error al generar Excel: " + err.Error())
		return models.Download{}, err
	}

	logging.FromContext(ctx).Info("creation export generated",
		zap.String("file_name", dl.FileName),
		zap.Int("products", len(products)),
	)
	r.notifier.Success(fmt.Sprintf("Excel generado con %d productos para creación", len(products)))
	return dl, nil
}

// actionable verifica localmente que el producto exista y admita acciones.
func (r *ProductRegistry) actionable(productID int64) (models.Product, error) {
	current, ok := r.Get(productID)
	if !ok {
		err := apperrors.ErrNotFound(fmt.Sprintf("Producto %d no encontrado", productID), nil)
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Product{}, err
	}
	if !current.State.IsActionable() {
		err := apperrors.ErrActionNotAllowed(
			fmt.Sprintf("El producto %d ya está en estado %s", productID, current.State))
		r.notifier.Error(apperrors.UserMessage(err))
		return models.Product{}, err
	}
	return current, nil
}

func (r *ProductRegistry) replaceProduct(updated models.Product) {
	r.cache.mutate(func(items []models.Product) []models.Product {
		for i := range items {
			if items[i].ID == updated.ID {
				items[i] = updated
			}
		}
		return items
	})

	r.mu.Lock()
	delete(r.outcomes, updated.ID)
	r.mu.Unlock()
}

// applyOutcomes vuelve a aplicar las consultas a la IA que el backend aún
// no refleja.
func (r *ProductRegistry) applyOutcomes(products []models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range products {
		if o, ok := r.outcomes[products[i].ID]; ok && o.pending(products[i]) {
			o.apply(&products[i])
		}
	}
}

func (r *ProductRegistry) pruneOutcomes(products []models.Product) {
	present := make(map[int64]bool, len(products))
	for _, p := range products {
		present[p.ID] = p.State.IsActionable()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.outcomes {
		if !present[id] {
			delete(r.outcomes, id)
		}
	}
}
