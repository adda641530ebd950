package compare

import (
	"go.uber.org/zap"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

// Change describe el cambio de estado de un lote entre dos consultas
type Change struct {
	BatchID  int64             // id del lote
	FileName string            // nombre del archivo cargado
	OldState models.BatchState // estado en la consulta anterior ("" si es nuevo)
	NewState models.BatchState // estado en la consulta actual
	Legal    bool              // false si la transición no es válida en el ciclo de vida
	NewBatch bool              // true si el lote no existía en la consulta anterior
}

// CompareBatches evalúa qué lotes cambiaron de estado entre prev y next.
// Los lotes sin cambio no se reportan. El backend siempre tiene la razón:
// una transición ilegal se reporta pero no se corrige.
func CompareBatches(prev, next []models.Batch, logger *zap.Logger) []Change {
	if logger == nil {
		logger = zap.NewNop()
	}

	previous := make(map[int64]models.BatchState, len(prev))
	for _, b := range prev {
		previous[b.ID] = b.State
	}

	changes := []Change{}
	for _, b := range next {
		old, existed := previous[b.ID]
		if !existed {
			changes = append(changes, Change{
				BatchID:  b.ID,
				FileName: b.FileName,
				NewState: b.State,
				Legal:    true,
				NewBatch: true,
			})
			continue
		}
		if old == b.State {
			continue
		}

		legal := old.CanTransitionTo(b.State)
		if legal {
			logger.Info("compare: batch state change detected",
				zap.Int64("lote_id", b.ID),
				zap.String("from", string(old)),
				zap.String("to", string(b.State)),
			)
		} else {
			logger.Warn("compare: unexpected batch transition",
				zap.Int64("lote_id", b.ID),
				zap.String("from", string(old)),
				zap.String("to", string(b.State)),
			)
		}

		changes = append(changes, Change{
			BatchID:  b.ID,
			FileName: b.FileName,
			OldState: old,
			NewState: b.State,
			Legal:    legal,
		})
	}
	return changes
}
