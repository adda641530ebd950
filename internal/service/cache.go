package service

import (
	"sync"
	"time"
)

// cache es la proyección local de un registro. Cada refresco toma un ticket
// al empezar; al terminar solo se aplica si ningún refresco o mutación más
// reciente se aplicó antes, y si el registro no se detuvo entretanto.
type cache[T any] struct {
	mu          sync.RWMutex
	items       []T
	refreshedAt time.Time
	issued      uint64
	applied     uint64
	epoch       uint64
}

type ticket struct {
	seq   uint64
	epoch uint64
}

func (c *cache[T]) begin() ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return ticket{seq: c.issued, epoch: c.epoch}
}

// replace aplica el resultado de un refresco. Devuelve false si es obsoleto.
func (c *cache[T]) replace(t ticket, items []T, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch || t.seq <= c.applied {
		return false
	}
	c.applied = t.seq
	c.items = items
	c.refreshedAt = now
	return true
}

// mutate aplica un cambio local (respuesta de una acción). Invalida los
// refrescos que empezaron antes.
func (c *cache[T]) mutate(fn func(items []T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.applied = c.issued
	c.items = fn(c.items)
}

// invalidate descarta todos los refrescos en curso (Stop del registro).
func (c *cache[T]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
}

func (c *cache[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *cache[T]) find(match func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *cache[T]) lastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
