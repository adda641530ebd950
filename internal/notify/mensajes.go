// Package notify mantiene el mensaje que se muestra al usuario después de
// una acción. Cada mensaje se descarta solo al cumplir su TTL.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindSuccess Kind = "exito"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// DefaultTTL es el tiempo que un mensaje permanece visible.
const DefaultTTL = 5 * time.Second

type Message struct {
	Kind      Kind      `json:"tipo"`
	Text      string    `json:"texto"`
	CreatedAt time.Time `json:"fecha"`
}

// Notifier guarda el último mensaje por registro. Un mensaje nuevo
// reemplaza al anterior y reinicia el TTL.
type Notifier struct {
	ttl time.Duration

	mu      sync.Mutex
	current Message
	seq     uint64
	timer   *time.Timer
}

func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Notifier{ttl: ttl}
}

func (n *Notifier) Publish(kind Kind, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	seq := n.seq
	n.current = Message{Kind: kind, Text: text, CreatedAt: time.Now()}

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		// solo se limpia si no llegó un mensaje más nuevo
		if n.seq == seq {
			n.current = Message{}
		}
	})
}

func (n *Notifier) Success(text string) { n.Publish(KindSuccess, text) }
func (n *Notifier) Error(text string)   { n.Publish(KindError, text) }
func (n *Notifier) Info(text string)    { n.Publish(KindInfo, text) }
func (n *Notifier) Warning(text string) { n.Publish(KindWarning, text) }

// Current devuelve el mensaje visible; ok es false si no hay ninguno.
func (n *Notifier) Current() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.current.Text != ""
}

// Dismiss descarta el mensaje visible antes del TTL.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	n.current = Message{}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
