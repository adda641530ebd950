package notify

import (
	"testing"
	"time"
)

func TestNotifier_AutoDismiss(t *testing.T) {
	n := NewNotifier(50 * time.Millisecond)
	n.Success("Archivo subido correctamente")

	msg, ok := n.Current()
	if !ok || msg.Kind != KindSuccess || msg.Text != "Archivo subido correctamente" {
		t.Fatalf("Current() = %+v, %v", msg, ok)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := n.Current(); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("message was not dismissed after its TTL")
}

func TestNotifier_NewMessageRestartsTTL(t *testing.T) {
	n := NewNotifier(100 * time.Millisecond)
	n.Error("Error al cargar lotes: timeout")
	time.Sleep(70 * time.Millisecond)
	n.Info("Actualizando")

	// el timer del primer mensaje vence aquí y no debe borrar el segundo
	time.Sleep(50 * time.Millisecond)
	msg, ok := n.Current()
	if !ok || msg.Kind != KindInfo {
		t.Fatalf("second message cleared by first timer: %+v, %v", msg, ok)
	}
}

func TestNotifier_Dismiss(t *testing.T) {
	n := NewNotifier(0)
	if n.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", n.ttl, DefaultTTL)
	}
	n.Warning("No hay productos marcados para creación")
	n.Dismiss()
	if _, ok := n.Current(); ok {
		t.Fatalf("message still visible after Dismiss")
	}
}
