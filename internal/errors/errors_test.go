package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", stderrors.New("boom"), "boom"},
		{"backend message verbatim", ErrExternalAPI(500, "Error procesando archivo: columna NIT vacía", nil),
			"Error procesando archivo: columna NIT vacía"},
		{"backend without details", ErrServiceUnavailable("", nil), "Service temporarily unavailable"},
		{"invalid format", ErrInvalidFormat("invoice.pdf"),
			"Formato no válido. Use archivos de facturación (Excel, CSV, XML, TXT)."},
		{"local with details", ErrValidation("Archivo muy grande", nil), "Archivo muy grande"},
		{"wrapped", fmt.Errorf("upload: %w", ErrBadRequest("Cliente no existe", nil)), "Cliente no existe"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("%s: UserMessage() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestKindAndStatus(t *testing.T) {
	local := ErrActionNotAllowed("lote en Procesando")
	if !IsLocal(local) || GetStatusCode(local) != http.StatusConflict {
		t.Errorf("ErrActionNotAllowed: local=%v status=%d", IsLocal(local), GetStatusCode(local))
	}

	backend := ErrExternalAPI(503, "mantenimiento", nil)
	if IsLocal(backend) {
		t.Errorf("ErrExternalAPI must be a backend error")
	}
	if GetStatusCode(backend) != http.StatusBadGateway {
		t.Errorf("status = %d", GetStatusCode(backend))
	}
	if !IsRetryable(backend) {
		t.Errorf("5xx backend errors are retryable")
	}
	if IsRetryable(ErrExternalAPI(400, "bad", nil)) {
		t.Errorf("4xx backend errors are not retryable")
	}
	if backend.Metadata["external_status_code"] != 503 {
		t.Errorf("external_status_code = %v", backend.Metadata["external_status_code"])
	}

	if GetStatusCode(stderrors.New("x")) != http.StatusInternalServerError {
		t.Errorf("non AppError must map to 500")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := ErrGatewayTimeout("timeout", cause)
	if !stderrors.Is(err, cause) {
		t.Errorf("AppError must unwrap to its internal error")
	}
}
