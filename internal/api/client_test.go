package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*ArmorumClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewArmorumClient(Options{
		BaseURL:        srv.URL + "/api",
		Tokens:         StaticToken("test-token"),
		Timeout:        5 * time.Second,
		MaxFailures:    2,
		BreakerTimeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewArmorumClient() error = %v", err)
	}
	return client, srv
}

func TestNewArmorumClient_RequiresConfig(t *testing.T) {
	if _, err := NewArmorumClient(Options{Tokens: StaticToken("x")}); err == nil {
		t.Errorf("expected error without base url")
	}
	if _, err := NewArmorumClient(Options{BaseURL: "http://localhost"}); err == nil {
		t.Errorf("expected error without token source")
	}
}

func TestListBatches_AuthAndWrappers(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":1,"nombreArchivo":"a.xlsx","estado":"Procesando","registrosTotales":0,"errores":0}]`},
		{"wrapped", `{"lotes":[{"id":1,"nombreArchivo":"a.xlsx","estado":"procesando"}]}`},
		{"objects", `{"objects":[{"id":1,"nombreArchivo":"a.xlsx","estado":"PROCESANDO"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/facturas/lotes" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
					t.Errorf("Authorization = %q", got)
				}
				if r.Header.Get("X-Request-ID") == "" {
					t.Errorf("missing X-Request-ID")
				}
				io.WriteString(w, tt.body)
			})

			batches, err := client.ListBatches(context.Background())
			if err != nil {
				t.Fatalf("ListBatches() error = %v", err)
			}
			if len(batches) != 1 || batches[0].State != models.BatchProcessing {
				t.Fatalf("batches = %+v", batches)
			}
		})
	}
}

func TestListBatches_DataEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"lotes":[{"id":1,"estado":"Procesando"},{"id":2,"estado":"Completado"}],"paginacion":{"paginaActual":1}}}`)
	})

	batches, err := client.ListBatches(context.Background())
	if err != nil {
		t.Fatalf("ListBatches() error = %v", err)
	}
	if len(batches) != 2 || batches[1].State != models.BatchCompleted {
		t.Fatalf("batches = %+v", batches)
	}
}

func TestListBatches_UnknownStateDropsOnlyThatRecord(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"estado":"Pausado"},{"id":2,"estado":"Validando"}]`)
	})

	batches, err := client.ListBatches(context.Background())
	if err != nil {
		t.Fatalf("ListBatches() error = %v", err)
	}
	if len(batches) != 1 || batches[0].ID != 2 {
		t.Fatalf("batches = %+v", batches)
	}
}

func TestListExceptions_UnknownStateDropsOnlyThatRecord(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"excepciones":[{"id":1,"estadoValidacion":"No_Encontrado"},{"id":2,"estadoValidacion":"Reintentando"}]}}`)
	})

	exceptions, err := client.ListExceptions(context.Background())
	if err != nil {
		t.Fatalf("ListExceptions() error = %v", err)
	}
	if len(exceptions) != 1 || exceptions[0].ID != 1 || exceptions[0].State != models.ExceptionNotFound {
		t.Fatalf("exceptions = %+v", exceptions)
	}
}

func TestListBatches_MalformedBodyFails(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"lotes":"no es una lista"}`)
	})
	if _, err := client.ListBatches(context.Background()); err == nil {
		t.Fatalf("expected error for malformed list")
	}
}

func TestRequestIDFromTrace(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Request-ID"); got != "trace-123" {
			t.Errorf("X-Request-ID = %q", got)
		}
		io.WriteString(w, `[]`)
	})
	ctx := logging.WithTraceID(context.Background(), "trace-123")
	if _, err := client.ListExceptions(ctx); err != nil {
		t.Fatalf("ListExceptions() error = %v", err)
	}
}

func TestSubmitBatch_Multipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/facturas/cargar" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		if got := r.FormValue("clienteId"); got != "auto" {
			t.Errorf("clienteId = %q", got)
		}
		if got := r.FormValue("formatoArchivo"); got != "auto_detect" {
			t.Errorf("formatoArchivo = %q", got)
		}
		file, header, err := r.FormFile("archivo")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		if header.Filename != "invoice.xml" || string(content) != "<factura/>" {
			t.Errorf("file = %s (%q)", header.Filename, content)
		}

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":7,"nombreArchivo":"invoice.xml","estado":"Procesando","fechaCarga":"2025-05-02T10:30:00"}`)
	})

	batch, err := client.SubmitBatch(context.Background(), models.Upload{
		FileName:   "invoice.xml",
		Size:       10,
		Content:    strings.NewReader("<factura/>"),
		ClientID:   "auto",
		FormatHint: "auto_detect",
	})
	if err != nil {
		t.Fatalf("SubmitBatch() error = %v", err)
	}
	if batch.ID != 7 || batch.State != models.BatchProcessing {
		t.Errorf("batch = %+v", batch)
	}
}

func TestBackendMessageVerbatim(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", http.StatusBadRequest, `{"message":"El archivo no contiene facturas"}`, "El archivo no contiene facturas"},
		{"detail field", http.StatusUnprocessableEntity, `{"detail":"Cliente no registrado"}`, "Cliente no registrado"},
		{"error field", http.StatusBadRequest, `{"error":"No file uploaded"}`, "No file uploaded"},
		{"no body", http.StatusInternalServerError, ``, "Error en la petición"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := client.ResolveException(context.Background(), 5, models.ActionIgnore, "")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := apperrors.UserMessage(err); got != tt.want {
				t.Errorf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveException_Request(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/terceros/excepciones/5/ignorar" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body models.ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Notes != "duplicado" {
			t.Errorf("notas = %q", body.Notes)
		}
		io.WriteString(w, `{"id":5,"estadoValidacion":"Ignorada","notas":"duplicado"}`)
	})

	exc, err := client.ResolveException(context.Background(), 5, models.ActionIgnore, "duplicado")
	if err != nil {
		t.Fatalf("ResolveException() error = %v", err)
	}
	if exc.State != models.ExceptionIgnored {
		t.Errorf("State = %q", exc.State)
	}
}

func TestSubmitBatch_DataEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"message":"Archivo recibido y procesado","data":{"loteId":12,"nombreArchivo":"ventas.csv","estado":"Procesando"}}`)
	})

	batch, err := client.SubmitBatch(context.Background(), models.Upload{
		FileName: "ventas.csv",
		Content:  strings.NewReader("a,b"),
	})
	if err != nil {
		t.Fatalf("SubmitBatch() error = %v", err)
	}
	if batch.ID != 12 || batch.FileName != "ventas.csv" || batch.State != models.BatchProcessing {
		t.Errorf("batch = %+v", batch)
	}
}

func TestResolveException_DataEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"message":"Excepción actualizada: ignorar","data":{"accionAplicada":"ignorar","estadoAnterior":"Inconsistente","estadoNuevo":"Ignorada"}}`)
	})

	exc, err := client.ResolveException(context.Background(), 5, models.ActionIgnore, "")
	if err != nil {
		t.Fatalf("ResolveException() error = %v", err)
	}
	if exc.State != models.ExceptionIgnored {
		t.Errorf("State = %q", exc.State)
	}
}

func TestGetBatch_DataEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"lote":{"id":3,"estado":"Completado","registrosTotales":10,"errores":0},"logs":[],"errores":[]}}`)
	})

	detail, err := client.GetBatch(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if detail.ID != 3 || detail.State != models.BatchCompleted {
		t.Errorf("detail = %+v", detail.Batch)
	}
}

func TestMarkForCreation_Payload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["razonCreacion"] != "nuevo_producto" || body["categoriaEstimada"] != "Bebidas" {
			t.Errorf("payload = %v", body)
		}
		if !strings.HasPrefix(body["resumen"].(string), "Razón de creación: Producto nuevo en el mercado") {
			t.Errorf("resumen = %v", body["resumen"])
		}
		io.WriteString(w, `{"id":7,"estadoHomologacion":"Para_Creacion"}`)
	})

	p, err := client.MarkForCreation(context.Background(), 7, models.CreationRequest{
		Reason:   models.ReasonNewProduct,
		Category: "Bebidas",
	})
	if err != nil {
		t.Fatalf("MarkForCreation() error = %v", err)
	}
	if p.State != models.HomologationForCreation {
		t.Errorf("State = %q", p.State)
	}
}

func TestDownloadTemplate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/facturas/lotes/3/descargar" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="plantilla_comiagro_lote_3.xlsx"`)
		io.WriteString(w, "xlsx-bytes")
	})

	dl, err := client.DownloadTemplate(context.Background(), 3)
	if err != nil {
		t.Fatalf("DownloadTemplate() error = %v", err)
	}
	if dl.FileName != "plantilla_comiagro_lote_3.xlsx" || string(dl.Data) != "xlsx-bytes" {
		t.Errorf("download = %s (%q)", dl.FileName, dl.Data)
	}
}

func TestSuggestProducts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body models.SuggestionRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Description != "ARROZ DIANA 500GR" {
			t.Errorf("descripcion = %q", body.Description)
		}
		io.WriteString(w, `{"sugerencias":[{"codigo":"BMC-AR-001","nombre":"Arroz Diana 500g","confianza":92}]}`)
	})

	got, err := client.SuggestProducts(context.Background(), "ARROZ DIANA 500GR")
	if err != nil {
		t.Fatalf("SuggestProducts() error = %v", err)
	}
	if len(got) != 1 || got[0].Code != "BMC-AR-001" || got[0].Confidence != 92 {
		t.Errorf("suggestions = %+v", got)
	}
}

func TestCircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"message":"mantenimiento"}`)
	})

	for i := 0; i < 2; i++ {
		if _, err := client.ListProducts(context.Background()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := client.ListProducts(context.Background())
	if err == nil {
		t.Fatalf("expected open breaker error")
	}
	if apperrors.GetStatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", apperrors.GetStatusCode(err))
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2 (breaker must short-circuit)", hits.Load())
	}
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Producto no encontrado"}`)
	})

	for i := 0; i < 4; i++ {
		_, err := client.ConfirmMatch(context.Background(), 99, "BMC-1")
		if apperrors.UserMessage(err) != "Producto no encontrado" {
			t.Fatalf("call %d: UserMessage = %q", i, apperrors.UserMessage(err))
		}
	}
	if hits.Load() != 4 {
		t.Errorf("server hits = %d, want 4", hits.Load())
	}
}
