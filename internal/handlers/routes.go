package handlers

import (
	"net/http"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/service"
)

// Middleware envuelve cada handler (logging, trace id).
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Register monta las rutas del tablero sobre mux.
func Register(mux *http.ServeMux, app *service.App, maxUploadBytes int64, mw Middleware) {
	if mw == nil {
		mw = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	batches := NewBatchHandler(app, maxUploadBytes)
	exceptions := NewExceptionHandler(app)
	products := NewProductHandler(app)

	mux.HandleFunc("GET /api/lotes", mw(batches.List))
	mux.HandleFunc("POST /api/lotes", mw(batches.Upload))
	mux.HandleFunc("POST /api/lotes/refrescar", mw(batches.Refresh))
	mux.HandleFunc("GET /api/lotes/mensaje", mw(batches.Message))
	mux.HandleFunc("DELETE /api/lotes/mensaje", mw(dismissMessage(app.Batches.Notifier())))
	mux.HandleFunc("GET /api/lotes/{id}", mw(batches.Detail))
	mux.HandleFunc("GET /api/lotes/{id}/plantilla", mw(batches.DownloadTemplate))
	mux.HandleFunc("GET /api/lotes/{id}/mapeo/sugerencias", mw(batches.MappingSuggestions))
	mux.HandleFunc("POST /api/lotes/{id}/mapeo", mw(batches.SubmitMapping))

	mux.HandleFunc("GET /api/excepciones", mw(exceptions.List))
	mux.HandleFunc("POST /api/excepciones/refrescar", mw(exceptions.Refresh))
	mux.HandleFunc("GET /api/excepciones/mensaje", mw(exceptions.Message))
	mux.HandleFunc("DELETE /api/excepciones/mensaje", mw(dismissMessage(app.Exceptions.Notifier())))
	mux.HandleFunc("POST /api/excepciones/{id}/{accion}", mw(exceptions.Resolve))

	mux.HandleFunc("GET /api/productos", mw(products.List))
	mux.HandleFunc("POST /api/productos/refrescar", mw(products.Refresh))
	mux.HandleFunc("GET /api/productos/mensaje", mw(products.Message))
	mux.HandleFunc("DELETE /api/productos/mensaje", mw(dismissMessage(app.Products.Notifier())))
	mux.HandleFunc("GET /api/productos/opciones-creacion", mw(products.CreationOptions))
	mux.HandleFunc("GET /api/productos/para-creacion/excel", mw(products.ExportForCreation))
	mux.HandleFunc("GET /api/productos/{id}/sugerencias", mw(products.Suggestions))
	mux.HandleFunc("POST /api/productos/{id}/sugerencias", mw(products.FetchSuggestions))
	mux.HandleFunc("POST /api/productos/{id}/confirmar", mw(products.Confirm))
	mux.HandleFunc("POST /api/productos/{id}/creacion", mw(products.MarkForCreation))

	mux.HandleFunc("POST /api/refrescar", mw(func(w http.ResponseWriter, r *http.Request) {
		if err := app.RefreshAll(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}
