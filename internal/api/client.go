package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/juancollazo-ch/armorum-backoffice-service/internal/errors"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/logging"
	"github.com/juancollazo-ch/armorum-backoffice-service/internal/models"
)

// TokenSource entrega el bearer token para cada llamada. La obtención y
// rotación del token es responsabilidad de otro servicio.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken es un TokenSource con un token fijo (ej: variable de entorno).
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("auth token not configured")
	}
	return string(t), nil
}

type Options struct {
	BaseURL        string
	Tokens         TokenSource
	Timeout        time.Duration
	MaxFailures    uint32
	BreakerTimeout time.Duration
	HTTPClient     *http.Client
}

// ArmorumClient es el cliente HTTP del backend Armorum. Cada llamada pasa
// por un circuit breaker; no hay reintentos automáticos.
type ArmorumClient struct {
	http    *http.Client
	base    string
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker
}

func NewArmorumClient(opts Options) (*ArmorumClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("ARMORUM_API_URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "armorum-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Los 4xx son respuestas válidas del backend, no fallas del servicio
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			if appErr, ok := apperrors.As(err); ok {
				if status, ok := appErr.Metadata["external_status_code"].(int); ok {
					return status < 500
				}
				return appErr.StatusCode == http.StatusUnauthorized
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &ArmorumClient{
		http:    httpClient,
		base:    opts.BaseURL,
		tokens:  opts.Tokens,
		breaker: breaker,
	}, nil
}

// ---------------------------------------------------------
// Lotes
// ---------------------------------------------------------

// SubmitBatch envía el archivo como multipart (archivo, clienteId, formatoArchivo).
func (c *ArmorumClient) SubmitBatch(ctx context.Context, up models.Upload) (models.Batch, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("archivo", up.FileName)
	if err != nil {
		return models.Batch{}, fmt.Errorf("error building multipart: %w", err)
	}
	if up.Content != nil {
		if _, err := io.Copy(part, up.Content); err != nil {
			return models.Batch{}, fmt.Errorf("error reading upload: %w", err)
		}
	}
	if err := mw.WriteField("clienteId", up.ClientID); err != nil {
		return models.Batch{}, fmt.Errorf("error building multipart: %w", err)
	}
	if err := mw.WriteField("formatoArchivo", up.FormatHint); err != nil {
		return models.Batch{}, fmt.Errorf("error building multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Batch{}, fmt.Errorf("error building multipart: %w", err)
	}

	// el backend responde el lote creado o solo su loteId
	var created struct {
		models.Batch
		BatchID int64 `json:"loteId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/facturas/cargar", &body, mw.FormDataContentType(), &created); err != nil {
		return models.Batch{}, err
	}
	if created.ID == 0 {
		created.ID = created.BatchID
	}
	return created.Batch, nil
}

func (c *ArmorumClient) ListBatches(ctx context.Context) ([]models.Batch, error) {
	return getList[models.Batch](ctx, c, "/facturas/lotes", "lotes")
}

func (c *ArmorumClient) GetBatch(ctx context.Context, batchID int64) (models.BatchDetail, error) {
	var detail models.BatchDetail
	err := c.doJSON(ctx, http.MethodGet, batchPath(batchID), nil, "", &detail)
	return detail, err
}

// DownloadTemplate descarga la plantilla Comiagro generada para el lote.
func (c *ArmorumClient) DownloadTemplate(ctx context.Context, batchID int64) (models.Download, error) {
	resp, err := c.do(ctx, http.MethodGet, batchPath(batchID)+"/descargar", nil, "")
	if err != nil {
		return models.Download{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Download{}, apperrors.ErrExternalAPI(resp.StatusCode, "Error al descargar la plantilla", err)
	}

	fileName := fmt.Sprintf("plantilla_comiagro_lote_%d.xlsx", batchID)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		fileName = params["filename"]
	}

	return models.Download{
		FileName:    fileName,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (c *ArmorumClient) MappingSuggestions(ctx context.Context, batchID int64, target string) (models.MappingSuggestions, error) {
	path := batchPath(batchID) + "/mapeo/sugerencias?formatoDestino=" + url.QueryEscape(target)
	var suggestions models.MappingSuggestions
	err := c.doJSON(ctx, http.MethodGet, path, nil, "", &suggestions)
	return suggestions, err
}

func (c *ArmorumClient) SubmitMapping(ctx context.Context, batchID int64, mapping models.FieldMapping) (models.Ack, error) {
	var ack models.Ack
	err := c.postJSON(ctx, batchPath(batchID)+"/mapeo", models.MappingSubmission{Mapping: mapping}, &ack)
	return ack, err
}

// ---------------------------------------------------------
// Terceros (excepciones DIAN)
// ---------------------------------------------------------

func (c *ArmorumClient) ListExceptions(ctx context.Context) ([]models.Exception, error) {
	return getList[models.Exception](ctx, c, "/terceros/excepciones", "excepciones")
}

func (c *ArmorumClient) ResolveException(ctx context.Context, exceptionID int64, action models.ExceptionAction, notes string) (models.Exception, error) {
	path := fmt.Sprintf("/terceros/excepciones/%d/%s", exceptionID, url.PathEscape(string(action)))
	// respuesta completa o acuse con estadoNuevo
	var resolved struct {
		models.Exception
		NewState models.ExceptionState `json:"estadoNuevo"`
	}
	if err := c.postJSON(ctx, path, models.ResolveRequest{Notes: notes}, &resolved); err != nil {
		return models.Exception{}, err
	}
	if resolved.State == "" {
		resolved.State = resolved.NewState
	}
	return resolved.Exception, nil
}

// ---------------------------------------------------------
// Productos (homologación BMC)
// ---------------------------------------------------------

func (c *ArmorumClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	return getList[models.Product](ctx, c, "/productos/no-homologados", "productos")
}

func (c *ArmorumClient) SuggestProducts(ctx context.Context, description string) ([]models.Suggestion, error) {
	body, err := json.Marshal(models.SuggestionRequest{Description: description})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/productos/sugerencias", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeList[models.Suggestion](ctx, resp, "sugerencias")
}

func (c *ArmorumClient) ConfirmMatch(ctx context.Context, productID int64, code string) (models.Product, error) {
	var product models.Product
	err := c.postJSON(ctx, fmt.Sprintf("/productos/%d/confirmar", productID), models.ConfirmRequest{Code: code}, &product)
	return product, err
}

func (c *ArmorumClient) MarkForCreation(ctx context.Context, productID int64, req models.CreationRequest) (models.Product, error) {
	payload := struct {
		models.CreationRequest
		Summary string `json:"resumen"`
	}{CreationRequest: req, Summary: req.Summary()}

	var product models.Product
	err := c.postJSON(ctx, fmt.Sprintf("/productos/%d/creacion", productID), payload, &product)
	return product, err
}

// ---------------------------------------------------------
// Transporte
// ---------------------------------------------------------

func batchPath(batchID int64) string {
	return "/facturas/lotes/" + strconv.FormatInt(batchID, 10)
}

func (c *ArmorumClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

func (c *ArmorumClient) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.ErrExternalAPI(resp.StatusCode, "Error leyendo respuesta", err)
	}
	raw = unwrapData(raw)
	// cuerpo vacío: el registro completa la respuesta con los datos locales
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.ErrExternalAPI(resp.StatusCode, "Respuesta inválida del servidor", err)
	}
	return nil
}

func getList[T any](ctx context.Context, c *ArmorumClient, path, key string) ([]T, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeList[T](ctx, resp, key)
}

// unwrapData quita el sobre {"success": ..., "data": ...} si viene.
func unwrapData(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return raw
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return raw
	}
	return data
}

// decodeList acepta un array directo o un objeto que lo envuelve bajo key
// (o bajo "objects"), con o sin sobre "data". Cada registro se decodifica
// por separado: uno inválido se descarta y se registra sin perder el resto.
func decodeList[T any](ctx context.Context, resp *http.Response, key string) ([]T, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrExternalAPI(resp.StatusCode, "Error leyendo respuesta", err)
	}
	raw = unwrapData(raw)

	if len(raw) > 0 && raw[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, apperrors.ErrExternalAPI(resp.StatusCode, "Respuesta inválida del servidor", err)
		}
		inner, ok := wrapper[key]
		if !ok {
			inner, ok = wrapper["objects"]
		}
		if !ok {
			return nil, apperrors.ErrExternalAPI(resp.StatusCode, "Respuesta inválida del servidor",
				fmt.Errorf("missing %q field", key))
		}
		raw = inner
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperrors.ErrExternalAPI(resp.StatusCode, "Respuesta inválida del servidor", err)
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		var record T
		if err := json.Unmarshal(item, &record); err != nil {
			logging.FromContext(ctx).Error("discarding undecodable record",
				zap.String("list", key),
				zap.Int("index", i),
				zap.ByteString("record", item),
				zap.Error(err),
			)
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// do ejecuta la petición dentro del circuit breaker. Si la respuesta no es
// 2xx el body se consume y se devuelve un AppError con el mensaje del backend.
func (c *ArmorumClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, apperrors.ErrUnauthorized("No se pudo obtener el token de autenticación", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	requestID := logging.TraceID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	logger := logging.FromContext(ctx)
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, transportError(ctx, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, statusError(resp)
		}
		return resp, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = apperrors.ErrServiceUnavailable("El servidor no está disponible, intente más tarde", err)
		}
		logger.Warn("armorum request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Debug("armorum request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Duration("latency", time.Since(start)),
	)

	return result.(*http.Response), nil
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.ErrGatewayTimeout("La petición tardó demasiado", err)
		}
		return fmt.Errorf("request cancelled: %w", ctx.Err())
	}
	return apperrors.ErrServiceUnavailable("Error de conexión con el servidor", err)
}

// statusError convierte una respuesta no exitosa en AppError. El mensaje
// del backend ("message", "error" o "detail") se conserva sin cambios.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	message := "Error en la petición"
	var payload struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			message = payload.Message
		} else if payload.Error != "" {
			message = payload.Error
		} else if len(payload.Detail) > 0 {
			var detail string
			if json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
				message = detail
			}
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.ErrUnauthorized(message, nil)
	}
	return apperrors.ErrExternalAPI(resp.StatusCode, message, nil)
}
