package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"coin-chat/internal/ratelimit"
	"coin-chat/internal/usecase"
)

// MaxBodyBytes caps the request body read in local mode.
const MaxBodyBytes = usecase.MaxBodyBytes

const (
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	msgUnexpectedError   = "An unexpected error occurred"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type, x-correlation-id",
	"Access-Control-Allow-Methods": "POST, OPTIONS",
}

type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type Handler struct {
	relay Relayer
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewHandler(relay Relayer) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	return &Handler{relay: relay}, nil
}

// Handle serves one Function URL invocation. A successful relay answers 200
// and streams the upstream event stream through unchanged; every failure is a
// JSON error body.
func (h *Handler) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error) {
	start := time.Now()
	correlationID := headerValue(req.Headers, "x-correlation-id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	method := strings.ToUpper(req.RequestContext.HTTP.Method)
	source := sourceKey(req.Headers)
	logger := slog.With("correlation_id", correlationID, "method", method, "source", source)

	resp := h.handle(ctx, logger, req, method, source)
	resp.Headers["X-Correlation-Id"] = correlationID
	logger.InfoContext(ctx, "relay request",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (h *Handler) handle(ctx context.Context, logger *slog.Logger, req events.LambdaFunctionURLRequest, method, source string) *events.LambdaFunctionURLStreamingResponse {
	switch method {
	case http.MethodOptions:
		return &events.LambdaFunctionURLStreamingResponse{
			StatusCode: http.StatusOK,
			Headers:    baseHeaders(),
			Body:       http.NoBody,
		}
	case http.MethodPost:
	default:
		return jsonError(http.StatusMethodNotAllowed, "Method not allowed", codeMethodNotAllowed)
	}

	body, bodyErr := requestBody(req)
	out, err := h.relay.Relay(ctx, usecase.RelayInput{SourceKey: source, Body: body, BodyErr: bodyErr})
	if err != nil {
		return errorToResponse(ctx, logger, err, out.Decision)
	}

	headers := baseHeaders()
	headers["Content-Type"] = "text/event-stream"
	headers["Cache-Control"] = "no-cache"
	headers["Connection"] = "keep-alive"
	rateLimitHeaders(headers, out.Decision)
	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       &streamBody{rc: out.Stream},
	}
}

func requestBody(req events.LambdaFunctionURLRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func errorToResponse(ctx context.Context, logger *slog.Logger, err error, decision ratelimit.Decision) *events.LambdaFunctionURLStreamingResponse {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		logger.ErrorContext(ctx, "unexpected relay error", "err", err)
		return jsonError(http.StatusInternalServerError, msgUnexpectedError, string(usecase.ErrorInternal))
	}

	status := statusForCode(usecaseErr.Code)
	attrs := []any{"code", usecaseErr.Code, "reason", usecaseErr.Reason}
	if usecaseErr.Err != nil {
		attrs = append(attrs, "err", usecaseErr.Err)
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "relay failed", attrs...)
	} else {
		logger.WarnContext(ctx, "relay rejected", attrs...)
	}

	message := usecaseErr.Message
	if message == "" {
		message = msgUnexpectedError
	}
	resp := jsonError(status, message, string(usecaseErr.Code))
	if usecaseErr.Code == usecase.ErrorRateLimited {
		rateLimitHeaders(resp.Headers, decision)
		if decision.RetryAfter > 0 {
			resp.Headers["Retry-After"] = strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds())))
		}
	}
	return resp
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorPaymentRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func jsonError(status int, message, code string) *events.LambdaFunctionURLStreamingResponse {
	payload, _ := json.Marshal(errorResponse{Error: message, Code: code})
	headers := baseHeaders()
	headers["Content-Type"] = "application/json"
	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       strings.NewReader(string(payload)),
	}
}

// rateLimitHeaders is a no-op for the zero Decision returned when the
// limiter store was unavailable.
func rateLimitHeaders(headers map[string]string, d ratelimit.Decision) {
	if d.Limit == 0 {
		return
	}
	headers["X-RateLimit-Limit"] = strconv.Itoa(d.Limit)
	headers["X-RateLimit-Remaining"] = strconv.Itoa(d.Remaining)
	if !d.ResetAt.IsZero() {
		headers["X-RateLimit-Reset"] = strconv.FormatInt(d.ResetAt.Unix(), 10)
	}
}

func baseHeaders() map[string]string {
	headers := make(map[string]string, len(corsHeaders)+4)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	return headers
}

// sourceKey is the first X-Forwarded-For entry, the address the edge saw.
func sourceKey(headers map[string]string) string {
	first, _, _ := strings.Cut(headerValue(headers, "x-forwarded-for"), ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return usecase.UnknownSource
	}
	return first
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// streamBody closes the upstream body once it has been read to the end or
// failed.
type streamBody struct {
	rc   io.ReadCloser
	once sync.Once
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil {
		_ = b.Close()
	}
	return n, err
}

func (b *streamBody) Close() error {
	var err error
	b.once.Do(func() { err = b.rc.Close() })
	return err
}
