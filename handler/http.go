package handler

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ServeHTTP adapts Handle to net/http for local mode. Each chunk of the
// response body is flushed as soon as it is read.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Handle(r.Context(), toFunctionURLRequest(r, body))
	if err != nil {
		http.Error(w, msgUnexpectedError, http.StatusInternalServerError)
		return
	}
	if closer, ok := resp.Body.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	rc := http.NewResponseController(w)
	_ = rc.Flush()
	if resp.Body == nil {
		return
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				slog.DebugContext(r.Context(), "client went away mid-stream", "err", writeErr)
				return
			}
			if flushErr := rc.Flush(); flushErr != nil && !errors.Is(flushErr, http.ErrNotSupported) {
				return
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				slog.WarnContext(r.Context(), "upstream stream ended with error", "err", readErr)
			}
			return
		}
	}
}

func toFunctionURLRequest(r *http.Request, body []byte) events.LambdaFunctionURLRequest {
	headers := make(map[string]string, len(r.Header)+1)
	for k, vs := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	if headers["x-forwarded-for"] == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			headers["x-forwarded-for"] = host
		}
	}
	return events.LambdaFunctionURLRequest{
		RawPath: r.URL.Path,
		Headers: headers,
		Body:    string(body),
		RequestContext: events.LambdaFunctionURLRequestContext{
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method:    r.Method,
				Path:      r.URL.Path,
				SourceIP:  headers["x-forwarded-for"],
				UserAgent: r.UserAgent(),
			},
		},
	}
}
