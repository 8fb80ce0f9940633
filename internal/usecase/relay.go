package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"coin-chat/internal/domain"
	"coin-chat/internal/ratelimit"
)

// MaxBodyBytes caps the accepted request body.
const MaxBodyBytes = 64 << 10

// UnknownSource is the rate-limit key used when a request carries no
// forwarded address.
const UnknownSource = "unknown"

type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

type ChatStreamer interface {
	ChatStream(ctx context.Context, model string, messages []domain.ChatMessage) (io.ReadCloser, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type RelayService struct {
	limiter RateLimiter
	llm     ChatStreamer
	model   string
}

// RelayInput is one inbound request. BodyErr is set when the transport
// could not decode the body; the request is still counted.
type RelayInput struct {
	SourceKey string
	Body      []byte
	BodyErr   error
}

// RelayOutput carries the upstream event stream. The caller must close Stream.
type RelayOutput struct {
	Stream   io.ReadCloser
	Request  domain.ChatRequest
	Decision ratelimit.Decision
}

func NewRelayService(limiter RateLimiter, llm ChatStreamer, model string) (*RelayService, error) {
	if limiter == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: chat streamer must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	return &RelayService{limiter: limiter, llm: llm, model: model}, nil
}

// Relay counts the request against its source, validates the body and opens
// the upstream stream. Every request is counted, valid or not, and nothing
// is retried.
func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	source := strings.TrimSpace(in.SourceKey)
	if source == "" {
		source = UnknownSource
	}

	decision, err := s.limiter.Allow(ctx, source)
	switch {
	case err != nil:
		// Store failures fail open.
		slog.WarnContext(ctx, "rate limit check failed, allowing request", "source", source, "err", err)
	case !decision.Allowed:
		return RelayOutput{Decision: decision}, newError(ErrorRateLimited, "source_rate_limited", msgRateLimited, nil)
	}

	switch {
	case in.BodyErr != nil:
		return RelayOutput{Decision: decision}, newError(ErrorInvalidInput, "undecodable_body", msgInvalidBody, in.BodyErr)
	case len(in.Body) > MaxBodyBytes:
		return RelayOutput{Decision: decision}, newError(ErrorPayloadTooLarge, "body_too_large", msgBodyTooLarge, nil)
	}

	req, err := ValidateChatRequest(in.Body)
	if err != nil {
		return RelayOutput{Decision: decision}, err
	}

	stream, err := s.llm.ChatStream(ctx, s.model, buildPromptMessages(req))
	if err != nil {
		return RelayOutput{Decision: decision}, classifyUpstream(err)
	}
	return RelayOutput{Stream: stream, Request: req, Decision: decision}, nil
}

func classifyUpstream(err error) *Error {
	status, ok := upstreamStatusCode(err)
	switch {
	case !ok:
		return newError(ErrorUpstream, "upstream_unreachable", msgUpstreamFailure, err)
	case status == http.StatusTooManyRequests:
		return newError(ErrorRateLimited, "upstream_rate_limited", msgUpstreamLimited, err)
	case status == http.StatusPaymentRequired:
		return newError(ErrorPaymentRequired, "upstream_payment_required", msgPaymentRequired, err)
	default:
		return newError(ErrorUpstream, "upstream_error", msgUpstreamFailure, err)
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
