package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coin-chat/internal/domain"
	"coin-chat/internal/integrations/openai"
	"coin-chat/internal/ratelimit"
)

type mockLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (m *mockLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	m.keys = append(m.keys, key)
	return m.decision, m.err
}

func allow() *mockLimiter {
	return &mockLimiter{decision: ratelimit.Decision{Allowed: true, Limit: 20, Remaining: 19}}
}

type mockStreamer struct {
	body      string
	err       error
	callCount int
	model     string
	messages  []domain.ChatMessage
}

func (m *mockStreamer) ChatStream(_ context.Context, model string, messages []domain.ChatMessage) (io.ReadCloser, error) {
	m.callCount++
	m.model = model
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader(m.body)), nil
}

func newTestRelay(t *testing.T, limiter RateLimiter, llm ChatStreamer) *RelayService {
	t.Helper()
	svc, err := NewRelayService(limiter, llm, "gpt-mock")
	require.NoError(t, err)
	return svc
}

func expectRelayError(t *testing.T, err error, code ErrorCode, reason string) *Error {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
	return usecaseErr
}

func TestNewRelayService_ValidatesDependencies(t *testing.T) {
	_, err := NewRelayService(nil, &mockStreamer{}, "gpt-mock")
	require.Error(t, err)

	_, err = NewRelayService(allow(), nil, "gpt-mock")
	require.Error(t, err)

	_, err = NewRelayService(allow(), &mockStreamer{}, " ")
	require.Error(t, err)
}

func TestRelay_HappyPath(t *testing.T) {
	limiter := allow()
	llm := &mockStreamer{body: "data: [DONE]\n\n"}
	svc := newTestRelay(t, limiter, llm)

	out, err := svc.Relay(context.Background(), RelayInput{SourceKey: "203.0.113.7", Body: requestBody(t, nil)})
	require.NoError(t, err)
	defer func() { _ = out.Stream.Close() }()

	raw, err := io.ReadAll(out.Stream)
	require.NoError(t, err)
	require.Equal(t, "data: [DONE]\n\n", string(raw))
	require.Equal(t, "BTC", out.Request.CoinSymbol)
	require.True(t, out.Decision.Allowed)
	require.Equal(t, []string{"203.0.113.7"}, limiter.keys)
	require.Equal(t, "gpt-mock", llm.model)
	require.Len(t, llm.messages, 2)
	require.Equal(t, "What is BTC?", llm.messages[1].Content)
}

func TestRelay_EmptySourceUsesUnknown(t *testing.T) {
	limiter := allow()
	svc := newTestRelay(t, limiter, &mockStreamer{})

	_, err := svc.Relay(context.Background(), RelayInput{SourceKey: "  ", Body: requestBody(t, nil)})
	require.NoError(t, err)
	require.Equal(t, []string{UnknownSource}, limiter.keys)
}

func TestRelay_ValidationFailureSkipsUpstream(t *testing.T) {
	limiter := allow()
	llm := &mockStreamer{}
	svc := newTestRelay(t, limiter, llm)

	_, err := svc.Relay(context.Background(), RelayInput{
		SourceKey: "203.0.113.7",
		Body:      requestBody(t, func(m map[string]any) { m["question"] = strings.Repeat("a", 1001) }),
	})
	usecaseErr := expectRelayError(t, err, ErrorInvalidInput, "question_too_long")
	require.Equal(t, "Question too long (max 1000 characters)", usecaseErr.Message)
	require.Zero(t, llm.callCount)
	require.Len(t, limiter.keys, 1, "invalid requests still count")
}

func TestRelay_RejectedBodiesStillCount(t *testing.T) {
	limiter := allow()
	llm := &mockStreamer{}
	svc := newTestRelay(t, limiter, llm)

	_, err := svc.Relay(context.Background(), RelayInput{
		SourceKey: "203.0.113.7",
		Body:      []byte(strings.Repeat("x", MaxBodyBytes+1)),
	})
	usecaseErr := expectRelayError(t, err, ErrorPayloadTooLarge, "body_too_large")
	require.Equal(t, "Request body too large", usecaseErr.Message)

	decodeErr := errors.New("illegal base64 data at input byte 0")
	_, err = svc.Relay(context.Background(), RelayInput{SourceKey: "203.0.113.7", BodyErr: decodeErr})
	usecaseErr = expectRelayError(t, err, ErrorInvalidInput, "undecodable_body")
	require.Equal(t, "Invalid request body", usecaseErr.Message)
	require.ErrorIs(t, err, decodeErr)

	require.Zero(t, llm.callCount)
	require.Equal(t, []string{"203.0.113.7", "203.0.113.7"}, limiter.keys)
}

func TestRelay_RejectedBodyDeniedOnceLimitReached(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 1, time.Minute)
	require.NoError(t, err)
	svc := newTestRelay(t, limiter, &mockStreamer{})

	_, err = svc.Relay(context.Background(), RelayInput{SourceKey: "198.51.100.1", Body: []byte(strings.Repeat("x", MaxBodyBytes+1))})
	expectRelayError(t, err, ErrorPayloadTooLarge, "body_too_large")

	_, err = svc.Relay(context.Background(), RelayInput{SourceKey: "198.51.100.1", Body: requestBody(t, nil)})
	expectRelayError(t, err, ErrorRateLimited, "source_rate_limited")
}

func TestRelay_RateLimited(t *testing.T) {
	resetAt := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	limiter := &mockLimiter{decision: ratelimit.Decision{
		Allowed:    false,
		Limit:      20,
		ResetAt:    resetAt,
		RetryAfter: 40 * time.Second,
	}}
	llm := &mockStreamer{}
	svc := newTestRelay(t, limiter, llm)

	out, err := svc.Relay(context.Background(), RelayInput{SourceKey: "203.0.113.7", Body: []byte("not json")})
	usecaseErr := expectRelayError(t, err, ErrorRateLimited, "source_rate_limited")
	require.Equal(t, "Too many requests. Please try again later.", usecaseErr.Message)
	require.Equal(t, 40*time.Second, out.Decision.RetryAfter)
	require.Equal(t, resetAt, out.Decision.ResetAt)
	require.Nil(t, out.Stream)
	require.Zero(t, llm.callCount)
}

func TestRelay_TwentyFirstRequestDenied(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 20, time.Minute)
	require.NoError(t, err)
	llm := &mockStreamer{body: "data: [DONE]\n\n"}
	svc := newTestRelay(t, limiter, llm)

	for i := 0; i < 20; i++ {
		out, err := svc.Relay(context.Background(), RelayInput{SourceKey: "198.51.100.1", Body: requestBody(t, nil)})
		require.NoError(t, err, "request %d", i+1)
		_ = out.Stream.Close()
	}
	_, err = svc.Relay(context.Background(), RelayInput{SourceKey: "198.51.100.1", Body: requestBody(t, nil)})
	expectRelayError(t, err, ErrorRateLimited, "source_rate_limited")
	require.Equal(t, 20, llm.callCount)

	out, err := svc.Relay(context.Background(), RelayInput{SourceKey: "198.51.100.2", Body: requestBody(t, nil)})
	require.NoError(t, err, "other sources are unaffected")
	_ = out.Stream.Close()
}

func TestRelay_LimiterFailureFailsOpen(t *testing.T) {
	limiter := &mockLimiter{err: errors.New("dynamodb unavailable")}
	llm := &mockStreamer{body: "data: [DONE]\n\n"}
	svc := newTestRelay(t, limiter, llm)

	out, err := svc.Relay(context.Background(), RelayInput{SourceKey: "203.0.113.7", Body: requestBody(t, nil)})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)
	require.Equal(t, 1, llm.callCount)
}

func TestRelay_UpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    ErrorCode
		reason  string
		message string
	}{
		{
			name:    "rate limited",
			err:     &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests},
			code:    ErrorRateLimited,
			reason:  "upstream_rate_limited",
			message: "Rate limits exceeded, please try again later.",
		},
		{
			name:    "payment required",
			err:     &openai.HTTPStatusError{StatusCode: http.StatusPaymentRequired},
			code:    ErrorPaymentRequired,
			reason:  "upstream_payment_required",
			message: "Payment required, please add funds to your workspace.",
		},
		{
			name:    "server error",
			err:     &openai.HTTPStatusError{StatusCode: http.StatusInternalServerError},
			code:    ErrorUpstream,
			reason:  "upstream_error",
			message: "AI service temporarily unavailable",
		},
		{
			name:    "unauthorized",
			err:     &openai.HTTPStatusError{StatusCode: http.StatusUnauthorized},
			code:    ErrorUpstream,
			reason:  "upstream_error",
			message: "AI service temporarily unavailable",
		},
		{
			name:    "network",
			err:     errors.New("dial tcp: connection refused"),
			code:    ErrorUpstream,
			reason:  "upstream_unreachable",
			message: "AI service temporarily unavailable",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestRelay(t, allow(), &mockStreamer{err: tc.err})
			_, err := svc.Relay(context.Background(), RelayInput{SourceKey: "203.0.113.7", Body: requestBody(t, nil)})
			usecaseErr := expectRelayError(t, err, tc.code, tc.reason)
			require.Equal(t, tc.message, usecaseErr.Message)
			require.ErrorIs(t, err, tc.err)
		})
	}
}
