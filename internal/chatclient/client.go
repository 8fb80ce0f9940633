// Package chatclient asks the relay a question about a coin and streams the
// answer into a conversation log.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"coin-chat/internal/conversation"
	"coin-chat/internal/domain"
	"coin-chat/internal/sse"
)

var (
	ErrRateLimited     = errors.New("chatclient: too many requests, please try again later")
	ErrPaymentRequired = errors.New("chatclient: payment required, please add funds to continue using AI features")
	ErrRequestFailed   = errors.New("chatclient: failed to get an answer")
)

// Question is what the caller asks about a coin.
type Question struct {
	Text       string
	CoinName   string
	CoinSymbol string
	CoinData   domain.CoinData
}

type Client struct {
	relayURL   string
	token      string
	httpClient *http.Client
	onDelta    func(string)
}

type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// OnDelta registers fn to receive every delta as it is applied to the log.
func OnDelta(fn func(delta string)) Option {
	return func(c *Client) {
		c.onDelta = fn
	}
}

func NewClient(relayURL string, opts ...Option) (*Client, error) {
	relayURL = strings.TrimSpace(relayURL)
	if relayURL == "" {
		return nil, errors.New("chatclient: relay URL must not be empty")
	}
	c := &Client{relayURL: relayURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		}
	}
	return c, nil
}

// Ask submits q to log, relays it, and streams the answer into log. The
// exchange is always finished on return, and text received before a failure
// stays in the log.
func (c *Client) Ask(ctx context.Context, log *conversation.Log, q Question) (string, error) {
	if log == nil {
		return "", errors.New("chatclient: conversation log must not be nil")
	}
	question, err := log.Submit(q.Text)
	if err != nil {
		return "", err
	}
	defer log.Finish()

	body, err := json.Marshal(domain.ChatRequest{
		Question:   question,
		CoinName:   q.CoinName,
		CoinSymbol: q.CoinSymbol,
		CoinData:   q.CoinData,
	})
	if err != nil {
		return "", fmt.Errorf("chatclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chatclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := statusError(res); err != nil {
		return "", err
	}

	err = sse.Consume(res.Body, func(delta string) {
		log.Apply(delta)
		if c.onDelta != nil {
			c.onDelta(delta)
		}
	})
	answer := log.Answer()
	if err != nil {
		return answer, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return answer, nil
}

type relayError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusError(res *http.Response) error {
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrPaymentRequired
	}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var body relayError
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, res.StatusCode, body.Error)
	}
	return fmt.Errorf("%w: status %d", ErrRequestFailed, res.StatusCode)
}
