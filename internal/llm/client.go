// Package llm is the upstream completion provider: an HTTP client for
// OpenAI-compatible /chat/completions endpoints (OpenRouter by default) with
// buffered and SSE-streamed modes behind a circuit breaker.
package llm

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

	"github.com/sony/gobreaker"

	"github.com/tbourn/go-persian-chat/internal/config"
	"github.com/tbourn/go-persian-chat/internal/observability"
)

// Message is one entry of the conversation sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChunkReader yields streamed text deltas. Next returns io.EOF once the
// provider signalled completion. Close releases the connection and may be
// called at any time.
type ChunkReader interface {
	Next() (string, error)
	Close() error
}

// Client talks to the provider. It is safe for concurrent use.
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	maxTokens     int
	temperature   float64
	topP          float64
	referer       string
	title         string
	timeout       time.Duration
	streamTimeout time.Duration

	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a Client from configuration.
func New(cfg config.UpstreamConfig, bcfg config.BreakerConfig, opts ...Option) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		topP:          cfg.TopP,
		referer:       cfg.Referer,
		title:         cfg.Title,
		timeout:       timeout,
		streamTimeout: cfg.StreamTimeout,
		httpClient:    &http.Client{Transport: tr},
		cb:            newBreaker(bcfg),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		Text         string  `json:"text,omitempty"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Complete sends the conversation and returns the whole reply.
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if !c.Configured() {
		return "", ErrMissingCredential
	}
	start := time.Now()
	out, err := c.cb.Execute(func() (interface{}, error) {
		var resp completionResponse
		if err := c.doJSON(ctx, c.request(msgs, false), &resp); err != nil {
			return nil, err
		}
		text := extractText(resp)
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyCompletion
		}
		return text, nil
	})
	err = mapBreakerErr(err)
	observeUpstream(observability.ModeBuffered, start, err)
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Stream opens a streamed completion. The call returns only after the
// provider answered with a 2xx status, so connection and status failures
// surface here and never as a partial stream.
func (c *Client) Stream(ctx context.Context, msgs []Message) (ChunkReader, error) {
	if !c.Configured() {
		return nil, ErrMissingCredential
	}
	start := time.Now()
	var (
		ctx2   context.Context
		cancel context.CancelFunc
	)
	if c.streamTimeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, c.streamTimeout)
	} else {
		ctx2, cancel = context.WithCancel(ctx)
	}

	out, err := c.cb.Execute(func() (interface{}, error) {
		body, err := json.Marshal(c.request(msgs, true))
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, "text/event-stream")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return resp, nil
	})
	if err != nil {
		cancel()
		err = mapBreakerErr(err)
		observeUpstream(observability.ModeStream, start, err)
		return nil, err
	}
	resp := out.(*http.Response)
	return &sseStream{
		ctx:    ctx2,
		cancel: cancel,
		body:   resp.Body,
		dec:    newSSEDecoder(resp.Body),
		start:  start,
	}, nil
}

func (c *Client) request(msgs []Message, stream bool) completionRequest {
	return completionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		Stream:      stream,
	}
}

func (c *Client) setHeaders(req *http.Request, accept string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
}

func (c *Client) doJSON(ctx context.Context, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return err
	}
	c.setHeaders(req, "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: decode completion: %w", err)
	}
	return nil
}

func extractText(resp completionResponse) string {
	for _, ch := range resp.Choices {
		if strings.TrimSpace(ch.Message.Content) != "" {
			return ch.Message.Content
		}
		if strings.TrimSpace(ch.Text) != "" {
			return ch.Text
		}
	}
	return ""
}

// sseStream adapts a chat-completions event stream to ChunkReader.
type sseStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	dec    *sseDecoder
	start  time.Time

	done     bool
	err      error
	observed bool
}

func (s *sseStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.err != nil {
		return "", s.err
	}
	for {
		_, data, err := s.dec.next()
		if err != nil {
			switch {
			case s.ctx.Err() != nil:
				err = s.ctx.Err()
			case errors.Is(err, io.EOF):
				err = ErrStreamInterrupted
			default:
				err = fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
			}
			return "", s.fail(err)
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.finish()
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
			return "", s.fail(fmt.Errorf("%w: upstream error: %s", ErrStreamInterrupted, truncate(string(chunk.Error), 256)))
		}

		var (
			delta    strings.Builder
			finished bool
		)
		for _, ch := range chunk.Choices {
			if ch.Delta.Content != "" {
				delta.WriteString(ch.Delta.Content)
			} else {
				delta.WriteString(ch.Text)
			}
			if ch.FinishReason != nil && *ch.FinishReason != "" {
				finished = true
			}
		}
		if finished {
			s.finish()
		}
		if delta.Len() > 0 {
			return delta.String(), nil
		}
		if finished {
			return "", io.EOF
		}
	}
}

func (s *sseStream) Close() error {
	s.cancel()
	if !s.done && s.err == nil {
		s.observe(context.Canceled)
	}
	return s.body.Close()
}

func (s *sseStream) finish() {
	s.done = true
	s.observe(nil)
}

func (s *sseStream) fail(err error) error {
	s.err = err
	s.observe(err)
	return err
}

func (s *sseStream) observe(err error) {
	if s.observed {
		return
	}
	s.observed = true
	observeUpstream(observability.ModeStream, s.start, err)
}

func observeUpstream(mode string, start time.Time, err error) {
	outcome := observability.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		outcome = observability.OutcomeCancelled
	case errors.Is(err, ErrStreamInterrupted):
		outcome = observability.OutcomeInterrupted
	default:
		outcome = observability.OutcomeUpstream
	}
	observability.UpstreamLatency.WithLabelValues(mode, outcome).Observe(time.Since(start).Seconds())
}
