package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"binancex/pkg/core"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	jsonContentType = "application/json"
)

type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

type Config struct {
	BaseURL string            `validate:"required,url"`
	Timeout time.Duration     `validate:"min=0"`
	Headers map[string]string `validate:"omitempty"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func NewClient(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(config.BaseURL, "/"))
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	client.SetResponseBodyUnlimitedReads(true)
	client.AddContentTypeDecoder(jsonContentType, func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client: client,
		logger: logger,
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Do sends req as is. Query and body are expected to be encoded already.
// Responses with status 400 and above are turned into errors.
func (c *Client) Do(ctx context.Context, req core.Request) (*core.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	r := c.client.R().SetContext(ctx)
	for k, values := range req.Header {
		r.SetHeader(k, strings.Join(values, ","))
	}
	if req.CarriesBody() {
		r.SetHeader("Content-Type", formContentType)
		r.SetBody(req.Body)
	}

	// Error bodies are decoded as JSON whatever Content-Type the server sent.
	r.SetError(&apiError{})
	r.SetForceResponseContentType(jsonContentType)

	resp, err := r.Execute(req.Method, req.URL())
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, core.NewTimeoutError(req.String(), err)
		}
		if resp == nil || resp.RawResponse == nil || !resp.IsError() {
			return nil, core.NewConnectivityError(req.String(), err)
		}
	}

	out := core.NewResponse(resp.StatusCode(), resp.Header(), resp.Bytes())
	if out.IsError() {
		return out, decodeError(out, resp.Error(), err)
	}
	return out, nil
}

// decodeError turns the error body resty decoded into an upstream error.
// decodeErr is set when the body was not JSON.
func decodeError(resp *core.Response, parsed any, decodeErr error) error {
	apiErr, ok := parsed.(*apiError)
	if decodeErr != nil || !ok || apiErr.Code == 0 {
		e := core.NewDeserializeError(fmt.Sprintf("unexpected error body with status %d", resp.StatusCode), decodeErr)
		e.StatusCode = resp.StatusCode
		return e
	}
	return core.NewUpstreamError(resp.StatusCode, apiErr.Code, apiErr.Msg)
}
