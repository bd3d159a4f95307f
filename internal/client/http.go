package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrNotFound    = errors.New("resource not found")
	ErrUnavailable = errors.New("service unavailable")
)

// maxBodyBytes caps how much of a collaborator response is read.
const maxBodyBytes = 1 << 20

// StatusError is a non-2xx reply from a collaborator.
type StatusError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s %s: unexpected status %d", e.Service, e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker circuitbreaker.Settings
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// restClient is the JSON-over-HTTP transport shared by the collaborator clients.
type restClient struct {
	service string
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *circuitbreaker.Breaker[[]byte]
}

func newRESTClient(service string, cfg Config) *restClient {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	bs := cfg.Breaker
	if bs.Name == "" {
		bs.Name = service
	}
	// 4xx means the collaborator is healthy and answered.
	bs.IsSuccessful = func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return se.StatusCode < http.StatusInternalServerError
		}
		return err == nil
	}

	return &restClient{
		service: service,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		http:    hc,
		breaker: circuitbreaker.New[[]byte](bs),
	}
}

// do sends one request bounded by the client timeout and returns the body of
// a 2xx reply.
func (c *restClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.service, err)
		}
		body = bytes.NewReader(data)
	}

	res, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", c.service, err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s %s: %w", c.service, method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", c.service, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Service: c.service, Method: method, Path: path, StatusCode: resp.StatusCode}
		}
		return data, nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("%s: %w: %w", c.service, ErrUnavailable, err)
	}
	return res, err
}
