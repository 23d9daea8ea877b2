package awsrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultRegion is used when neither the config nor an option names one.
const DefaultRegion = "us-east-1"

// Client dispatches operation calls for one generated service package.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient applies opts on top of cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.Middlewares = append([]Middleware(nil), cfg.Middlewares...)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger.With("service", cfg.Service)}
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Host resolves the endpoint for the configured region: an explicit
// endpoint wins, then the service's regional table, then the partition
// endpoint, then the conventional host name.
func (c *Client) Host() string {
	if c.cfg.Endpoint != "" {
		return c.cfg.Endpoint
	}
	if host, ok := c.cfg.ServiceEndpoints[c.cfg.Region]; ok && host != "" {
		return host
	}
	if c.cfg.PartitionEndpoint != "" {
		if host, ok := c.cfg.ServiceEndpoints[c.cfg.PartitionEndpoint]; ok && host != "" {
			return host
		}
	}
	return fmt.Sprintf("%s.%s.amazonaws.com", c.cfg.Service, c.cfg.Region)
}

// Send runs one operation: it builds the request, passes it through the
// middlewares and hands it to the transport. A service error from the
// transport is offered to each classifier in turn; unrecognized codes come
// back as *APIError.
func (c *Client) Send(ctx context.Context, operation, method, path string, input, output any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &Request{
		Operation: operation,
		Method:    method,
		Path:      path,
		Host:      c.Host(),
		Header:    make(http.Header),
		Region:    c.cfg.Region,
		Protocol:  c.cfg.Protocol,
		Input:     input,

		SigningName: c.cfg.Service,
		Credentials: c.cfg.Credentials,
	}
	if ct := c.cfg.Protocol.ContentType(); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if c.cfg.Protocol.Type == ProtocolJSON && c.cfg.AmzTarget != "" {
		req.Header.Set("X-Amz-Target", c.cfg.AmzTarget+"."+operation)
	}
	for _, m := range c.cfg.Middlewares {
		if err := m.ModifyRequest(req); err != nil {
			return fmt.Errorf("awsrt: %s: middleware: %w", operation, err)
		}
	}
	if c.cfg.Transport == nil {
		return ErrNoTransport
	}
	c.logger.Debug("sending request", "operation", operation, "method", req.Method,
		"host", req.HostPrefix+req.Host, "path", req.Path)
	err := c.cfg.Transport.Do(ctx, req, output)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("awsrt: %s: %w", operation, err)
	}
	code := apiErr.Code
	if i := strings.LastIndexByte(code, '#'); i >= 0 {
		code = code[i+1:]
	}
	for _, classify := range c.cfg.ErrorClassifiers {
		if typed, ok := classify(code, apiErr.Message); ok {
			return typed
		}
	}
	return apiErr
}
