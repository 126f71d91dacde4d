package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"pkt.systems/consulate/internal/clock"
	"pkt.systems/consulate/internal/correlation"
	"pkt.systems/consulate/internal/svcfields"
	"pkt.systems/consulate/internal/tokenfile"
	"pkt.systems/consulate/query"
	"pkt.systems/consulate/transport"
	"pkt.systems/pslog"
)

// Client is the SDK facade. It is safe for concurrent use; all components
// are created by New and never change afterwards.
type Client struct {
	cfg        Config
	transport  transport.Transport
	engine     *query.Engine
	clock      clock.Clock
	logger     pslog.Base
	httpClient *http.Client
	engineOpts []query.Option
	tokens     transport.TokenSource
	closers    []io.Closer

	kv       *KV
	events   *Events
	sessions *Sessions
	locks    *Locks
	catalog  *Catalog
	health   *Health
	acl      *ACL
	status   *Status

	closeOnce sync.Once
	closeErr  error
}

// Option customises client construction.
type Option func(*Client)

// WithLogger supplies a logger for client diagnostics.
// Passing nil falls back to pslog.NoopLogger().
func WithLogger(logger pslog.Base) Option {
	return func(c *Client) {
		c.logger = svcfields.Tag(logger, "client.sdk")
	}
}

// WithTransport replaces the HTTP transport entirely. Address, TokenFile and
// HTTPTimeout are then ignored.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithHTTPClient supplies a custom HTTP client for the default transport.
// Use this when you need custom TLS roots, proxies, or pooling behaviour.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.httpClient = cli
		}
	}
}

// WithTokenSource overrides Config.Token and Config.TokenFile.
func WithTokenSource(src transport.TokenSource) Option {
	return func(c *Client) {
		c.tokens = src
	}
}

// WithEngineOptions appends options for the blocking-query engine, such as
// query.WithSpuriousBackoff.
func WithEngineOptions(opts ...query.Option) Option {
	return func(c *Client) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

func withClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// New validates cfg and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		clock:  clock.Real{},
		logger: pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		if err := c.initHTTP(); err != nil {
			c.Close()
			return nil, err
		}
	}
	engineOpts := append([]query.Option{
		query.WithWaitCeiling(cfg.WaitCeiling),
		query.WithLogger(c.logger),
		query.WithClock(c.clock),
	}, c.engineOpts...)
	c.engine = query.NewEngine(c.transport, engineOpts...)

	c.kv = &KV{c: c}
	c.events = &Events{c: c}
	c.sessions = &Sessions{c: c}
	c.locks = &Locks{c: c}
	c.catalog = &Catalog{c: c}
	c.health = &Health{c: c}
	c.acl = newACL(c)
	c.status = &Status{c: c}
	c.logger.Debug("client.init", "address", cfg.Address, "datacenter", cfg.Datacenter, "wait_ceiling", cfg.WaitCeiling)
	return c, nil
}

func (c *Client) initHTTP() error {
	tokens := c.tokens
	if tokens == nil {
		switch {
		case c.cfg.Token != "":
			tokens = transport.StaticToken(c.cfg.Token)
		case c.cfg.TokenFile != "":
			w, err := tokenfile.Open(c.cfg.TokenFile, c.logger)
			if err != nil {
				return err
			}
			c.closers = append(c.closers, w)
			tokens = w
		}
	}
	httpOpts := []transport.HTTPOption{
		transport.WithTimeout(c.cfg.HTTPTimeout),
		transport.WithLogger(c.logger),
	}
	if tokens != nil {
		httpOpts = append(httpOpts, transport.WithTokenSource(tokens))
	}
	if c.httpClient != nil {
		httpOpts = append(httpOpts, transport.WithHTTPClient(c.httpClient))
	}
	h, err := transport.NewHTTP(c.cfg.Address, c.cfg.Scheme, httpOpts...)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, h)
	c.transport = h
	return nil
}

// Close releases idle connections and stops the token file watcher.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i].Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// Config returns the validated configuration.
func (c *Client) Config() Config { return c.cfg }

// Engine exposes the blocking-query engine for custom sources.
func (c *Client) Engine() *query.Engine { return c.engine }

// KV returns the key/value component.
func (c *Client) KV() *KV { return c.kv }

// Events returns the user-event component.
func (c *Client) Events() *Events { return c.events }

// Sessions returns the session component.
func (c *Client) Sessions() *Sessions { return c.sessions }

// Locks returns the distributed lock component.
func (c *Client) Locks() *Locks { return c.locks }

// Catalog returns the catalog component.
func (c *Client) Catalog() *Catalog { return c.catalog }

// Health returns the health component.
func (c *Client) Health() *Health { return c.health }

// ACL returns the ACL component.
func (c *Client) ACL() *ACL { return c.acl }

// Status returns the cluster status component.
func (c *Client) Status() *Status { return c.status }

// params renders opts and fills the configured datacenter, namespace and
// partition where opts leaves them empty.
func (c *Client) params(opts query.Options) query.Params {
	if opts.Datacenter == "" {
		opts.Datacenter = c.cfg.Datacenter
	}
	if opts.Namespace == "" {
		opts.Namespace = c.cfg.Namespace
	}
	if opts.Partition == "" {
		opts.Partition = c.cfg.Partition
	}
	return opts.Params()
}

// do issues one request. body may be nil, []byte (sent as-is) or a value
// encoded as JSON. Statuses are not interpreted.
func (c *Client) do(ctx context.Context, method, path string, params query.Params, body any) (*transport.Response, error) {
	req := &transport.Request{Method: method, Path: path, Params: params}
	switch v := body.(type) {
	case nil:
	case []byte:
		req.Body = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("consulate: encode %s body: %w", path, err)
		}
		req.Body = data
	}
	c.logTraceCtx(ctx, "client.request.start", "method", method, "path", path)
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logDebugCtx(ctx, "client.request.error", "method", method, "path", path, "error", err)
		return nil, &query.TransportError{Method: method, Path: path, Err: err}
	}
	return resp, nil
}

// call issues a request and maps the status: 2xx decodes into out (when
// non-nil), 404 is a *query.NotFoundError naming key, anything else is a
// *query.StatusError.
func (c *Client) call(ctx context.Context, method, path, key string, params query.Params, body, out any) (query.Meta, error) {
	resp, err := c.do(ctx, method, path, params, body)
	if err != nil {
		return query.Meta{}, err
	}
	meta := query.ParseMeta(resp.Header)
	if err := checkStatus(method, path, key, resp); err != nil {
		c.logDebugCtx(ctx, "client.request.status", "method", method, "path", path, "status", resp.Status)
		return meta, err
	}
	if out != nil && len(strings.TrimSpace(string(resp.Body))) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return meta, &query.DecodingError{Key: key, Err: err}
		}
	}
	return meta, nil
}

// callBool is call for endpoints that answer true or false.
func (c *Client) callBool(ctx context.Context, method, path, key string, params query.Params, body any) (bool, error) {
	var ok bool
	if _, err := c.call(ctx, method, path, key, params, body, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func checkStatus(method, path, key string, resp *transport.Response) error {
	switch {
	case resp.Status >= 200 && resp.Status <= 299:
		return nil
	case resp.Status == http.StatusNotFound:
		return &query.NotFoundError{Key: key}
	default:
		return &query.StatusError{Method: method, Path: path, Status: resp.Status, Body: resp.Body}
	}
}

// listSource binds the engine to a JSON list endpoint.
func listSource[T any](c *Client, path string, params query.Params, decode func([]byte) ([]T, error)) *query.Source[T] {
	return &query.Source[T]{Engine: c.engine, Path: path, Params: params, Decode: decode}
}

// fetchList reads a JSON list endpoint once.
func fetchList[T any](ctx context.Context, c *Client, path string, params query.Params) ([]T, query.Meta, error) {
	snap, err := listSource[T](c, path, params, nil).Poll(ctx)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return snap.Entries, snap.Meta, nil
}

// escapePath escapes every segment of a slash-separated name.
func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (c *Client) enrichKeyvals(ctx context.Context, keyvals []any) []any {
	cid := correlation.ID(ctx)
	if cid == "" {
		return keyvals
	}
	return append(append([]any(nil), keyvals...), "cid", cid)
}

func (c *Client) logTraceCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Trace(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logDebugCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logInfoCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, c.enrichKeyvals(ctx, keyvals)...)
}
