package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"

	"pkt.systems/consulate/internal/correlation"
	"pkt.systems/consulate/internal/svcfields"
	"pkt.systems/consulate/internal/version"
	"pkt.systems/pslog"
)

const (
	// DefaultAddress is the agent address used when none is configured.
	DefaultAddress = "127.0.0.1:8500"
	// DefaultScheme is applied to addresses without a scheme.
	DefaultScheme = "http"

	unixBase = "http://unix"
)

// TokenSource supplies the ACL token attached to every request. It is
// consulted per request so rotated tokens take effect without a restart.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that never changes.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token() string { return string(s) }

// HTTP is the production Transport. It is safe for concurrent use.
type HTTP struct {
	base      string
	client    *http.Client
	tokens    TokenSource
	timeout   time.Duration
	userAgent string
	logger    pslog.Base
}

// HTTPOption customises an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient supplies a custom client (proxies, TLS roots, test servers).
func WithHTTPClient(cli *http.Client) HTTPOption {
	return func(h *HTTP) {
		if cli != nil {
			h.client = cli
		}
	}
}

// WithTokenSource sets the ACL token source.
func WithTokenSource(src TokenSource) HTTPOption {
	return func(h *HTTP) {
		h.tokens = src
	}
}

// WithToken sets a fixed ACL token.
func WithToken(token string) HTTPOption {
	return WithTokenSource(StaticToken(strings.TrimSpace(token)))
}

// WithTimeout bounds requests that are not blocking queries. Requests that
// carry an index parameter are governed by their wait parameter and the
// caller's context instead.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d >= 0 {
			h.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		if ua = strings.TrimSpace(ua); ua != "" {
			h.userAgent = ua
		}
	}
}

// WithLogger supplies a logger for request diagnostics.
func WithLogger(logger pslog.Base) HTTPOption {
	return func(h *HTTP) {
		h.logger = svcfields.Tag(logger, "transport.http")
	}
}

// NewHTTP returns a transport for address. Accepted forms are host:port,
// http(s)://host[:port][/prefix] and unix:///path/to/agent.sock.
// Addresses without a scheme use defaultScheme ("http" when empty).
func NewHTTP(address, defaultScheme string, opts ...HTTPOption) (*HTTP, error) {
	base, socket, err := ParseAddress(address, defaultScheme)
	if err != nil {
		return nil, err
	}
	h := &HTTP{
		base:      base,
		userAgent: version.UserAgent(),
		logger:    pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		cli, err := buildHTTPClient(base, socket)
		if err != nil {
			return nil, err
		}
		h.client = cli
	}
	return h, nil
}

// Base returns the normalised base URL requests are issued against.
func (h *HTTP) Base() string { return h.base }

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// Do issues req and reads the full response body.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("consulate: nil request")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := h.base + "/" + strings.TrimLeft(req.Path, "/")
	if enc := req.Params.Encode(); enc != "" {
		target += "?" + enc
	}
	reqCtx := ctx
	if h.timeout > 0 && !req.Params.Has("index") {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return nil, &Error{Method: method, URL: target, Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" && h.userAgent != "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if h.tokens != nil && httpReq.Header.Get(HeaderToken) == "" {
		if token := h.tokens.Token(); token != "" {
			httpReq.Header.Set(HeaderToken, token)
		}
	}
	if cid := correlation.ID(ctx); cid != "" && httpReq.Header.Get(correlation.Header) == "" {
		httpReq.Header.Set(correlation.Header, cid)
	}

	start := time.Now()
	h.logTraceCtx(ctx, "transport.http.request.start", "method", method, "path", req.Path, "blocking", req.Params.Has("index"))
	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logDebugCtx(ctx, "transport.http.request.error", "method", method, "path", req.Path, "elapsed", time.Since(start), "error", err)
		return nil, &Error{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logDebugCtx(ctx, "transport.http.response.read_error", "method", method, "path", req.Path, "error", err)
		return nil, &Error{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	h.logTraceCtx(ctx, "transport.http.request.complete",
		"method", method,
		"path", req.Path,
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start),
	)
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// ParseAddress normalises an agent address into a base URL. For unix
// sockets the returned socket path is non-empty and base is a placeholder
// host.
func ParseAddress(address, defaultScheme string) (base string, socket string, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		address = DefaultAddress
	}
	if strings.HasPrefix(address, "unix://") {
		return parseUnixAddress(address)
	}
	if !strings.Contains(address, "://") {
		scheme := strings.ToLower(strings.TrimSpace(defaultScheme))
		if scheme == "" {
			scheme = DefaultScheme
		}
		address = scheme + "://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("consulate: parse address %q: %w", address, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", "", fmt.Errorf("consulate: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("consulate: address %q missing host", address)
	}
	return strings.ToLower(u.Scheme) + "://" + u.Host + strings.TrimRight(u.Path, "/"), "", nil
}

func parseUnixAddress(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("consulate: parse unix address: %w", err)
	}
	socketPath := u.Path
	if u.Host != "" {
		socketPath = "/" + u.Host + socketPath
	}
	if socketPath == "" || socketPath == "/" {
		return "", "", fmt.Errorf("consulate: unix address missing socket path")
	}
	return unixBase, socketPath, nil
}

func buildHTTPClient(base, socket string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()
	if socket != "" {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		tr.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socket)
		}
		tr.DialTLSContext = nil
		tr.TLSClientConfig = nil
	} else if strings.HasPrefix(base, "https://") {
		if _, err := http2.ConfigureTransports(tr); err != nil {
			return nil, fmt.Errorf("consulate: configure http2: %w", err)
		}
	}
	return &http.Client{Transport: otelhttp.NewTransport(tr)}, nil
}

func (h *HTTP) enrichKeyvals(ctx context.Context, keyvals []any) []any {
	cid := correlation.ID(ctx)
	if cid == "" {
		return keyvals
	}
	return append(append([]any(nil), keyvals...), "cid", cid)
}

func (h *HTTP) logTraceCtx(ctx context.Context, msg string, keyvals ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Trace(msg, h.enrichKeyvals(ctx, keyvals)...)
}

func (h *HTTP) logDebugCtx(ctx context.Context, msg string, keyvals ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Debug(msg, h.enrichKeyvals(ctx, keyvals)...)
}
