// Package client performs XML-RPC calls over HTTP.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danmuck/xmlrpc/internal/auth"
	"github.com/danmuck/xmlrpc/internal/config"
	"github.com/danmuck/xmlrpc/internal/observability"
	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/danmuck/xmlrpc/internal/protocol/codec"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const contentType = "text/xml"

// maxErrorBody bounds how much of a non-2xx body lands in an error.
const maxErrorBody = 512

type Client struct {
	url       string
	http      *http.Client
	userAgent string
	authToken string
	logger    zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAuthToken sends token as a bearer Authorization header.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = strings.TrimSpace(token)
	}
}

// WithTLSConfig sets the TLS settings used for https endpoints.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		hc := *c.http
		hc.Transport = transport
		c.http = &hc
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(ua)
	}
}

// New builds a client for the endpoint url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:       strings.TrimSpace(url),
		http:      &http.Client{},
		userAgent: config.DefaultUserAgent,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds a client from a loaded ClientConfig.
func FromConfig(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	base := []Option{WithTimeout(cfg.Timeout)}
	if cfg.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.UserAgent))
	}
	if cfg.AuthToken != "" {
		base = append(base, WithAuthToken(cfg.AuthToken))
	}
	if cfg.CAFile != "" {
		tlsCfg, err := trustCA(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		base = append(base, WithTLSConfig(tlsCfg))
	}
	return New(cfg.URL, append(base, opts...)...), nil
}

// trustCA returns a TLS config trusting the system roots plus path.
func trustCA(path string) (*tls.Config, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file (%s): %w", path, err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("ca file (%s) holds no certificates", path)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (c *Client) URL() string {
	return c.url
}

// CallValue sends one call and returns the decoded response. A fault is a
// successful exchange and comes back inside the Response. Connection
// failures and non-2xx statuses are KindHTTP errors; an undecodable body is
// a KindFormat error.
func (c *Client) CallValue(ctx context.Context, name string, params protocol.Params) (protocol.Response, error) {
	start := time.Now()
	resp, outcome, err := c.roundTrip(ctx, protocol.NewCall(name, params...))
	observability.RecordClientCall(name, outcome, time.Since(start))

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.
		Str("method", name).
		Str("url", c.url).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("xmlrpc_call")
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, call protocol.Call) (protocol.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(protocol.EncodeCall(call)))
	if err != nil {
		return protocol.Response{}, observability.OutcomeHTTPError, protocol.HTTPError(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", auth.Header(c.authToken))
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return protocol.Response{}, observability.OutcomeHTTPError, protocol.HTTPError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return protocol.Response{}, observability.OutcomeHTTPError, protocol.HTTPError(
			fmt.Errorf("unexpected status %s: %s", httpResp.Status, strings.TrimSpace(string(snippet))),
		)
	}

	resp, err := protocol.DecodeResponse(httpResp.Body)
	if err != nil {
		return protocol.Response{}, observability.OutcomeDecodeError, protocol.FormatFailure(err)
	}
	if resp.IsFault() {
		return resp, observability.OutcomeFault, nil
	}
	return resp, observability.OutcomeOK, nil
}

// Call marshals args into params, performs the call and decodes the result
// into reply, which may be nil to discard it. A fault is returned as
// *protocol.Fault.
func (c *Client) Call(ctx context.Context, name string, args any, reply any) error {
	params, err := codec.IntoParams(args)
	if err != nil {
		return protocol.FormatFailure(err)
	}
	resp, err := c.CallValue(ctx, name, params)
	if err != nil {
		return err
	}
	if resp.IsFault() {
		return resp.Fault
	}
	if reply == nil {
		return nil
	}
	if err := codec.FromParams(resp.Params, reply); err != nil {
		return protocol.FormatFailure(err)
	}
	return nil
}

var defaultClient = &http.Client{Timeout: config.DefaultClientConfig().Timeout}

// CallValue performs a one-off call against url with default settings.
func CallValue(ctx context.Context, url, name string, params protocol.Params) (protocol.Response, error) {
	return New(url, WithHTTPClient(defaultClient)).CallValue(ctx, name, params)
}

// Call performs a one-off typed call against url with default settings.
func Call(ctx context.Context, url, name string, args any, reply any) error {
	return New(url, WithHTTPClient(defaultClient)).Call(ctx, name, args, reply)
}
