// Package gateway translates data-layer operations into single HTTP requests
// against the hospital administration backend and normalizes the results.
// It performs no retries; a failed call is reported once and it is up to the
// caller to invoke the operation again.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ehr/hms/internal/platform/metrics"
	"github.com/ehr/hms/pkg/resource"
)

// Operation names, shared with the lifecycle tracker.
const (
	OpFetchAll = "fetch-all"
	OpFetchOne = "fetch-one"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID makes outgoing calls made with ctx carry id instead of a
// freshly generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout of zero leaves the http.Client default (no timeout).
	Timeout   time.Duration
	UserAgent string
	Tokens    TokenSource
	Transport http.RoundTripper
	ListChain []ListExtractor
	Logger    zerolog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	listChain []ListExtractor
	logger    zerolog.Logger
	tracer    trace.Tracer
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("gateway: base url is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q must be absolute", opts.BaseURL)
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	chain := opts.ListChain
	if len(chain) == 0 {
		chain = DefaultListChain
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &headerTransport{
				base:      base,
				userAgent: opts.UserAgent,
				tokens:    opts.Tokens,
			},
		},
		listChain: chain,
		logger:    opts.Logger.With().Str("component", "gateway").Logger(),
		tracer:    otel.Tracer("github.com/ehr/hms/internal/platform/gateway"),
	}, nil
}

// HTTPClient exposes the underlying client so tests can intercept it.
func (c *Client) HTTPClient() *http.Client { return c.http }

// BaseURL returns the normalized base url.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchAll lists a collection. Unrecognized envelopes yield an empty list.
func (c *Client) FetchAll(ctx context.Context, collection string, filter url.Values) ([]resource.Entity, error) {
	path := c.collectionPath(collection)
	status, body, err := c.do(ctx, OpFetchAll, collection, http.MethodGet, path, filter, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return []resource.Entity{}, nil
	}
	parsed, err := ParseBody(body)
	if err != nil {
		return nil, decodeError(OpFetchAll, path, err)
	}
	return ExtractList(parsed, c.listChain), nil
}

// FetchOne reads a single entity.
func (c *Client) FetchOne(ctx context.Context, collection, id string) (resource.Entity, error) {
	path := c.itemPath(collection, id)
	_, body, err := c.do(ctx, OpFetchOne, collection, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &RemoteOperationError{
			Kind: KindShape, Message: ErrEmptyBody.Error(), Op: OpFetchOne, Path: path, Err: ErrEmptyBody,
		}
	}
	return c.entityFrom(OpFetchOne, path, body)
}

// Create posts a new entity and returns the server-confirmed record.
func (c *Client) Create(ctx context.Context, collection string, p Payload) (resource.Entity, error) {
	path := c.collectionPath(collection)
	return c.write(ctx, OpCreate, collection, http.MethodPost, path, p)
}

// Update replaces an entity and returns the server-confirmed record.
func (c *Client) Update(ctx context.Context, collection, id string, p Payload) (resource.Entity, error) {
	path := c.itemPath(collection, id)
	return c.write(ctx, OpUpdate, collection, http.MethodPut, path, p)
}

// Delete removes an entity and returns the id it was asked to delete. The
// response body is ignored.
func (c *Client) Delete(ctx context.Context, collection, id string) (string, error) {
	path := c.itemPath(collection, id)
	if _, _, err := c.do(ctx, OpDelete, collection, http.MethodDelete, path, nil, nil); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) write(ctx context.Context, op, collection, method, path string, p Payload) (resource.Entity, error) {
	if p == nil {
		p = JSONPayload{}
	}
	status, body, err := c.do(ctx, op, collection, method, path, nil, p)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return SuccessMarker(), nil
	}
	return c.entityFrom(op, path, body)
}

func (c *Client) entityFrom(op, path string, body []byte) (resource.Entity, error) {
	decoded, err := decodeBody(body)
	if err != nil {
		return nil, decodeError(op, path, err)
	}
	e, ok := ExtractOne(decoded)
	if !ok {
		return nil, &RemoteOperationError{
			Kind: KindShape, Message: "response body is not an object", Op: op, Path: path,
		}
	}
	return e, nil
}

func (c *Client) do(ctx context.Context, op, collection, method, path string, query url.Values, p Payload) (status int, body []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(
		attribute.String("hms.collection", collection),
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if re, ok := AsRemote(err); ok {
				outcome = string(re.Kind)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		span.End()
		metrics.ObserveGatewayCall(collection, op, outcome, time.Since(start))

		evt := c.logger.Debug()
		if err != nil {
			evt = c.logger.Warn().Err(err)
		}
		evt.Str("op", op).
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("backend call")
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	contentType := ""
	if p != nil {
		reqBody, contentType, err = p.Encode()
		if err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(op, path, err)
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return status, nil, transportError(op, path, err)
	}
	if status < 200 || status > 299 {
		return status, body, httpError(op, path, status, body)
	}
	return status, body, nil
}

func (c *Client) collectionPath(collection string) string {
	return "/" + strings.Trim(collection, "/")
}

func (c *Client) itemPath(collection, id string) string {
	return c.collectionPath(collection) + "/" + url.PathEscape(id)
}

func decodeBody(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeError(op, path string, err error) *RemoteOperationError {
	return &RemoteOperationError{
		Kind:    KindDecode,
		Message: "malformed response body: " + err.Error(),
		Op:      op,
		Path:    path,
		Err:     err,
	}
}

// headerTransport stamps every outgoing request with the user agent, a
// request id and the bearer token.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	tokens    TokenSource
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		id := RequestIDFrom(req.Context())
		if id == "" {
			id = uuid.NewString()
		}
		req.Header.Set(RequestIDHeader, id)
	}
	if t.tokens != nil {
		tok, err := t.tokens.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("obtain bearer token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return t.base.RoundTrip(req)
}
