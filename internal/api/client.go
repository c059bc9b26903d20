package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lavacar-app/lavacar/internal/session"
)

// DefaultTimeout bounds every request that does not set its own
const DefaultTimeout = 10 * time.Second

// IdempotencyWindow is how long after an unsafe request finishes an identical
// one reuses its Idempotency-Key, so the backend replays the first answer
const IdempotencyWindow = 2 * time.Second

// Session is the part of the session context the transport needs
type Session interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context, reason session.Reason) error
}

// Options tune a Client
type Options struct {
	Timeout    time.Duration
	DeviceID   string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client sends requests to the loyalty backend and maps every answer,
// including transport failures, to a Result.
type Client struct {
	rest     *resty.Client
	baseURL  string
	session  Session
	timeout  time.Duration
	deviceID string
	logger   zerolog.Logger
	group    singleflight.Group

	keysMu sync.Mutex
	keys   map[string]recentKey
	now    func() time.Time
}

// recentKey is an Idempotency-Key still open for reuse
type recentKey struct {
	key     string
	expires time.Time
}

// New creates a new API client for baseURL
func New(baseURL string, sess Session, opts Options) *Client {
	rc := resty.New()
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	baseURL = strings.TrimRight(baseURL, "/")
	rc.SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{opts.Logger})

	return &Client{
		rest:     rc,
		baseURL:  baseURL,
		session:  sess,
		timeout:  timeout,
		deviceID: opts.DeviceID,
		logger:   opts.Logger,
		keys:     make(map[string]recentKey),
		now:      time.Now,
	}
}

// BaseURL returns the backend root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one backend call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Auth attaches the session token as a bearer credential when one exists
	Auth bool

	// Timeout overrides the client default when positive
	Timeout time.Duration

	// NoTeardown keeps the session intact on a 401
	NoTeardown bool

	// Envelope decodes the whole body into Data instead of its data member
	Envelope bool

	// DedupeKey overrides the key identical in-flight requests are coalesced on
	DedupeKey string
}

// response is the raw outcome shared between coalesced callers
type response struct {
	status  int
	body    []byte
	message string
	err     error
}

// Do performs req and decodes a successful payload into T. It never returns
// an error: every failure is described by the Result.
func Do[T any](ctx context.Context, c *Client, req Request) Result[T] {
	raw := c.send(ctx, req)
	return decode[T](raw, req.Envelope)
}

// Get is Do with the GET method
func Get[T any](ctx context.Context, c *Client, path string, query url.Values, auth bool) Result[T] {
	return Do[T](ctx, c, Request{Method: http.MethodGet, Path: path, Query: query, Auth: auth})
}

// Post is Do with the POST method
func Post[T any](ctx context.Context, c *Client, path string, body any, auth bool) Result[T] {
	return Do[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body, Auth: auth})
}

// Put is Do with the PUT method
func Put[T any](ctx context.Context, c *Client, path string, body any, auth bool) Result[T] {
	return Do[T](ctx, c, Request{Method: http.MethodPut, Path: path, Body: body, Auth: auth})
}

// Delete is Do with the DELETE method
func Delete[T any](ctx context.Context, c *Client, path string, auth bool) Result[T] {
	return Do[T](ctx, c, Request{Method: http.MethodDelete, Path: path, Auth: auth})
}

func (c *Client) send(ctx context.Context, req Request) response {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	key := req.DedupeKey
	if key == "" {
		key = dedupeKey(req)
	}

	idemKey, scope := c.idempotencyKey(ctx, req, key)
	if scope != "" {
		defer c.holdKey(scope)
	}

	if key == "" {
		return c.execute(ctx, req, idemKey)
	}

	// The shared call outlives any single caller; execute still bounds it
	// with the request timeout
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.execute(shared, req, idemKey), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().
				Str("method", req.Method).
				Str("path", req.Path).
				Msg("Request coalesced with an identical in-flight request")
		}
		raw := res.Val.(response)
		// Each caller decodes its own copy of the body
		raw.body = bytes.Clone(raw.body)
		return raw
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return response{status: StatusTimeout, message: TimeoutMessage, err: fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())}
		}
		return canceled(ctx.Err())
	}
}

func (c *Client) execute(ctx context.Context, req Request, idemKey string) response {
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := c.rest.R().SetContext(reqCtx)
	if c.deviceID != "" {
		r.SetHeader("X-Device-Id", c.deviceID)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}
	if idemKey != "" {
		r.SetHeader("Idempotency-Key", idemKey)
	}
	if req.Auth {
		token, err := c.session.Token(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to read session token")
		}
		if token != "" {
			r.SetAuthToken(token)
		}
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, req.Path)
	elapsed := time.Since(start)

	if err != nil {
		cause := classify(reqCtx, err)
		c.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Dur("duration", elapsed).
			Msg("Request failed without a response")

		switch {
		case errors.Is(cause, ErrTimeout):
			return response{status: StatusTimeout, message: TimeoutMessage, err: cause}
		case errors.Is(cause, ErrCanceled):
			return canceled(err)
		}
		return response{status: http.StatusInternalServerError, message: NetworkMessage, err: cause}
	}

	status := resp.StatusCode()
	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", status).
		Dur("duration", elapsed).
		Msg("Request completed")

	if status == http.StatusUnauthorized && req.Auth && !req.NoTeardown && !IsLoginPath(req.Path) {
		c.logger.Info().Str("path", req.Path).Msg("Session rejected by the backend, signing out")
		if err := c.session.Clear(context.WithoutCancel(ctx), session.ReasonExpired); err != nil {
			c.logger.Error().Err(err).Msg("Failed to clear session")
		}
	}

	return response{status: status, body: resp.Body()}
}

// IsLoginPath reports whether a 401 on path means bad credentials rather
// than an expired session
func IsLoginPath(path string) bool {
	return strings.Contains(path, "/login")
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// dedupeKey identifies requests that may share one in-flight call. An empty
// key disables coalescing.
func dedupeKey(req Request) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.Path)
	if len(req.Query) > 0 {
		b.WriteByte('?')
		b.WriteString(req.Query.Encode())
	}
	fmt.Fprintf(&b, " auth=%t teardown=%t envelope=%t", req.Auth, !req.NoTeardown, req.Envelope)
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return ""
		}
		sum := sha256.Sum256(body)
		b.WriteByte(' ')
		b.WriteString(hex.EncodeToString(sum[:]))
	}
	return b.String()
}

func canceled(err error) response {
	return response{status: StatusCanceled, message: CanceledMessage, err: fmt.Errorf("%w: %v", ErrCanceled, err)}
}

// idempotencyKey returns the Idempotency-Key for an unsafe request and the
// scope it is remembered under. An identical request from the same session
// within IdempotencyWindow of the last one gets the same key.
func (c *Client) idempotencyKey(ctx context.Context, req Request, dedupe string) (string, string) {
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return "", ""
	}
	if dedupe == "" {
		return ulid.Make().String(), ""
	}

	scope := dedupe
	if req.Auth {
		token, _ := c.session.Token(ctx)
		sum := sha256.Sum256([]byte(token))
		scope += " session=" + hex.EncodeToString(sum[:8])
	}

	c.keysMu.Lock()
	defer c.keysMu.Unlock()

	now := c.now()
	for k, v := range c.keys {
		if now.After(v.expires) {
			delete(c.keys, k)
		}
	}
	if v, ok := c.keys[scope]; ok {
		return v.key, scope
	}

	inFlight := c.timeout
	if req.Timeout > inFlight {
		inFlight = req.Timeout
	}
	key := ulid.Make().String()
	// Held open while in flight; holdKey starts the window when it finishes
	c.keys[scope] = recentKey{key: key, expires: now.Add(inFlight + IdempotencyWindow)}
	return key, scope
}

func (c *Client) holdKey(scope string) {
	c.keysMu.Lock()
	defer c.keysMu.Unlock()
	if v, ok := c.keys[scope]; ok {
		v.expires = c.now().Add(IdempotencyWindow)
		c.keys[scope] = v
	}
}

// restyLogger routes resty's own diagnostics through zerolog
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}
