package trinoclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Trino protocol headers
const (
	UserHeader        = "X-Trino-User"
	CatalogHeader     = "X-Trino-Catalog"
	SchemaHeader      = "X-Trino-Schema"
	SessionHeader     = "X-Trino-Session"
	SourceHeader      = "X-Trino-Source"
	ClientTagHeader   = "X-Trino-Client-Tags"
	TimeZoneHeader    = "X-Trino-Time-Zone"
	TraceTokenHeader  = "X-Trino-Trace-Token"
	ClientInfoHeader  = "X-Trino-Client-Info"
	DefaultUser       = "connector-x"
	DefaultSource     = "connector-x"
	DefaultRetryDelay = time.Second

	ContentEncodingGzip = "gzip"
	MaxRetryAttempts    = 10
	MaxRetryDelay       = 30 * time.Second
)

// RequestOption allows for functional overrides on individual requests
type RequestOption func(*http.Request)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client. The default is a fresh
// http.Client using the system root certificates.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryDelay sets the initial backoff between retried requests.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// Session represents an isolated execution context linked to a Trino client
type Session struct {
	client        *Client // Link to the parent client for network transport
	userInfo      *url.Userinfo
	catalog       string
	schema        string
	timezone      string
	source        string
	clientInfo    string
	traceToken    string
	sessionParams map[string]any
	clientTags    []string
	options       []RequestOption

	// mu protects session state during concurrent access
	mu sync.RWMutex
}

// Client serves as the factory and network configuration provider.
// A Client is immutable once constructed and may be shared between goroutines;
// per-query state lives in the Sessions it hands out.
type Client struct {
	Session    // Embedded default session
	httpClient *http.Client
	serverUrl  *url.URL
	retryDelay time.Duration
}

// --- Initialization & Lifecycle ---

// NewClient initializes the client and links its embedded session to itself.
func NewClient(serverUrl string, opts ...ClientOption) (*Client, error) {
	parsedUrl, err := url.Parse(serverUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if parsedUrl.Scheme != "http" && parsedUrl.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL: unsupported scheme %q", parsedUrl.Scheme)
	}

	c := &Client{
		httpClient: &http.Client{},
		serverUrl:  parsedUrl,
		retryDelay: DefaultRetryDelay,
		Session: Session{
			userInfo:      url.User(DefaultUser),
			source:        DefaultSource,
			sessionParams: make(map[string]any),
		},
	}

	// Link the embedded session to the client
	c.Session.client = c

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ServerURL returns a copy of the coordinator base URL.
func (c *Client) ServerURL() *url.URL {
	u := *c.serverUrl
	return &u
}

// IsSecure reports whether requests are sent over TLS.
func (c *Client) IsSecure() bool {
	return c.serverUrl.Scheme == "https"
}

// Clone creates an isolated session copy that maintains the same client link
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	params := make(map[string]any, len(s.sessionParams))
	maps.Copy(params, s.sessionParams)

	tags := make([]string, len(s.clientTags))
	copy(tags, s.clientTags)

	options := make([]RequestOption, len(s.options))
	copy(options, s.options)

	return &Session{
		client:        s.client, // Maintain the same network client
		userInfo:      s.userInfo,
		catalog:       s.catalog,
		schema:        s.schema,
		timezone:      s.timezone,
		source:        s.source,
		clientInfo:    s.clientInfo,
		traceToken:    s.traceToken,
		sessionParams: params,
		clientTags:    tags,
		options:       options,
	}
}

// --- Session Setters (Fluent API) ---

func (s *Session) Catalog(catalog string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
	return s
}

func (s *Session) Schema(schema string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = schema
	return s
}

func (s *Session) User(user string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInfo = url.User(user)
	return s
}

// UserPassword sets the user and enables HTTP Basic authentication.
func (s *Session) UserPassword(user, password string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInfo = url.UserPassword(user, password)
	return s
}

func (s *Session) TimeZone(tz string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezone = tz
	return s
}

func (s *Session) Source(source string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	return s
}

func (s *Session) ClientInfo(info string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientInfo = info
	return s
}

// TraceToken tags every request of the session so the coordinator can
// correlate queries issued on behalf of one load.
func (s *Session) TraceToken(token string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traceToken = token
	return s
}

// SessionParam sets or removes a session parameter. Set value to nil to remove.
func (s *Session) SessionParam(key string, value any) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.sessionParams, key)
	} else {
		s.sessionParams[key] = value
	}
	return s
}

func (s *Session) ClientTags(tags ...string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientTags = tags
	return s
}

// RequestOptions replaces the options applied to every request of this session.
// Per-call options passed to NewRequest run after these and win on conflict.
func (s *Session) RequestOptions(opts ...RequestOption) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = opts
	return s
}

// Username returns the user the session authenticates as.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userInfo == nil {
		return ""
	}
	return s.userInfo.Username()
}

// --- Request Lifecycle ---

// NewRequest builds an http.Request using internal session and client states, accepting optional overrides.
func (s *Session) NewRequest(method, urlStr string, body any, options ...RequestOption) (*http.Request, error) {
	u, err := s.client.prepareURL(urlStr)
	if err != nil {
		return nil, err
	}

	bodyReader, contentType, err := s.client.prepareRequestBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	s.applyHeaders(req)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept-Encoding", ContentEncodingGzip)

	s.mu.RLock()
	sessionOpts := s.options
	s.mu.RUnlock()
	for _, opt := range sessionOpts {
		opt(req)
	}
	for _, opt := range options {
		opt(req)
	}

	return req, nil
}

func (s *Session) applyHeaders(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 1. Identity & Auth
	if s.userInfo != nil {
		req.Header.Set(UserHeader, s.userInfo.Username())
		if pass, ok := s.userInfo.Password(); ok {
			req.SetBasicAuth(s.userInfo.Username(), pass)
		}
	}

	// 2. Contextual Headers
	if s.catalog != "" {
		req.Header.Set(CatalogHeader, s.catalog)
	}
	if s.schema != "" {
		req.Header.Set(SchemaHeader, s.schema)
	}
	if s.timezone != "" {
		req.Header.Set(TimeZoneHeader, s.timezone)
	}
	if s.source != "" {
		req.Header.Set(SourceHeader, s.source)
	}
	if s.clientInfo != "" {
		req.Header.Set(ClientInfoHeader, s.clientInfo)
	}
	if s.traceToken != "" {
		req.Header.Set(TraceTokenHeader, s.traceToken)
	}

	// 3. Session properties
	if len(s.sessionParams) > 0 {
		req.Header.Set(SessionHeader, generateSessionHeader(s.sessionParams))
	}
	if len(s.clientTags) > 0 {
		req.Header.Set(ClientTagHeader, strings.Join(s.clientTags, ","))
	}
}

// --- Execution ---

// Do executes the request, retrying on 503 and transient network errors.
func (s *Session) Do(ctx context.Context, req *http.Request, v any) (*http.Response, error) {
	req = req.WithContext(ctx)

	// Buffer the request body so it can be replayed on retries.
	// io.Reader is consumed after the first attempt, so we need GetBody.
	if req.Body != nil && req.GetBody == nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	retryDelay := s.client.retryDelay
	for attempt := 0; attempt < MaxRetryAttempts; attempt++ {
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			// Retry on transient network errors, but not on context cancellation
			if !isRetryableNetError(err) {
				return nil, err
			}

			log.Debug().Err(err).Int("attempt", attempt+1).Str("url", req.URL.Redacted()).Msg("retrying on connection error")

			if req.GetBody != nil {
				req.Body, _ = req.GetBody()
			}

			if err := sleepContext(ctx, retryDelay); err != nil {
				return nil, err
			}
			retryDelay = nextDelay(retryDelay)
			continue
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
			err = decodeResponseBody(resp, v)
			return resp, err
		}

		if resp.StatusCode == http.StatusServiceUnavailable {
			if closeErr := resp.Body.Close(); closeErr != nil {
				log.Debug().Err(closeErr).Msg("failed to close response body")
			}
			log.Debug().Int("attempt", attempt+1).Str("url", req.URL.Redacted()).Msg("retrying on 503")

			// Reset the request body for the next attempt
			if req.GetBody != nil {
				req.Body, _ = req.GetBody()
			}

			if err := sleepContext(ctx, retryDelay); err != nil {
				return nil, err
			}
			retryDelay = nextDelay(retryDelay)
			continue
		}

		return resp, NewErrorResponse(resp)
	}
	return nil, fmt.Errorf("max retries exceeded")
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isRetryableNetError returns true for transient network errors that warrant
// a retry (connection refused, DNS failures, connection reset, network timeouts).
// Context cancellation and deadline exceeded errors are NOT retried.
func isRetryableNetError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// --- Client Networking Utilities ---

func (c *Client) prepareURL(urlStr string) (*url.URL, error) {
	return c.serverUrl.Parse(urlStr)
}

func (c *Client) prepareRequestBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	if s, ok := body.(string); ok {
		return strings.NewReader(s), "text/plain", nil
	}
	jsonBuf := &bytes.Buffer{}
	if err := json.NewEncoder(jsonBuf).Encode(body); err != nil {
		return nil, "", err
	}
	return jsonBuf, "application/json", nil
}

func generateSessionHeader(params map[string]any) string {
	var pairs []string
	for k, v := range params {
		val := url.QueryEscape(fmt.Sprintf("%v", v))
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, val))
	}
	return strings.Join(pairs, ",")
}

func decodeResponseBody(resp *http.Response, v any) (err error) {
	// Ensure the main response body is always closed
	defer func() {
		closeErr := resp.Body.Close()
		if err == nil {
			err = closeErr
		}
	}()

	if v == nil {
		return nil
	}

	var reader io.Reader = resp.Body

	if resp.Header.Get("Content-Encoding") == ContentEncodingGzip {
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return fmt.Errorf("failed to create gzip reader: %w", gzErr)
		}

		defer func() {
			// Logged rather than returned so it never masks a decode error.
			if cErr := gz.Close(); cErr != nil {
				log.Debug().Err(cErr).Msg("failed to close gzip reader")
			}
		}()
		reader = gz
	}

	if w, ok := v.(io.Writer); ok {
		_, err = io.Copy(w, reader)
		return err
	}

	// Numbers stay json.Number so integer columns keep full 64-bit precision.
	dec := json.NewDecoder(reader)
	dec.UseNumber()
	if err = dec.Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	return nil
}

// NewSession creates a new, isolated session using the client's current
// connection settings. The new session is linked to this client but
// maintains its own headers and tags.
func (c *Client) NewSession() *Session {
	return c.Session.Clone()
}
