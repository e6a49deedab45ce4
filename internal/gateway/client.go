// Package gateway talks to the remote fault diagnosis service over HTTP and
// normalizes its replies into diagnosis.Response values.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

// Default endpoint paths of the diagnosis service.
const (
	DefaultDiagnosePath = "/api/diagnose"
	DefaultResetPath    = "/api/reset"
	DefaultHealthPath   = "/api/health"
)

// maxBody caps how much of a reply is read.
const maxBody = 8 << 20

// Client is a diagnosis service client. It is safe for concurrent use.
type Client struct {
	baseURL      string
	diagnosePath string
	resetPath    string
	healthPath   string
	token        string
	jar          *sessionJar
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPaths overrides the endpoint paths. Empty values keep the defaults.
func WithPaths(diagnose, reset, health string) Option {
	return func(c *Client) {
		if diagnose != "" {
			c.diagnosePath = diagnose
		}
		if reset != "" {
			c.resetPath = reset
		}
		if health != "" {
			c.healthPath = health
		}
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client. Its Jar is replaced by
// the client's own session jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client targeting baseURL. Requests carry no client-side
// timeout; cancellation is up to the caller's context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		diagnosePath: DefaultDiagnosePath,
		resetPath:    DefaultResetPath,
		healthPath:   DefaultHealthPath,
		httpClient:   &http.Client{Timeout: 0},
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.jar = newJar()
	c.httpClient.Jar = c.jar
	return c
}

// sessionJar is a cookie jar that can be emptied while requests are in flight.
type sessionJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newJar() *sessionJar {
	j := &sessionJar{}
	j.clear()
	return j
}

func (j *sessionJar) clear() {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	jar := j.jar
	j.mu.Unlock()
	jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	jar := j.jar
	j.mu.Unlock()
	return jar.Cookies(u)
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

type diagnoseRequest struct {
	Query     string `json:"query"`
	Engine    string `json:"engine,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Diagnose submits q and returns the normalized reply. session, when set, is
// echoed as session_id so the server can continue a clarification dialogue.
// Any failure is reported as *diagnosis.TransportError; there are no retries.
func (c *Client) Diagnose(ctx context.Context, q diagnosis.Query, session string) (diagnosis.Response, error) {
	const op = "diagnose"

	data, err := json.Marshal(diagnoseRequest{
		Query:     q.Text,
		Engine:    string(q.Engine),
		SessionID: session,
	})
	if err != nil {
		return diagnosis.Response{}, &diagnosis.TransportError{Op: op, Err: fmt.Errorf("marshalling request: %w", err)}
	}

	start := time.Now()
	body, err := c.do(ctx, op, http.MethodPost, c.diagnosePath, bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("diagnose request failed", "engine", q.Engine.String(), "error", err)
		return diagnosis.Response{}, err
	}

	resp, err := Decode(body)
	if err != nil {
		c.logger.Warn("malformed diagnose response", "error", err, "bytes", len(body))
		return diagnosis.Response{}, &diagnosis.TransportError{Op: op, Err: err}
	}
	c.logger.Debug("diagnose response",
		"kind", resp.Kind.String(),
		"engine", q.Engine.String(),
		"latency", time.Since(start),
	)
	return resp, nil
}

// ResetSession asks the server to forget the dialogue with an empty-body POST.
// The locally held session cookies are dropped whether or not the request
// succeeds.
func (c *Client) ResetSession(ctx context.Context, session string) error {
	defer c.dropCookies()

	path := c.resetPath
	if session != "" {
		path += "?session_id=" + url.QueryEscape(session)
	}
	_, err := c.do(ctx, "reset", http.MethodPost, path, http.NoBody)
	return err
}

// Health checks that the service answers its health endpoint with 2xx.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.do(ctx, "health", http.MethodGet, c.healthPath, nil)
	return err
}

func (c *Client) dropCookies() {
	c.jar.clear()
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &diagnosis.TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	if body != nil && body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &diagnosis.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &diagnosis.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &diagnosis.TransportError{Op: op, StatusCode: resp.StatusCode, Err: statusError(data)}
	}
	return data, nil
}

// statusError extracts a server-provided error message, falling back to the
// raw body.
func statusError(body []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return errors.New(payload.Error)
		}
		if payload.Message != "" {
			return errors.New(payload.Message)
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return errors.New("no response body")
	}
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return errors.New(msg)
}
