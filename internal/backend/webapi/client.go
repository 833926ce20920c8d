// Package webapi implements the service.Service interface against the Rita
// web backend: a Django application authenticated by session cookies and
// protected by CSRF tokens.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"rita/internal/config"
	apperrors "rita/internal/errors"
	"rita/internal/logging"
)

const (
	// APITimeout bounds ordinary API calls.
	APITimeout = 30 * time.Second

	// ChatTimeout bounds a chat call, which waits for the model's answer.
	ChatTimeout = 3 * time.Minute

	// maxBody caps how much of a response is read.
	maxBody = 64 << 20

	csrfCookie      = "csrftoken"
	sessionIDCookie = "sessionid"
	csrfHeader      = "X-CSRFToken"
	csrfField       = "csrfmiddlewaretoken"
	loginPath       = "/login/"
	logoutPath      = "/logout/"
	registerPath    = "/register/"
)

// Client implements service.Service over HTTP.
type Client struct {
	base        *url.URL
	http        *http.Client
	jar         http.CookieJar
	sessionPath string
	logger      *slog.Logger
}

// New creates a client for cfg.BaseURL. Saved session cookies are loaded
// from cfg.SessionPath. When cfg.APIToken is set requests to the backend
// host also carry it as a bearer token.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if err := loadSession(cfg.SessionPath(), jar, base); err != nil {
		return nil, err
	}

	hc := &http.Client{Jar: jar}
	if cfg.APIToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken, TokenType: "Bearer"})
		hc.Transport = &hostTransport{
			host:   base.Host,
			authed: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
			plain:  http.DefaultTransport,
		}
	}

	c := newClient(base, hc, cfg.Log())
	c.sessionPath = cfg.SessionPath()
	return c, nil
}

// hostTransport sends the bearer token only to the backend host. Result
// documents may live on storage hosts that must not see it.
type hostTransport struct {
	host   string
	authed http.RoundTripper
	plain  http.RoundTripper
}

func (t *hostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == t.host {
		return t.authed.RoundTrip(req)
	}
	return t.plain.RoundTrip(req)
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
// Cookies are kept in memory only.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return newClient(base, hc, logger), nil
}

func newClient(base *url.URL, hc *http.Client, logger *slog.Logger) *Client {
	// Redirects are answers here: a redirect to the login page means the
	// session is gone, and a redirect after sign-in means success.
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{base: base, http: hc, jar: hc.Jar, logger: logger}
}

// resolve turns a backend path or absolute URL into a URL.
func (c *Client) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("invalid url %q", ref))
	}
	if u.IsAbs() {
		return u, nil
	}
	return c.base.ResolveReference(u), nil
}

// csrfPages issue the CSRF cookie when rendered. The login page redirects
// signed-in users away, so a page behind the login comes second.
var csrfPages = []string{loginPath, "/web-scraper/"}

// csrfToken returns the CSRF cookie value, fetching a form page to obtain
// it if the jar has none.
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if tok := c.cookie(csrfCookie); tok != "" {
		return tok, nil
	}
	for _, page := range csrfPages {
		req, err := c.newRequest(ctx, http.MethodGet, page, nil, "")
		if err != nil {
			return "", err
		}
		resp, err := c.send(ctx, req)
		if err != nil {
			return "", err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if tok := c.cookie(csrfCookie); tok != "" {
			return tok, nil
		}
	}
	return "", apperrors.New(apperrors.ErrCodeApplication, "server did not issue a CSRF token", nil)
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) newRequest(ctx context.Context, method, ref string, body io.Reader, contentType string) (*http.Request, error) {
	u, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", uuid.NewString())
	// Django checks the Referer of unsafe requests made over HTTPS.
	req.Header.Set("Referer", c.base.String()+"/")
	return req, nil
}

// newUnsafeRequest builds a POST carrying the CSRF header.
func (c *Client) newUnsafeRequest(ctx context.Context, ref string, body io.Reader, contentType string) (*http.Request, error) {
	tok, err := c.csrfToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, ref, body, contentType)
	if err != nil {
		return nil, err
	}
	req.Header.Set(csrfHeader, tok)
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, ref string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.newUnsafeRequest(ctx, ref, bytes.NewReader(data), "application/json")
}

// send performs req and maps transport failures.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "url", req.URL.String(),
			"request_id", req.Header.Get("X-Request-ID"), "error", err)
		return nil, transportError(ctx, err)
	}
	c.logger.Debug("request", "method", req.Method, "url", req.URL.String(),
		"request_id", req.Header.Get("X-Request-ID"), "status", resp.StatusCode,
		"elapsed", time.Since(start))
	c.persist()
	return resp, nil
}

// do sends req and decodes a JSON answer into out (when non-nil).
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	body, err := c.fetch(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.New(apperrors.ErrCodeApplication, "unexpected response from server", err)
	}
	return nil
}

// fetch sends req and returns the body of a successful answer.
func (c *Client) fetch(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if err := checkResponse(resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

// persist saves the cookie jar when the client owns a session file and
// the server has issued a session. A CSRF cookie alone is not a sign-in.
func (c *Client) persist() {
	if c.sessionPath == "" || c.cookie(sessionIDCookie) == "" {
		return
	}
	if err := saveSession(c.sessionPath, c.jar, c.base); err != nil {
		c.logger.Warn("failed to save session", "path", c.sessionPath, "error", err)
	}
}

// envelope is the error shape shared by the backend's JSON views.
type envelope struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e envelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// checkResponse maps an HTTP answer to the error taxonomy.
func checkResponse(resp *http.Response, body []byte) error {
	var env envelope
	isJSON := isJSONResponse(resp) && json.Unmarshal(body, &env) == nil

	switch code := resp.StatusCode; {
	case code >= 300 && code < 400:
		if strings.Contains(resp.Header.Get("Location"), loginPath) {
			return errNotLoggedIn
		}
		return apperrors.Application(fmt.Sprintf("unexpected redirect to %s", resp.Header.Get("Location")))
	case code == http.StatusUnauthorized:
		return errNotLoggedIn
	case code == http.StatusForbidden:
		msg := "permission denied"
		if isJSON && env.text() != "" {
			msg = env.text()
		} else if bytes.Contains(body, []byte("CSRF")) {
			msg = "request rejected by CSRF check (run: rita login)"
		}
		return apperrors.New(apperrors.ErrCodeUnauthorized, msg, nil)
	case code == http.StatusNotFound:
		msg := "not found"
		if isJSON && env.text() != "" {
			msg = env.text()
		}
		return apperrors.New(apperrors.ErrCodeNotFound, msg, nil)
	case code >= 400:
		msg := fmt.Sprintf("server error (HTTP %d)", code)
		if isJSON && env.text() != "" {
			msg = env.text()
		}
		return apperrors.Application(msg)
	}

	if isJSON && env.Error != "" {
		return apperrors.Application(env.Error)
	}
	return nil
}

var errNotLoggedIn = apperrors.New(apperrors.ErrCodeUnauthorized, "not logged in (run: rita login)", nil)

func isJSONResponse(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

// transportError reduces a failed round trip to the taxonomy.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.New(apperrors.ErrCodeTimeout, "request timed out", err)
	}
	return apperrors.New(apperrors.ErrCodeTransport, "cannot reach server", err)
}
