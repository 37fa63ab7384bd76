package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/testme/tcm-e2e/internal/config"
	"github.com/testme/tcm-e2e/internal/logging"
)

// Application endpoints used by the HTTP client
const (
	LoginPath       = "/login/"
	NewTestCasePath = "/test/new"
)

const (
	csrfFormField  = "csrfmiddlewaretoken"
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
	maxErrorBody   = 512
)

// csrfTokenPattern matches the hidden anti-forgery field rendered into every
// form. It depends on the attribute order the application renders; when the
// markup changes, requests fail with ErrTokenNotFound.
var csrfTokenPattern = regexp.MustCompile(`name="csrfmiddlewaretoken" value="(.+?)"`)

// Client errors
var (
	ErrTokenNotFound = errors.New("CSRF token not found")
	ErrLoginRejected = errors.New("login rejected")
)

// StatusError is returned for every non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// TCMClient talks to the application's HTTP endpoints
type TCMClient interface {
	Login(ctx context.Context, username, password string) error
	CreateTestCase(ctx context.Context, name, description string) error
	Close()
}

// HTTPTCMClient implements TCMClient over one cookie-carrying session
type HTTPTCMClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	csrfToken  string
	logger     *zap.Logger
}

// NewTCMClient creates a client for the configured base URL
func NewTCMClient(cfg config.Settings, logger *zap.Logger) (*HTTPTCMClient, error) {
	if err := cfg.RequireBaseURL(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	return &HTTPTCMClient{
		baseURL: base,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		logger: logging.OrNop(logger).Named("tcm-client"),
	}, nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// Login performs the token handshake: fetch the login form token, submit the
// credentials, then keep the rotated CSRF cookie as a header for later
// mutating requests
func (c *HTTPTCMClient) Login(ctx context.Context, username, password string) error {
	token, err := c.fetchToken(ctx, LoginPath)
	if err != nil {
		return err
	}

	form := url.Values{
		"username":    {username},
		"password":    {password},
		csrfFormField: {token},
	}
	resp, err := c.postForm(ctx, LoginPath, form)
	if err != nil {
		return err
	}

	// A rejected login re-renders the form instead of redirecting away
	if resp.finalPath == c.endpoint(LoginPath).Path {
		c.logger.Warn("Login rejected", zap.String("username", username))
		return fmt.Errorf("%w for user %q", ErrLoginRejected, username)
	}

	if token := c.cookie(csrfCookieName); token != "" {
		c.csrfToken = token
	}

	c.logger.Info("Logged in", zap.String("username", username))
	return nil
}

// CreateTestCase submits the new test case form
func (c *HTTPTCMClient) CreateTestCase(ctx context.Context, name, description string) error {
	token, err := c.fetchToken(ctx, NewTestCasePath)
	if err != nil {
		return err
	}

	form := url.Values{
		"name":        {name},
		"description": {description},
		csrfFormField: {token},
	}
	if _, err := c.postForm(ctx, NewTestCasePath, form); err != nil {
		return err
	}

	c.logger.Info("Test case created", zap.String("name", name))
	return nil
}

// Close drops the session and idle connections
func (c *HTTPTCMClient) Close() {
	c.httpClient.CloseIdleConnections()
	if jar, err := newJar(); err == nil {
		c.httpClient.Jar = jar
	}
	c.csrfToken = ""
}

type response struct {
	body      string
	finalPath string
}

// fetchToken loads a form page and extracts its anti-forgery token
func (c *HTTPTCMClient) fetchToken(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path).String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}

	match := csrfTokenPattern.FindStringSubmatch(resp.body)
	if match == nil {
		return "", fmt.Errorf("%w on %s", ErrTokenNotFound, path)
	}
	return match[1], nil
}

func (c *HTTPTCMClient) postForm(ctx context.Context, path string, form url.Values) (*response, error) {
	target := c.endpoint(path).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", target)
	if c.csrfToken != "" {
		req.Header.Set(csrfHeaderName, c.csrfToken)
	}

	return c.do(req)
}

func (c *HTTPTCMClient) do(req *http.Request) (*response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Response received",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(body)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       text,
		}
	}

	return &response{
		body:      string(body),
		finalPath: resp.Request.URL.Path,
	}, nil
}

func (c *HTTPTCMClient) endpoint(path string) *url.URL {
	return c.baseURL.JoinPath(path)
}

func (c *HTTPTCMClient) cookie(name string) string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
