// Package gateway is the HTTP client for the remote conciliation service:
// file upload, conciliation, CSV export and authentication.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"receivables-conciliation-backend/internal/conciliation"
)

const (
	uploadPath     = "/api/v1/instant/upload"
	conciliatePath = "/api/v1/instant/conciliate"
	exportPath     = "/api/v1/instant/export"
	registerPath   = "/api/v1/auth/register"
	loginPath      = "/api/v1/auth/login"
	mePath         = "/api/v1/auth/me"

	defaultTimeout = 60 * time.Second

	// error bodies larger than this are truncated before parsing
	maxErrorBody = 64 << 10
)

var ErrNotConfigured = errors.New("gateway base URL not configured")

type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the pooled default, mostly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base URL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = cfg.Timeout
		if httpClient.Timeout <= 0 {
			httpClient.Timeout = defaultTimeout
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger.With("component", "gateway"),
	}, nil
}

// Upload posts file as multipart form data. An empty sessionToken asks the
// service to open a new session.
func (c *Client) Upload(ctx context.Context, file conciliation.File, sessionToken string) (*conciliation.UploadResult, error) {
	if file.Content == nil {
		return nil, fmt.Errorf("upload %q: no content", file.Name)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", file.Name, err)
	}
	if sessionToken != "" {
		if err := mw.WriteField("session_token", sessionToken); err != nil {
			return nil, fmt.Errorf("failed to write session token: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res conciliation.UploadResult
	if err := c.do(req, "upload", &res); err != nil {
		return nil, err
	}
	c.logger.Debug("file uploaded",
		"file", file.Name,
		"receivables", res.Summary.ReceivablesCount,
		"payments", res.Summary.PaymentsCount,
		"row_errors", len(res.Summary.Errors),
	)
	return &res, nil
}

func (c *Client) Conciliate(ctx context.Context, sessionToken string) (*conciliation.Result, error) {
	endpoint := c.baseURL + conciliatePath + "?" + url.Values{"session_token": {sessionToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var res conciliation.Result
	if err := c.do(req, "conciliate", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ExportURL is the address a browser can download the CSV export from.
func (c *Client) ExportURL(sessionToken string) string {
	return c.baseURL + exportPath + "?" + url.Values{"session_token": {sessionToken}}.Encode()
}

// Export streams the CSV export into w.
func (c *Client) Export(ctx context.Context, sessionToken string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ExportURL(sessionToken), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.send(req, "export")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("export: failed to read body: %w", err)
	}
	return n, nil
}

func (c *Client) Register(ctx context.Context, reg conciliation.Registration) (*conciliation.AuthResult, error) {
	var res conciliation.AuthResult
	if err := c.postJSON(ctx, registerPath, "register", reg, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, creds conciliation.Credentials) (*conciliation.AuthResult, error) {
	var res conciliation.AuthResult
	if err := c.postJSON(ctx, loginPath, "login", creds, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Me fetches the user the bearer token belongs to.
func (c *Client) Me(ctx context.Context, authToken string) (*conciliation.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+mePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)

	var user conciliation.User
	if err := c.do(req, "me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) postJSON(ctx context.Context, path, op string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

// do sends req and decodes a successful JSON response into out.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.send(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s response: %v", conciliation.ErrInvalidPayload, op, err)
	}
	return nil
}

// send performs req and turns transport failures and non-2xx responses into
// a *conciliation.GatewayError. The caller owns the body on success.
func (c *Client) send(req *http.Request, op string) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gateway unreachable", "op", op, "error", err)
		return nil, &conciliation.GatewayError{Op: op, Message: conciliation.MsgServiceUnreachable, Err: err}
	}
	c.logger.Debug("gateway call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &conciliation.GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    conciliation.ExtractErrorMessage(body),
		}
	}
	return resp, nil
}
