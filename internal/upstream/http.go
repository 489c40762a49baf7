package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"whitepaper-console/internal/shared/metrics"
)

// Responses larger than this are treated as malformed. Reports are a few KB;
// anything bigger is the pipeline misbehaving.
const maxResponseBytes = 4 << 20

type ctxKey int

const callerTokenKey ctxKey = iota

// WithCallerToken makes requests under ctx authenticate with the caller's
// own bearer token instead of the service credential, so the pipeline sees
// the end user's identity.
func WithCallerToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, callerTokenKey, token)
}

func callerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(callerTokenKey).(string)
	return token, ok && token != ""
}

// Options configures the HTTP pipeline client.
type Options struct {
	// Tokens supplies the service credential. Nil leaves requests without a
	// credential unless the context carries a caller token.
	Tokens  oauth2.TokenSource
	RPS     float64
	Burst   int
	Timeout time.Duration
}

// Client talks to the pipeline over HTTP. A token-bucket limiter smooths the
// request rate so many concurrent poll loops cannot stampede the pipeline.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
}

// NewClient constructs a pipeline client for the given base URL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     opts.Tokens,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

func (c *Client) SubmitDocument(ctx context.Context, fileName string, data []byte) (Submission, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return Submission{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Submission{}, err
	}
	if err := form.Close(); err != nil {
		return Submission{}, err
	}

	var reply Submission
	if err := c.do(ctx, http.MethodPost, "/api/documents/upload", &buf, form.FormDataContentType(), &reply); err != nil {
		return Submission{}, err
	}
	return reply, nil
}

func (c *Client) SubmitDocumentURL(ctx context.Context, sourceURL string) (Submission, error) {
	body, err := json.Marshal(map[string]string{"url": sourceURL})
	if err != nil {
		return Submission{}, err
	}
	var reply Submission
	if err := c.do(ctx, http.MethodPost, "/api/documents/from-url", bytes.NewReader(body), "application/json", &reply); err != nil {
		return Submission{}, err
	}
	return reply, nil
}

func (c *Client) DocumentStatus(ctx context.Context, documentID string) (DocumentStatus, error) {
	var reply DocumentStatus
	path := "/api/documents/" + url.PathEscape(documentID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, "", &reply); err != nil {
		return DocumentStatus{}, err
	}
	return reply, nil
}

func (c *Client) GenerateAnalysis(ctx context.Context, documentID string) (AnalysisStatus, error) {
	body, err := json.Marshal(map[string]string{"document_id": documentID})
	if err != nil {
		return AnalysisStatus{}, err
	}
	var reply AnalysisStatus
	if err := c.do(ctx, http.MethodPost, "/api/qa/analysis/generate", bytes.NewReader(body), "application/json", &reply); err != nil {
		return AnalysisStatus{}, err
	}
	return reply, nil
}

func (c *Client) Analysis(ctx context.Context, documentID string) (AnalysisStatus, error) {
	var reply AnalysisStatus
	path := "/api/qa/analysis/" + url.PathEscape(documentID)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &reply); err != nil {
		return AnalysisStatus{}, err
	}
	return reply, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	var reply struct {
		Documents []DocumentSummary `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/documents", nil, "", &reply); err != nil {
		return nil, err
	}
	return reply.Documents, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	path := "/api/documents/" + url.PathEscape(documentID)
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	started := metrics.NowMillis()
	resp, err := c.httpClient.Do(req)
	metrics.IncUpstreamRequest()
	metrics.ObserveUpstreamDurationMs(metrics.NowMillis() - started)
	if err != nil {
		metrics.IncUpstreamError()
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return fmt.Errorf("pipeline request timeout: %w", err)
		}
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.IncUpstreamError()
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncUpstreamError()
		return &Error{StatusCode: resp.StatusCode, Detail: decodeDetail(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pipeline response parse: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if token, ok := callerTokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("pipeline credential: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

var _ Pipeline = (*Client)(nil)
