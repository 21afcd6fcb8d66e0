// Package client talks to the CrossRef deposit and submission status endpoints.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/tracing"
)

// CrossRef API endpoints.
const (
	DepositURL         = "https://api.crossref.org/v2/deposits"
	DepositTestURL     = "https://test.crossref.org/v2/deposits"
	StatusURL          = "https://api.crossref.org/servlet/submissionDownload"
	StatusTestURL      = "https://test.crossref.org/servlet/submissionDownload"
	depositOperation   = "doMDUpload"
	statusResultType   = "result"
	maxResponseBodyLen = 10 << 20
)

// Endpoints is the pair of URLs used for one tenant.
type Endpoints struct {
	Deposit string
	Status  string
}

// EndpointsFor returns the sandbox endpoints in test mode and the production ones otherwise.
func EndpointsFor(testMode bool) Endpoints {
	if testMode {
		return Endpoints{Deposit: DepositTestURL, Status: StatusTestURL}
	}
	return Endpoints{Deposit: DepositURL, Status: StatusURL}
}

// Response is what CrossRef answered to a deposit. Any HTTP status is reported here;
// classifying it is left to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client submits deposit payloads and queries submission results.
type Client struct {
	http      *http.Client
	userAgent string
	tracer    trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a Client with transport settings from cfg.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		http:      newHTTPClient(cfg),
		userAgent: cfg.UserAgent,
		tracer:    tracing.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deposit uploads the payload file as a single multipart request with the
// operation, usr, pwd and mdFile fields. One call deposits exactly one file.
//
// Transport failures return a *domain.NoResponseError. Every HTTP answer, including
// non-200 ones, is returned as a Response.
func (c *Client) Deposit(ctx context.Context, payloadPath string, creds domain.Credentials, endpoint string) (Response, error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanDepositCall, trace.WithAttributes(
		attribute.String(tracing.AttrEndpoint, endpoint),
		attribute.Bool(tracing.AttrTestMode, creds.TestMode),
	))
	defer span.End()

	body, contentType, err := multipartBody(payloadPath, creds)
	if err != nil {
		// The payload was written by us moments ago; failing to read it is a storage problem.
		err = &domain.StorageError{Op: "read", Path: payloadPath, Err: err}
		tracing.RecordError(span, err)
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("build deposit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return Response{}, err
	}

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatus, resp.StatusCode))
	log.Debug(log.CatHTTP, "Deposit answered", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(resp.Body))
	return resp, nil
}

// QueryStatus fetches the submission result for a batch id and returns the raw body.
// Transport failures return a *domain.NoResponseError.
func (c *Client) QueryStatus(ctx context.Context, batchID string, creds domain.Credentials, endpoint string) (string, error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanStatusQuery, trace.WithAttributes(
		attribute.String(tracing.AttrEndpoint, endpoint),
		attribute.String(tracing.AttrBatchID, batchID),
	))
	defer span.End()

	form := url.Values{}
	form.Set("doi_batch_id", batchID)
	form.Set("type", statusResultType)
	form.Set("usr", creds.Username)
	form.Set("pwd", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatus, resp.StatusCode))
	return string(resp.Body), nil
}

func (c *Client) do(req *http.Request) (Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn(log.CatHTTP, "No response from CrossRef", "url", req.URL.String(), "error", err)
		return Response{}, &domain.NoResponseError{Endpoint: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen))
	if err != nil {
		log.Warn(log.CatHTTP, "Reading CrossRef response failed", "url", req.URL.String(), "error", err)
		return Response{}, &domain.NoResponseError{Endpoint: req.URL.String(), Err: err}
	}
	if body == nil {
		body = []byte{}
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func multipartBody(payloadPath string, creds domain.Credentials) (*bytes.Buffer, string, error) {
	payload, err := os.ReadFile(payloadPath) // #nosec G304 -- path comes from the export file store
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"operation", depositOperation},
		{"usr", creds.Username},
		{"pwd", creds.Password},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("mdFile", filepath.Base(payloadPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
