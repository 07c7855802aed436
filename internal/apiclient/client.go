// Package apiclient talks to the remote transcription and analysis service.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"meeting-analyzer/internal/domain"
	xlog "meeting-analyzer/internal/log"
)

const (
	opSubmit = "submit"
	opExport = "export"
	opHealth = "health"

	maxErrorBody = 64 << 10
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// ProgressFunc receives cumulative bytes handed to the transport out of the
// total request body size. sent == total only once the body is fully written.
type ProgressFunc func(sent, total int64)

// Document is an exported file relayed as-is from the service.
type Document struct {
	Data        []byte
	ContentType string
	FileName    string
}

// ServiceStatus is the advisory result of a health check.
type ServiceStatus struct {
	Reachable  bool           `json:"reachable"`
	HTTPStatus int            `json:"httpStatus"`
	Status     string         `json:"status,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Client issues requests against one analysis service base URL.
type Client struct {
	base   string
	http   *http.Client
	tracer trace.TracerProvider
	log    zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTracerProvider records request spans with tp instead of the global
// provider. It has no effect together with WithHTTPClient.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the service at base. No request timeout is set;
// a stalled transfer surfaces through the transport's own failure.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		log:  xlog.WithComponent("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: c.instrumentedTransport()}
	}
	return c
}

// instrumentedTransport wraps the default transport with otelhttp spans named
// after the service endpoint, e.g. "analysis POST /api/transcribe".
func (c *Client) instrumentedTransport() http.RoundTripper {
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "analysis " + r.Method + " " + r.URL.Path
		}),
	}
	if c.tracer != nil {
		opts = append(opts, otelhttp.WithTracerProvider(c.tracer))
	}
	return otelhttp.NewTransport(http.DefaultTransport, opts...)
}

// BaseURL returns the normalized service base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// SubmitForAnalysis uploads the submission as multipart form data and returns
// the structured analysis. The payload is not retained after return.
func (c *Client) SubmitForAnalysis(ctx context.Context, sub domain.AudioSubmission, onProgress ProgressFunc) (domain.AnalysisResult, error) {
	if len(sub.Payload) == 0 {
		return domain.AnalysisResult{}, clientError(opSubmit, "Audio file is required")
	}
	format, ok := sub.ResolvedFormat()
	if !ok {
		return domain.AnalysisResult{}, clientError(opSubmit, "Unsupported audio format. Only MP3 and WAV are supported.")
	}

	body, contentType, err := buildMultipart(sub, format)
	if err != nil {
		return domain.AnalysisResult{}, clientError(opSubmit, fmt.Sprintf("build upload body: %v", err))
	}

	endpoint := c.base + "/api/transcribe"
	if code := sub.Language.QueryCode(); code != "" {
		endpoint += "?" + url.Values{"language": {code}}.Encode()
	}

	total := int64(len(body))
	newBody := func() io.ReadCloser {
		return io.NopCloser(&progressReader{r: bytes.NewReader(body), total: total, onProgress: onProgress})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, newBody())
	if err != nil {
		return domain.AnalysisResult{}, clientError(opSubmit, fmt.Sprintf("build request: %v", err))
	}
	// The transport rewinds through GetBody on redirects and connection retries.
	req.GetBody = func() (io.ReadCloser, error) { return newBody(), nil }
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.log.Debug().
		Str(xlog.FieldOperation, opSubmit).
		Str(xlog.FieldFileName, sub.FileName).
		Int64(xlog.FieldBytes, total).
		Msg("submitting audio for analysis")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str(xlog.FieldOperation, opSubmit).Msg("no response from analysis service")
		return domain.AnalysisResult{}, unreachableError(opSubmit, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(opSubmit, resp); err != nil {
		return domain.AnalysisResult{}, err
	}

	result, err := decodeAnalysis(resp.Body)
	if err != nil {
		return domain.AnalysisResult{}, serverError(opSubmit, resp.StatusCode, err.Error(), err)
	}
	return result, nil
}

// ExportResult asks the service to render result as a downloadable document.
func (c *Client) ExportResult(ctx context.Context, result domain.AnalysisResult) (Document, error) {
	if strings.TrimSpace(result.Transcription) == "" {
		return Document{}, clientError(opExport, "Nothing to export: transcription is empty")
	}

	payload, err := json.Marshal(result.Normalize())
	if err != nil {
		return Document{}, clientError(opExport, fmt.Sprintf("encode result: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/export", bytes.NewReader(payload))
	if err != nil {
		return Document{}, clientError(opExport, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str(xlog.FieldOperation, opExport).Msg("no response from analysis service")
		return Document{}, unreachableError(opExport, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(opExport, resp); err != nil {
		return Document{}, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, unreachableError(opExport, err)
	}
	if len(data) == 0 {
		return Document{}, serverError(opExport, resp.StatusCode, "Export returned an empty document", nil)
	}

	return Document{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		FileName:    attachmentName(resp.Header.Get("Content-Disposition")),
	}, nil
}

// HealthCheck checks the service. It is advisory and never gates submissions.
func (c *Client) HealthCheck(ctx context.Context) (ServiceStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return ServiceStatus{}, clientError(opHealth, fmt.Sprintf("build request: %v", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ServiceStatus{}, unreachableError(opHealth, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(opHealth, resp); err != nil {
		return ServiceStatus{Reachable: true, HTTPStatus: resp.StatusCode}, err
	}

	status := ServiceStatus{Reachable: true, HTTPStatus: resp.StatusCode, Status: "ok"}
	var details map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&details); err == nil {
		status.Details = details
		if s, ok := details["status"].(string); ok && s != "" {
			status.Status = s
		}
	}
	return status, nil
}

// checkStatus maps non-2xx responses to a server error with the remote message.
func (c *Client) checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := errorMessage(raw)
	c.log.Warn().
		Str(xlog.FieldOperation, op).
		Int(xlog.FieldStatus, resp.StatusCode).
		Str("detail", message).
		Msg("analysis service rejected request")
	return serverError(op, resp.StatusCode, message, nil)
}

// errorMessage extracts "detail" or "message" from an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	if len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil && detail != "" {
			return detail
		}
		// FastAPI validation errors: [{"loc": [...], "msg": "...", "type": "..."}]
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(body.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return body.Message
}

// decodeAnalysis validates the required fields and defaults the rest.
func decodeAnalysis(r io.Reader) (domain.AnalysisResult, error) {
	var payload struct {
		Transcription *string             `json:"transcription"`
		Summary       *string             `json:"summary"`
		Participants  []string            `json:"participants"`
		Decisions     []string            `json:"decisions"`
		ActionItems   []domain.ActionItem `json:"action_items"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("malformed analysis response: %w", err)
	}
	if payload.Transcription == nil {
		return domain.AnalysisResult{}, errors.New("malformed analysis response: missing transcription")
	}
	if payload.Summary == nil {
		return domain.AnalysisResult{}, errors.New("malformed analysis response: missing summary")
	}

	return domain.AnalysisResult{
		Transcription: *payload.Transcription,
		Summary:       *payload.Summary,
		Participants:  payload.Participants,
		Decisions:     payload.Decisions,
		ActionItems:   payload.ActionItems,
	}.Normalize(), nil
}

// buildMultipart encodes the payload as the "file" form field.
func buildMultipart(sub domain.AudioSubmission, format domain.AudioFormat) ([]byte, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := strings.TrimSpace(sub.FileName)
	if name == "" {
		name = "recording." + string(format)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	header.Set("Content-Type", format.ContentType())

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Payload); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

// attachmentName returns the filename parameter of a Content-Disposition header.
func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// progressReader reports cumulative bytes as the transport consumes the body.
type progressReader struct {
	r          io.Reader
	sent       int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}
