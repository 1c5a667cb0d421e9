package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civic-reporting-api/internal/models"
)

// Client is the HTTP implementation of Classifier.
type Client struct {
	cfg    Config
	http   *http.Client
	hooks  []Hook
	tracer trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithHooks registers callbacks invoked after every remote call.
func WithHooks(hooks ...Hook) Option {
	return func(c *Client) { c.hooks = append(c.hooks, hooks...) }
}

func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tracer: otel.Tracer("civic-reporting-api/classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ClassifyProblem(ctx context.Context, description string, loc models.Location) (*Classification, error) {
	body := map[string]string{
		"problem":  description,
		"location": FormatLocation(loc),
	}
	var out Classification
	if err := c.post(ctx, OpClassify, c.cfg.ClassifyPath, body, &out); err != nil {
		return nil, err
	}
	out.Category = models.NormalizeCategory(string(out.Category))
	return &out, nil
}

func (c *Client) AllocateTokens(ctx context.Context, cl Classification) (*Allocation, error) {
	body := map[string]any{
		"category":              cl.Category,
		"severityScore":         cl.SeverityScore,
		"environmentalPriority": cl.EnvironmentalPriority,
	}
	var out Allocation
	if err := c.post(ctx, OpAllocate, c.cfg.AllocatePath, body, &out); err != nil {
		return nil, err
	}
	if out.OneCreditsToAllocate < 0 {
		return nil, &CallError{Op: OpAllocate, Outcome: OutcomeDecode, Err: errors.New("negative credit allocation")}
	}
	return &out, nil
}

func (c *Client) SelectBid(ctx context.Context, req BidSelectionRequest) (*BidSelection, error) {
	var out BidSelection
	if err := c.post(ctx, OpSelectBid, c.cfg.SelectBidPath, req, &out); err != nil {
		return nil, err
	}
	if out.SelectedBidID == "" {
		return nil, &CallError{Op: OpSelectBid, Outcome: OutcomeDecode, Err: errors.New("response has no selectedBidId")}
	}
	return &out, nil
}

func (c *Client) ComputeHeatmap(ctx context.Context, bounds *models.Bounds) (json.RawMessage, error) {
	body := map[string]any{"bounds": bounds}
	var out json.RawMessage
	if err := c.post(ctx, OpHeatmap, c.cfg.HeatmapPath, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, op Op, path string, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "classifier."+string(op), trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	status := 0
	defer func() {
		info := CallInfo{Op: op, Outcome: OutcomeOf(err), Duration: time.Since(start), StatusCode: status, Err: err}
		span.SetAttributes(
			attribute.String("classifier.op", string(op)),
			attribute.String("classifier.outcome", string(info.Outcome)),
			attribute.Int("http.status_code", status),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(info.Outcome))
		}
		span.End()
		for _, h := range c.hooks {
			h(ctx, info)
		}
	}()

	if c.cfg.BaseURL == "" {
		return &CallError{Op: op, Outcome: OutcomeTransport, Err: ErrNotConfigured}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return &CallError{Op: op, Outcome: OutcomeTransport, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &CallError{Op: op, Outcome: OutcomeTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &CallError{Op: op, Outcome: OutcomeTimeout, Err: err}
		}
		return &CallError{Op: op, Outcome: OutcomeTransport, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return &CallError{Op: op, Outcome: OutcomeTimeout, StatusCode: status, Err: err}
		}
		return &CallError{Op: op, Outcome: OutcomeTransport, StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		return &CallError{Op: op, Outcome: OutcomeStatus, StatusCode: status, Err: fmt.Errorf("unexpected response: %s", snippet(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &CallError{Op: op, Outcome: OutcomeDecode, StatusCode: status, Err: err}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
