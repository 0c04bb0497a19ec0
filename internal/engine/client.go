package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"topolens/internal/models"
)

const tracerName = "topolens/internal/engine"

// Client talks to the analysis engine over its HTTP JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
}

// NewClient builds an engine client. timeout bounds each individual call;
// the underlying transport is shared and pooled across all callers.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		tracer:     otel.Tracer(tracerName),
	}
}

func (c *Client) SubmitConfigs(ctx context.Context, network, snapshot string, files []models.ConfigFile) ([]ParseStatusRow, error) {
	body := struct {
		Files []models.ConfigFile `json:"files"`
	}{Files: files}
	var out struct {
		ParseStatus []ParseStatusRow `json:"parseStatus"`
	}
	path := fmt.Sprintf("/v1/networks/%s/snapshots/%s", url.PathEscape(network), url.PathEscape(snapshot))
	if err := c.do(ctx, "submit-configs", http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.ParseStatus, nil
}

func (c *Client) NodeProperties(ctx context.Context, network, snapshot string) ([]NodeRow, error) {
	var out struct {
		Rows []NodeRow `json:"rows"`
	}
	path := fmt.Sprintf("/v1/networks/%s/snapshots/%s/nodes", url.PathEscape(network), url.PathEscape(snapshot))
	if err := c.do(ctx, "node-properties", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) InterfaceProperties(ctx context.Context, network, snapshot, nodes string) ([]InterfaceRow, error) {
	var out struct {
		Rows []InterfaceRow `json:"rows"`
	}
	path := fmt.Sprintf("/v1/networks/%s/snapshots/%s/interfaces", url.PathEscape(network), url.PathEscape(snapshot))
	if nodes != "" {
		path += "?nodes=" + url.QueryEscape(nodes)
	}
	if err := c.do(ctx, "interface-properties", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) Layer3Edges(ctx context.Context, network, snapshot string) ([]EdgeRow, error) {
	var out struct {
		Rows []EdgeRow `json:"rows"`
	}
	path := fmt.Sprintf("/v1/networks/%s/snapshots/%s/edges/layer3", url.PathEscape(network), url.PathEscape(snapshot))
	if err := c.do(ctx, "layer3-edges", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) RunVerification(ctx context.Context, network, snapshot string, kind models.QueryType, params map[string]string) ([]json.RawMessage, error) {
	body := struct {
		Kind   string            `json:"kind"`
		Params map[string]string `json:"params"`
	}{Kind: string(kind), Params: params}
	var out struct {
		Rows []json.RawMessage `json:"rows"`
	}
	path := fmt.Sprintf("/v1/networks/%s/snapshots/%s/verify", url.PathEscape(network), url.PathEscape(snapshot))
	if err := c.do(ctx, "run-verification", http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) DeleteSnapshot(ctx context.Context, network, name string) error {
	path := fmt.Sprintf("/v1/networks/%s/snapshots/%s", url.PathEscape(network), url.PathEscape(name))
	return c.do(ctx, "delete-snapshot", http.MethodDelete, path, nil, nil)
}

func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, "status", http.MethodGet, "/v1/status", nil, nil)
}

// do executes one engine call: per-call timeout, tracing span, JSON
// round-trip, and error classification per the transient/permanent split.
func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "engine."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("engine.op", op)))
	defer span.End()

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			// caller cancellation or per-call timeout, not an engine fault
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		span.SetStatus(codes.Error, msg)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s: %s (%s)", ErrEngineUnavailable, op, resp.Status, msg)
		}
		return &QueryError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return &QueryError{Op: op, Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(data))
}
