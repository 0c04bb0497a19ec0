package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"topolens/internal/models"
)

// ErrEngineUnavailable marks transient connectivity failures (connection
// refused, 5xx from the engine's front door). Callers may retry.
var ErrEngineUnavailable = errors.New("engine unavailable")

// QueryError is returned when the engine accepted the connection but
// rejected the specific query. Not retryable.
type QueryError struct {
	Op      string
	Status  int
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("engine rejected %s (status %d): %s", e.Op, e.Status, e.Message)
}

// ParseStatusRow is the engine's per-file parse outcome.
type ParseStatusRow struct {
	FileName   string `json:"fileName"`
	Status     string `json:"status"` // PASSED, FAILED, PARTIALLY_UNRECOGNIZED, ...
	Message    string `json:"message,omitempty"`
	LineNumber *int   `json:"lineNumber,omitempty"`
}

// Passed reports whether the file parsed cleanly.
func (r ParseStatusRow) Passed() bool {
	return r.Status == "PASSED"
}

// NodeRow is one device row from the node-properties query.
type NodeRow struct {
	Hostname     string `json:"hostname"`
	Vendor       string `json:"vendor,omitempty"`
	Model        string `json:"model,omitempty"`
	OSVersion    string `json:"osVersion,omitempty"`
	DeviceType   string `json:"deviceType,omitempty"`
	ConfigFormat string `json:"configFormat,omitempty"`
}

// InterfaceRow is one row from the interface-properties query.
type InterfaceRow struct {
	Hostname    string   `json:"hostname"`
	Name        string   `json:"name"`
	Active      bool     `json:"active"`
	IPAddresses []string `json:"ipAddresses,omitempty"`
	VLAN        *int     `json:"vlan,omitempty"`
	Description string   `json:"description,omitempty"`
	Bandwidth   *int64   `json:"bandwidth,omitempty"`
	MTU         *int     `json:"mtu,omitempty"`
}

// EdgeRow is one row from the layer-3 edges query, as reported by the
// engine: directional and not guaranteed consistent with the node rows.
type EdgeRow struct {
	Hostname        string `json:"hostname"`
	Interface       string `json:"interface"`
	RemoteHostname  string `json:"remoteHostname"`
	RemoteInterface string `json:"remoteInterface"`
	IP              string `json:"ip,omitempty"`
	RemoteIP        string `json:"remoteIp,omitempty"`
}

// Gateway is the narrow client abstraction over the external analysis
// engine. Every call takes a context and honors its cancellation; the
// implementation owns connection reuse and per-call timeouts.
//
// Verification rows are returned raw: their shape depends on the query kind
// and normalization is the orchestrator's concern.
type Gateway interface {
	SubmitConfigs(ctx context.Context, network, snapshot string, files []models.ConfigFile) ([]ParseStatusRow, error)
	NodeProperties(ctx context.Context, network, snapshot string) ([]NodeRow, error)
	InterfaceProperties(ctx context.Context, network, snapshot, nodes string) ([]InterfaceRow, error)
	Layer3Edges(ctx context.Context, network, snapshot string) ([]EdgeRow, error)
	RunVerification(ctx context.Context, network, snapshot string, kind models.QueryType, params map[string]string) ([]json.RawMessage, error)
	DeleteSnapshot(ctx context.Context, network, name string) error
	Status(ctx context.Context) error
}
