package models

import "time"

// SnapshotStatus is the lifecycle state of a snapshot.
type SnapshotStatus string

const (
	SnapshotCreating SnapshotStatus = "CREATING"
	SnapshotComplete SnapshotStatus = "COMPLETE"
	SnapshotFailed   SnapshotStatus = "FAILED"
	SnapshotDeleted  SnapshotStatus = "DELETED"
)

// Terminal reports whether no further transition is permitted out of s,
// other than logical deletion of a COMPLETE snapshot.
func (s SnapshotStatus) Terminal() bool {
	return s == SnapshotComplete || s == SnapshotFailed || s == SnapshotDeleted
}

// ParseError describes a single configuration file the engine could not
// (fully) parse. A snapshot can carry parse errors and still be COMPLETE.
type ParseError struct {
	FileName   string `json:"fileName"`
	Message    string `json:"message"`
	LineNumber *int   `json:"lineNumber,omitempty"`
}

// ConfigFile is one uploaded device configuration. Content is handed to the
// analysis engine and never persisted by this core.
type ConfigFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// Snapshot is the record of one analysis run over a set of configuration
// files, keyed by (network, name). Immutable once COMPLETE except for
// deletion. Shared between the registry and storage layers.
type Snapshot struct {
	Network         string         `json:"network"`
	Name            string         `json:"name"`
	Status          SnapshotStatus `json:"status"`
	ConfigFileCount int            `json:"configFileCount"`
	DeviceCount     int            `json:"deviceCount"`
	ParseErrors     []ParseError   `json:"parseErrors"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// Key returns the storage key for the snapshot.
func (s *Snapshot) Key() string {
	return SnapshotKey(s.Network, s.Name)
}

// SnapshotKey builds the registry key for a (network, name) pair.
func SnapshotKey(network, name string) string {
	return network + "/" + name
}
