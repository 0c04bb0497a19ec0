package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeCanonicalOrdersByHostname(t *testing.T) {
	edge := Edge{
		SourceDevice:    "router-b",
		SourceInterface: "ge-0/0/0",
		DestDevice:      "router-a",
		DestInterface:   "Gi0/0",
		SourceIP:        "10.0.0.2",
		DestIP:          "10.0.0.1",
	}
	c := edge.Canonical()
	assert.Equal(t, "router-a", c.SourceDevice)
	assert.Equal(t, "Gi0/0", c.SourceInterface)
	assert.Equal(t, "router-b", c.DestDevice)
	assert.Equal(t, "10.0.0.1", c.SourceIP)
	assert.Equal(t, "10.0.0.2", c.DestIP)

	// already canonical edges are untouched
	assert.Equal(t, c, c.Canonical())
}

func TestEdgeKeyIsDirectionInvariant(t *testing.T) {
	forward := Edge{SourceDevice: "a", SourceInterface: "e1", DestDevice: "b", DestInterface: "e2"}
	reverse := Edge{SourceDevice: "b", SourceInterface: "e2", DestDevice: "a", DestInterface: "e1"}
	assert.Equal(t, forward.Key(), reverse.Key())
}

func TestSnapshotStatusTerminal(t *testing.T) {
	assert.False(t, SnapshotCreating.Terminal())
	assert.True(t, SnapshotComplete.Terminal())
	assert.True(t, SnapshotFailed.Terminal())
	assert.True(t, SnapshotDeleted.Terminal())
}

func TestQueryTypeValid(t *testing.T) {
	assert.True(t, QueryReachability.Valid())
	assert.True(t, QueryACLFilter.Valid())
	assert.True(t, QueryRouting.Valid())
	assert.False(t, QueryType("TRACEROUTE").Valid())
	assert.False(t, QueryType("").Valid())
}
