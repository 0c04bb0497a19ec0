package models

import "time"

// Vendor is the closed set of recognised device vendors.
type Vendor string

const (
	VendorCisco    Vendor = "CISCO"
	VendorJuniper  Vendor = "JUNIPER"
	VendorArista   Vendor = "ARISTA"
	VendorPaloAlto Vendor = "PALO_ALTO"
	VendorUnknown  Vendor = "UNKNOWN"
)

// DeviceType classifies a device's role in the network.
type DeviceType string

const (
	DeviceRouter       DeviceType = "ROUTER"
	DeviceSwitch       DeviceType = "SWITCH"
	DeviceFirewall     DeviceType = "FIREWALL"
	DeviceLoadBalancer DeviceType = "LOAD_BALANCER"
	DeviceUnknown      DeviceType = "UNKNOWN"
)

// Interface is a network interface owned by exactly one device.
type Interface struct {
	Hostname    string   `json:"hostname"`
	Name        string   `json:"name"`
	Active      bool     `json:"active"`
	IPAddresses []string `json:"ipAddresses,omitempty"` // CIDR notation
	VLAN        *int     `json:"vlan,omitempty"`
	Description string   `json:"description,omitempty"`
	Bandwidth   *int64   `json:"bandwidth,omitempty"`
	MTU         *int     `json:"mtu,omitempty"`
}

// Device is a network device derived from a COMPLETE snapshot. Hostname is
// unique within a snapshot.
type Device struct {
	Hostname   string      `json:"hostname"`
	Vendor     Vendor      `json:"vendor"`
	DeviceType DeviceType  `json:"deviceType"`
	Model      string      `json:"model,omitempty"`
	OSVersion  string      `json:"osVersion,omitempty"`
	Interfaces []Interface `json:"interfaces"`
}

// Edge is a layer-3 link between two device interfaces. Undirected for
// display, but stored with the lexicographically smaller hostname first so
// the same physical link never appears twice.
type Edge struct {
	SourceDevice    string `json:"sourceDevice"`
	SourceInterface string `json:"sourceInterface"`
	DestDevice      string `json:"destDevice"`
	DestInterface   string `json:"destInterface"`
	SourceIP        string `json:"sourceIp,omitempty"`
	DestIP          string `json:"destIp,omitempty"`
}

// Canonical returns the edge with its endpoints in canonical order.
func (e Edge) Canonical() Edge {
	if e.DestDevice < e.SourceDevice ||
		(e.DestDevice == e.SourceDevice && e.DestInterface < e.SourceInterface) {
		return Edge{
			SourceDevice:    e.DestDevice,
			SourceInterface: e.DestInterface,
			DestDevice:      e.SourceDevice,
			DestInterface:   e.SourceInterface,
			SourceIP:        e.DestIP,
			DestIP:          e.SourceIP,
		}
	}
	return e
}

// Key is the canonical identity of the edge, used for deduplication.
func (e Edge) Key() string {
	c := e.Canonical()
	return c.SourceDevice + ":" + c.SourceInterface + "-" + c.DestDevice + ":" + c.DestInterface
}

// Topology is the device/edge graph for one snapshot.
type Topology struct {
	Devices []Device `json:"devices"`
	Edges   []Edge   `json:"edges"`
}

// DeviceDetail is a single device with its interfaces plus the snapshot
// metadata it was derived from.
type DeviceDetail struct {
	Device       Device    `json:"device"`
	SnapshotName string    `json:"snapshotName"`
	Network      string    `json:"network"`
	LastUpdated  time.Time `json:"lastUpdated"`
}
