package topology

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"topolens/internal/config"
	"topolens/internal/engine"
	"topolens/internal/metrics"
	"topolens/internal/models"
	"topolens/internal/registry"
)

// Aggregator joins the engine's node, interface, and edge result sets into
// one consistent topology graph. It is read-only and caches nothing: every
// call recomputes from fresh query results.
type Aggregator struct {
	gateway  engine.Gateway
	registry *registry.Registry
	rules    []typeRule
	log      *zap.Logger
}

func New(gateway engine.Gateway, reg *registry.Registry, cfg config.TopologyConfig, log *zap.Logger) *Aggregator {
	return &Aggregator{
		gateway:  gateway,
		registry: reg,
		rules:    compileRules(cfg.DeviceTypeRules),
		log:      log,
	}
}

// Topology returns the device/edge graph for a COMPLETE snapshot. The three
// engine queries run in parallel; any failure surfaces as-is and no partial
// graph is constructed. Dangling references between the result sets are
// dropped and logged, never surfaced.
func (a *Aggregator) Topology(ctx context.Context, network, snapshot string) (*models.Topology, error) {
	if _, err := a.registry.RequireComplete(ctx, network, snapshot); err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		nodes     []engine.NodeRow
		ifaces    []engine.InterfaceRow
		edges     []engine.EdgeRow
		nodesErr  error
		ifacesErr error
		edgesErr  error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		nodes, nodesErr = a.gateway.NodeProperties(ctx, network, snapshot)
	}()
	go func() {
		defer wg.Done()
		ifaces, ifacesErr = a.gateway.InterfaceProperties(ctx, network, snapshot, "")
	}()
	go func() {
		defer wg.Done()
		edges, edgesErr = a.gateway.Layer3Edges(ctx, network, snapshot)
	}()
	wg.Wait()

	for _, err := range []error{nodesErr, ifacesErr, edgesErr} {
		if err != nil {
			metrics.TopologyAggregations.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	topo := a.join(network, snapshot, nodes, ifaces, edges)
	metrics.TopologyAggregations.WithLabelValues("ok").Inc()
	return topo, nil
}

// join is the pure aggregation over the three result sets.
func (a *Aggregator) join(network, snapshot string, nodes []engine.NodeRow, ifaces []engine.InterfaceRow, edges []engine.EdgeRow) *models.Topology {
	log := a.log.With(zap.String("network", network), zap.String("snapshot", snapshot))

	byHost := make(map[string]*models.Device, len(nodes))
	order := make([]string, 0, len(nodes))
	rowByHost := make(map[string]engine.NodeRow, len(nodes))
	for _, row := range nodes {
		if row.Hostname == "" || byHost[row.Hostname] != nil {
			continue
		}
		byHost[row.Hostname] = &models.Device{
			Hostname:   row.Hostname,
			Vendor:     extractVendor(row),
			Model:      row.Model,
			OSVersion:  row.OSVersion,
			Interfaces: []models.Interface{},
		}
		rowByHost[row.Hostname] = row
		order = append(order, row.Hostname)
	}

	for _, row := range ifaces {
		dev, ok := byHost[row.Hostname]
		if !ok {
			// the three result sets are not guaranteed referentially
			// consistent by the engine
			log.Warn("dropping interface for unknown device",
				zap.String("hostname", row.Hostname), zap.String("interface", row.Name))
			continue
		}
		dev.Interfaces = append(dev.Interfaces, models.Interface{
			Hostname:    row.Hostname,
			Name:        row.Name,
			Active:      row.Active,
			IPAddresses: row.IPAddresses,
			VLAN:        row.VLAN,
			Description: row.Description,
			Bandwidth:   row.Bandwidth,
			MTU:         row.MTU,
		})
	}

	devices := make([]models.Device, 0, len(order))
	for _, hostname := range order {
		dev := byHost[hostname]
		dev.DeviceType = inferDeviceType(a.rules, rowByHost[hostname], dev.Interfaces)
		devices = append(devices, *dev)
	}

	ifaceKeys := make(map[string]struct{}, len(ifaces))
	for _, row := range ifaces {
		ifaceKeys[row.Hostname+":"+row.Name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(edges))
	outEdges := make([]models.Edge, 0, len(edges))
	for _, row := range edges {
		edge := models.Edge{
			SourceDevice:    row.Hostname,
			SourceInterface: row.Interface,
			DestDevice:      row.RemoteHostname,
			DestInterface:   row.RemoteInterface,
			SourceIP:        row.IP,
			DestIP:          row.RemoteIP,
		}.Canonical()

		if !a.resolvable(byHost, ifaceKeys, edge) {
			log.Warn("dropping edge with unresolved endpoint",
				zap.String("source", edge.SourceDevice+":"+edge.SourceInterface),
				zap.String("dest", edge.DestDevice+":"+edge.DestInterface))
			continue
		}
		key := edge.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		outEdges = append(outEdges, edge)
	}
	sort.Slice(outEdges, func(i, j int) bool {
		return outEdges[i].Key() < outEdges[j].Key()
	})

	return &models.Topology{Devices: devices, Edges: outEdges}
}

// resolvable checks both edge endpoints against the device and interface
// sets built for the same snapshot.
func (a *Aggregator) resolvable(byHost map[string]*models.Device, ifaceKeys map[string]struct{}, e models.Edge) bool {
	if e.SourceDevice == "" || e.DestDevice == "" || e.SourceInterface == "" || e.DestInterface == "" {
		return false
	}
	if byHost[e.SourceDevice] == nil || byHost[e.DestDevice] == nil {
		return false
	}
	if _, ok := ifaceKeys[e.SourceDevice+":"+e.SourceInterface]; !ok {
		return false
	}
	if _, ok := ifaceKeys[e.DestDevice+":"+e.DestInterface]; !ok {
		return false
	}
	return true
}

// DeviceDetail returns one device of a COMPLETE snapshot with its full
// interface list and the snapshot metadata it was derived from.
func (a *Aggregator) DeviceDetail(ctx context.Context, network, snapshot, hostname string) (*models.DeviceDetail, error) {
	snap, err := a.registry.RequireComplete(ctx, network, snapshot)
	if err != nil {
		return nil, err
	}

	nodes, err := a.gateway.NodeProperties(ctx, network, snapshot)
	if err != nil {
		return nil, err
	}
	var row *engine.NodeRow
	for i := range nodes {
		if nodes[i].Hostname == hostname {
			row = &nodes[i]
			break
		}
	}
	if row == nil {
		return nil, registry.ErrNotFound
	}

	ifaceRows, err := a.gateway.InterfaceProperties(ctx, network, snapshot, hostname)
	if err != nil {
		return nil, err
	}
	ifaces := make([]models.Interface, 0, len(ifaceRows))
	for _, ir := range ifaceRows {
		if ir.Hostname != hostname {
			continue
		}
		ifaces = append(ifaces, models.Interface{
			Hostname:    ir.Hostname,
			Name:        ir.Name,
			Active:      ir.Active,
			IPAddresses: ir.IPAddresses,
			VLAN:        ir.VLAN,
			Description: ir.Description,
			Bandwidth:   ir.Bandwidth,
			MTU:         ir.MTU,
		})
	}

	dev := models.Device{
		Hostname:   row.Hostname,
		Vendor:     extractVendor(*row),
		Model:      row.Model,
		OSVersion:  row.OSVersion,
		Interfaces: ifaces,
	}
	dev.DeviceType = inferDeviceType(a.rules, *row, ifaces)

	return &models.DeviceDetail{
		Device:       dev,
		SnapshotName: snap.Name,
		Network:      snap.Network,
		LastUpdated:  snap.CreatedAt,
	}, nil
}
