package topology

import (
	"strings"

	"topolens/internal/config"
	"topolens/internal/engine"
	"topolens/internal/models"
)

// typeRule is one ordered device-type inference rule: any substring match
// against the lowercased hostname or model assigns the type.
type typeRule struct {
	contains []string
	devType  models.DeviceType
}

// compileRules converts configured rules, dropping entries with an
// unrecognised type so a bad config line cannot break inference.
func compileRules(cfg []config.DeviceTypeRule) []typeRule {
	var rules []typeRule
	for _, rc := range cfg {
		devType := models.DeviceType(rc.Type)
		switch devType {
		case models.DeviceRouter, models.DeviceSwitch, models.DeviceFirewall, models.DeviceLoadBalancer:
		default:
			continue
		}
		if len(rc.Contains) == 0 {
			continue
		}
		rules = append(rules, typeRule{contains: rc.Contains, devType: devType})
	}
	return rules
}

// inferDeviceType resolves a device's type. The engine's own classification
// wins when it maps onto the closed set; otherwise the ordered rule list is
// matched against hostname and model, then interface-name heuristics.
// Unmatched input always resolves to UNKNOWN, never an error.
func inferDeviceType(rules []typeRule, row engine.NodeRow, ifaces []models.Interface) models.DeviceType {
	switch models.DeviceType(strings.ToUpper(row.DeviceType)) {
	case models.DeviceRouter:
		return models.DeviceRouter
	case models.DeviceSwitch:
		return models.DeviceSwitch
	case models.DeviceFirewall:
		return models.DeviceFirewall
	case models.DeviceLoadBalancer:
		return models.DeviceLoadBalancer
	}

	haystack := strings.ToLower(row.Hostname + " " + row.Model)
	for _, rule := range rules {
		for _, sub := range rule.contains {
			if sub != "" && strings.Contains(haystack, strings.ToLower(sub)) {
				return rule.devType
			}
		}
	}

	// A device carrying VLAN interfaces but no hint of routing looks like a
	// switch.
	for _, iface := range ifaces {
		if strings.HasPrefix(strings.ToLower(iface.Name), "vlan") {
			return models.DeviceSwitch
		}
	}
	return models.DeviceUnknown
}

// extractVendor resolves the vendor from the node row, falling back to the
// configuration-format string.
func extractVendor(row engine.NodeRow) models.Vendor {
	switch strings.ToUpper(row.Vendor) {
	case "CISCO":
		return models.VendorCisco
	case "JUNIPER":
		return models.VendorJuniper
	case "ARISTA":
		return models.VendorArista
	case "PALO_ALTO", "PALOALTO":
		return models.VendorPaloAlto
	}

	format := strings.ToLower(row.ConfigFormat)
	switch {
	case strings.Contains(format, "cisco"), strings.Contains(format, "ios"), strings.Contains(format, "nxos"):
		return models.VendorCisco
	case strings.Contains(format, "juniper"), strings.Contains(format, "junos"):
		return models.VendorJuniper
	case strings.Contains(format, "arista"), strings.Contains(format, "eos"):
		return models.VendorArista
	case strings.Contains(format, "paloalto"), strings.Contains(format, "panos"):
		return models.VendorPaloAlto
	}
	return models.VendorUnknown
}
