package template

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/harrow/internal/params"
)

// Network generates libvirt network XML.
//
// Recognized params: name, instance_uuid, dev (bridge name), forward (nat,
// route, bridge or "none" for isolated), ip, netmask, dhcp_start, dhcp_end and
// hosts, a list of static leases with mac, name and ip.
func Network(p params.Params) (string, error) {
	network := &libvirtxml.Network{
		Name: p.String("name"),
		UUID: p.String("instance_uuid"),
	}

	forward := p.String("forward")
	if forward == "" {
		forward = "nat"
	}
	if forward != "none" {
		network.Forward = &libvirtxml.NetworkForward{Mode: forward}
	}

	network.Bridge = &libvirtxml.NetworkBridge{
		Name: p.String("dev"),
		STP:  "on",
	}

	if forward == "bridge" {
		if p.String("dev") == "" {
			return "", fmt.Errorf("bridge name required for bridge mode")
		}
		network.Bridge.STP = ""
	} else if ip := p.String("ip"); ip != "" {
		netmask := p.String("netmask")
		if netmask == "" {
			netmask = "255.255.255.0"
		}
		netIP := libvirtxml.NetworkIP{
			Address: ip,
			Netmask: netmask,
		}

		dhcp := &libvirtxml.NetworkDHCP{}
		if start, end := p.String("dhcp_start"), p.String("dhcp_end"); start != "" && end != "" {
			dhcp.Ranges = append(dhcp.Ranges, libvirtxml.NetworkDHCPRange{Start: start, End: end})
		}
		for _, h := range p.List("hosts") {
			dhcp.Hosts = append(dhcp.Hosts, libvirtxml.NetworkDHCPHost{
				MAC:  h.String("mac"),
				Name: h.String("name"),
				IP:   h.String("ip"),
			})
		}
		if len(dhcp.Ranges) > 0 || len(dhcp.Hosts) > 0 {
			netIP.DHCP = dhcp
		}
		network.IPs = []libvirtxml.NetworkIP{netIP}
	}

	xml, err := network.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal network XML: %w", err)
	}
	return trimHeader(xml), nil
}
