package vm

import (
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
)

// UpdateNetworks copies the interfaces the hypervisor reports into
// params.networks, matching entries by MAC and appending unknown ones. When
// the instance has no ip yet, the first IPv4 address found becomes its ip.
// It reports whether anything changed.
func UpdateNetworks(op *reconcile.Op, d hypervisor.Domain, source hypervisor.AddressSource) (bool, error) {
	ifaces, err := d.InterfaceAddresses(source)
	if err != nil {
		return false, fault.WrapRecoverable(err, "Can not read interface addresses of %s", d.Name())
	}
	op.Log.Infof("Libvirt knows about such networks: %v", ifaces)

	p := op.Params()
	networks := p.List("networks")
	before := normalizeNetworks(networks)

	for _, iface := range ifaces {
		if iface.MAC == "" {
			continue
		}
		addrs := addrList(iface.Addrs)
		matched := false
		for _, n := range networks {
			if strings.EqualFold(n.String("mac"), iface.MAC) {
				n["dev"] = iface.Name
				n["addrs"] = addrs
				matched = true
				break
			}
		}
		if !matched {
			networks = append(networks, params.Params{
				"dev":   iface.Name,
				"addrs": addrs,
				"mac":   iface.MAC,
			})
		}
	}

	changed := !reflect.DeepEqual(before, normalizeNetworks(networks))
	if changed {
		p.SetList("networks", networks)
		op.Instance.MarkChanged()
	}

	if op.Instance.IP() != "" {
		return changed, nil
	}
	for _, n := range networks {
		for _, a := range n.List("addrs") {
			if hypervisor.AddrType(a.Int("type")) == hypervisor.AddrIPv4 && a.String("addr") != "" {
				op.Instance.SetIP(a.String("addr"))
				return true, nil
			}
		}
	}
	return changed, nil
}

func addrList(addrs []hypervisor.IPAddr) []any {
	out := make([]any, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, map[string]any{
			"addr":   a.Addr,
			"prefix": int(a.Prefix),
			"type":   int(a.Type),
		})
	}
	return out
}

// normalizeNetworks flattens the entries into comparable string maps so
// values decoded from YAML compare equal to freshly built ones.
func normalizeNetworks(networks []params.Params) []map[string]string {
	out := make([]map[string]string, 0, len(networks))
	for _, n := range networks {
		m := make(map[string]string, len(n))
		for k, v := range n {
			if k == "addrs" {
				var parts []string
				for _, a := range n.List("addrs") {
					parts = append(parts, a.String("addr")+"/"+cast.ToString(a["prefix"])+"/"+cast.ToString(a["type"]))
				}
				m[k] = strings.Join(parts, ",")
				continue
			}
			m[k] = cast.ToString(v)
		}
		out = append(out, m)
	}
	return out
}
