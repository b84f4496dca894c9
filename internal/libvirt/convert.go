package libvirt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/harrow/internal/hypervisor"
)

// virDomainMemoryStatTags
const (
	memStatUnused    = 4
	memStatAvailable = 5
	memStatActual    = 6
	memStatRSS       = 7

	memStatCount = 13
)

// lookupError wraps err with hypervisor.ErrNotFound when libvirt reports a
// missing object. go-libvirt only classifies missing domains, so the other
// VIR_ERR_NO_* codes are recognized by their message.
func lookupError(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %s: %w: %v", kind, name, hypervisor.ErrNotFound, err)
	}
	return fmt.Errorf("failed to look up %s %s: %w", kind, name, err)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return libvirt.IsNotFound(err) || strings.Contains(strings.ToLower(err.Error()), "not found")
}

// isUnsupported reports whether libvirt rejected a call or one of its flags
// as not implemented by the driver.
func isUnsupported(err error) bool {
	var e libvirt.Error
	if !errors.As(err, &e) {
		return false
	}
	switch libvirt.ErrorNumber(e.Code) {
	case libvirt.ErrNoSupport, libvirt.ErrInvalidArg:
		return true
	}
	return false
}

func convertLeases(in []libvirt.NetworkDhcpLease) []hypervisor.Lease {
	out := make([]hypervisor.Lease, 0, len(in))
	for _, l := range in {
		out = append(out, hypervisor.Lease{
			Iface:    l.Iface,
			MAC:      optString(l.Mac),
			IPAddr:   l.Ipaddr,
			Prefix:   uint(l.Prefix),
			Hostname: optString(l.Hostname),
			Type:     hypervisor.AddrType(l.Type),
		})
	}
	return out
}

func convertInterfaces(in []libvirt.DomainInterface) []hypervisor.Interface {
	out := make([]hypervisor.Interface, 0, len(in))
	for _, iface := range in {
		addrs := make([]hypervisor.IPAddr, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, hypervisor.IPAddr{
				Type:   hypervisor.AddrType(a.Type),
				Addr:   a.Addr,
				Prefix: uint(a.Prefix),
			})
		}
		out = append(out, hypervisor.Interface{
			Name:  iface.Name,
			MAC:   optString(iface.Hwaddr),
			Addrs: addrs,
		})
	}
	return out
}

func convertMemoryStats(in []libvirt.DomainMemoryStat) hypervisor.MemoryStats {
	var out hypervisor.MemoryStats
	for _, s := range in {
		switch s.Tag {
		case memStatActual:
			out.Actual = s.Val
		case memStatAvailable:
			out.Available = s.Val
		case memStatUnused:
			out.Unused = s.Val
		case memStatRSS:
			out.RSS = s.Val
		}
	}
	return out
}

func optString(s libvirt.OptString) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
