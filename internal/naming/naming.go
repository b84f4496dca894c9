// Package naming provides the naming conventions shared by the reconcilers:
// backup keys and on-disk backup layout, default pool paths and
// deterministic MAC addresses.
package naming

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// DefaultPoolRoot is where directory pools live unless a path is given.
const DefaultPoolRoot = "/var/lib/libvirt/images"

// BackupKey returns the key of an incremental backup.
// Format: {instanceID}-{snapshotName}
func BackupKey(instanceID, snapshotName string) string {
	return fmt.Sprintf("%s-%s", instanceID, snapshotName)
}

// SnapshotDir returns the directory holding persistent backups of one
// snapshot. Path separators in the snapshot name become underscores.
//
// Example: ("/srv/backups", "nightly/2024") → /srv/backups/nightly_2024
func SnapshotDir(base, snapshotName string) string {
	if base == "" {
		base = "."
	}
	return filepath.Join(base, strings.ReplaceAll(snapshotName, "/", "_"))
}

// XMLBackupFile returns the path of a resource's XML backup.
// Format: {dir}/{resourceID}.xml
func XMLBackupFile(dir, resourceID string) string {
	return filepath.Join(dir, resourceID+".xml")
}

// RawBackupFile returns the path of a domain's saved memory state.
// Format: {dir}/{resourceID}_raw
func RawBackupFile(dir, resourceID string) string {
	return filepath.Join(dir, resourceID+"_raw")
}

// PoolPath returns the default target directory of a pool.
func PoolPath(poolName string) string {
	return filepath.Join(DefaultPoolRoot, poolName)
}

// MACFromIP calculates a deterministic MAC address from an IP address.
// Uses the locally administered prefix be:ef:.
//
// Example: IP 10.55.22.22 → MAC be:ef:0a:37:16:16
func MACFromIP(ip string) (string, error) {
	ipv4, err := parseIPv4(ip)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("be:ef:%02x:%02x:%02x:%02x",
		ipv4[0], ipv4[1], ipv4[2], ipv4[3]), nil
}

// NormalizeMAC lowercases a MAC address so lease and interface tables
// compare equal regardless of how the hypervisor formats them.
func NormalizeMAC(mac string) string {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mac))
	}
	return hw.String()
}

// parseIPv4 handles both "10.1.2.3" and "10.1.2.3/24".
func parseIPv4(ip string) (net.IP, error) {
	ipStr := ip
	if strings.Contains(ip, "/") {
		ipAddr, _, err := net.ParseCIDR(ip)
		if err != nil {
			return nil, fmt.Errorf("invalid IP/CIDR: %w", err)
		}
		ipStr = ipAddr.String()
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipStr)
	}

	ipv4 := parsedIP.To4()
	if ipv4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ipStr)
	}
	return ipv4, nil
}
