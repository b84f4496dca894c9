package libvirt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/harrow/internal/hypervisor"
)

// TestConnect tests basic connection functionality.
// This is an integration test that requires libvirt to be running.
func TestConnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	c, err := Connect("", 0)
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestConnect_InvalidSocket(t *testing.T) {
	_, err := Connect("/nonexistent/socket", 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected error connecting to nonexistent socket, got nil")
	}
}

func TestConnectWithContext_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)
	_, err := ConnectWithContext(ctx, func() (*Client, error) {
		<-block
		return nil, errors.New("unreachable")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpener_InvalidSocket(t *testing.T) {
	o := &Opener{Socket: "/nonexistent/socket", Timeout: 100 * time.Millisecond}
	_, err := o.Open(context.Background(), "")
	assert.Error(t, err)

	_, err = o.Open(context.Background(), "::not a uri")
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping())
}

func TestParseAuth(t *testing.T) {
	tests := []struct {
		auth    string
		local   bool
		wantErr bool
	}{
		{auth: "", local: true},
		{auth: "qemu:///system", local: true},
		{auth: "qemu+unix:///system", local: true},
		{auth: "qemu:///session", local: false},
		{auth: "qemu:///system?socket=/tmp/sock", local: false},
		{auth: "qemu+tcp://kvm01/system", local: false},
		{auth: "qemu+ssh://root@kvm01/system", local: false},
		{auth: "kvm01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.auth, func(t *testing.T) {
			local, u, err := parseAuth(tt.auth)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.local, local)
			assert.NotNil(t, u)
		})
	}
}

func TestLookupError(t *testing.T) {
	err := lookupError("network", "private", errors.New("Network not found: no network with matching name 'private'"))
	assert.ErrorIs(t, err, hypervisor.ErrNotFound)

	err = lookupError("network", "private", errors.New("connection reset by peer"))
	assert.NotErrorIs(t, err, hypervisor.ErrNotFound)
	assert.Contains(t, err.Error(), "private")

	assert.False(t, isNotFound(nil))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", errors.New("Storage volume not found"))))
}

func TestIsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no support", libvirt.Error{Code: uint32(libvirt.ErrNoSupport), Message: "this function is not supported"}, true},
		{"invalid flag", fmt.Errorf("wrapped: %w", libvirt.Error{Code: uint32(libvirt.ErrInvalidArg)}), true},
		{"operation denied", libvirt.Error{Code: uint32(libvirt.ErrOperationDenied), Message: "permission denied"}, false},
		{"plain error", errors.New("connection reset by peer"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnsupported(tt.err))
		})
	}
}

func TestConvertLeases(t *testing.T) {
	leases := convertLeases([]libvirt.NetworkDhcpLease{
		{
			Iface:    "virbr1",
			Type:     0,
			Mac:      libvirt.OptString{"52:54:00:aa:bb:cc"},
			Ipaddr:   "10.0.0.5",
			Prefix:   24,
			Hostname: libvirt.OptString{"web"},
		},
		{Iface: "virbr1", Type: 1, Ipaddr: "fd00::5", Prefix: 64},
	})

	require.Len(t, leases, 2)
	assert.Equal(t, hypervisor.Lease{
		Iface:    "virbr1",
		MAC:      "52:54:00:aa:bb:cc",
		IPAddr:   "10.0.0.5",
		Prefix:   24,
		Hostname: "web",
		Type:     hypervisor.AddrIPv4,
	}, leases[0])
	assert.Empty(t, leases[1].MAC)
	assert.Equal(t, hypervisor.AddrIPv6, leases[1].Type)
}

func TestConvertInterfaces(t *testing.T) {
	ifaces := convertInterfaces([]libvirt.DomainInterface{{
		Name:   "vnet0",
		Hwaddr: libvirt.OptString{"52:54:00:aa:bb:cc"},
		Addrs: []libvirt.DomainIPAddr{
			{Type: 0, Addr: "10.0.0.5", Prefix: 24},
			{Type: 1, Addr: "fe80::1", Prefix: 64},
		},
	}})

	require.Len(t, ifaces, 1)
	assert.Equal(t, "vnet0", ifaces[0].Name)
	assert.Equal(t, "52:54:00:aa:bb:cc", ifaces[0].MAC)
	require.Len(t, ifaces[0].Addrs, 2)
	assert.Equal(t, hypervisor.IPAddr{Type: hypervisor.AddrIPv4, Addr: "10.0.0.5", Prefix: 24}, ifaces[0].Addrs[0])
}

func TestConvertMemoryStats(t *testing.T) {
	stats := convertMemoryStats([]libvirt.DomainMemoryStat{
		{Tag: memStatActual, Val: 1048576},
		{Tag: memStatAvailable, Val: 1000000},
		{Tag: memStatUnused, Val: 600000},
		{Tag: memStatRSS, Val: 400000},
		{Tag: 8, Val: 1},
	})

	assert.Equal(t, hypervisor.MemoryStats{Actual: 1048576, Available: 1000000, Unused: 600000, RSS: 400000}, stats)
}
