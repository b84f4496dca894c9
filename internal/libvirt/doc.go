// Package libvirt adapts github.com/digitalocean/go-libvirt to the
// hypervisor interfaces.
//
// Connection Management:
//
// An Opener turns a libvirt_auth value into a connection. The default
// qemu:///system URI is reached through the local daemon socket; any other
// URI (remote transports, session daemons, explicit ?socket= parameters) is
// handed to go-libvirt's URI dialer:
//
//	opener := &libvirt.Opener{Socket: libvirt.DefaultSocket, Timeout: 5 * time.Second}
//	conn, err := opener.Open(ctx, "qemu+tcp://kvm01/system")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
// Handles:
//
// Lookups return thin handles that carry the go-libvirt object and the
// connection it came from. Lookup failures for missing objects wrap
// hypervisor.ErrNotFound so callers can tell absence from failure.
//
// Client still exposes the underlying *libvirt.Libvirt and Ping for callers
// that need direct access, such as connection checks.
package libvirt
