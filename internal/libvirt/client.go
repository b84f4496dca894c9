package libvirt

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"

	"github.com/jbweber/harrow/internal/hypervisor"
)

const (
	// DefaultSocket is the qemu:///system daemon socket.
	DefaultSocket = "/var/run/libvirt/libvirt-sock"
	// DefaultURI is used when an operation carries no libvirt_auth.
	DefaultURI = "qemu:///system"
)

// Client wraps a go-libvirt connection and implements hypervisor.Conn.
type Client struct {
	libvirt *libvirt.Libvirt
}

var _ hypervisor.Conn = (*Client)(nil)

// Connect establishes a connection to the local libvirt daemon.
// It returns a Client that must be closed via Close() when done.
//
// If socketPath is empty, defaults to DefaultSocket (qemu:///system).
// If timeout is zero, defaults to 5 seconds.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}

	return &Client{libvirt: l}, nil
}

// ConnectURI connects using a libvirt URI such as qemu+tcp://host/system or
// qemu:///session?socket=/run/user/1000/libvirt/libvirt-sock.
func ConnectURI(u *url.URL) (*Client, error) {
	l, err := libvirt.ConnectToURI(u)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", u.Redacted(), err)
	}
	return &Client{libvirt: l}, nil
}

// ConnectWithContext establishes a connection with context support for cancellation.
func ConnectWithContext(ctx context.Context, connect func() (*Client, error)) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := connect()
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		// close a connection that completes after we gave up on it
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping verifies the connection is still alive by calling a simple libvirt API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	_, err := c.libvirt.ConnectGetLibVersion()
	if err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}

// Opener opens connections for libvirt_auth values. It implements
// hypervisor.Opener.
type Opener struct {
	// Socket overrides the local daemon socket for qemu:///system.
	Socket string
	// Timeout bounds local socket dials.
	Timeout time.Duration
}

var _ hypervisor.Opener = (*Opener)(nil)

// Open implements hypervisor.Opener.
func (o *Opener) Open(ctx context.Context, auth string) (hypervisor.Conn, error) {
	c, err := o.Connect(ctx, auth)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connect returns a concrete Client for auth.
func (o *Opener) Connect(ctx context.Context, auth string) (*Client, error) {
	local, u, err := parseAuth(auth)
	if err != nil {
		return nil, err
	}
	if local {
		return ConnectWithContext(ctx, func() (*Client, error) {
			return Connect(o.Socket, o.Timeout)
		})
	}
	return ConnectWithContext(ctx, func() (*Client, error) {
		return ConnectURI(u)
	})
}

// parseAuth reports whether auth addresses the default local system daemon,
// which is reached through the configured socket, and otherwise returns the
// parsed URI.
func parseAuth(auth string) (bool, *url.URL, error) {
	if auth == "" {
		auth = DefaultURI
	}
	u, err := url.Parse(auth)
	if err != nil {
		return false, nil, fmt.Errorf("invalid libvirt URI %q: %w", auth, err)
	}
	if u.Scheme == "" {
		return false, nil, fmt.Errorf("invalid libvirt URI %q: missing driver", auth)
	}

	local := (u.Scheme == "qemu" || u.Scheme == "qemu+unix") &&
		u.Host == "" && u.Path == "/system" && u.Query().Get("socket") == ""
	return local, u, nil
}
