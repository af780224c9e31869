package discovery

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

const (
	// MulticastGroup is the IPv4 multicast address this fabric's discovery
	// protocol runs on.
	MulticastGroup = "224.0.0.251"
	// MulticastPort is the UDP port shared by every participant.
	MulticastPort = 5369
	// MaxDatagramSize bounds a single inbound read.
	MaxDatagramSize = 8192
)

// transport owns the multicast UDP socket: one PacketConn, joined to the
// group, reusable across participants on the same host.
type transport struct {
	pc    *ipv4.PacketConn
	group *net.UDPAddr
}

func newTransport(ctx context.Context) (*transport, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}

	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", MulticastPort))
	if err != nil {
		return nil, fmt.Errorf("discovery: listen udp4 :%d: %w", MulticastPort, err)
	}

	pc := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: net.ParseIP(MulticastGroup), Port: MulticastPort}
	if err := pc.JoinGroup(nil, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discovery: join multicast group %s: %w", MulticastGroup, err)
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discovery: set multicast ttl: %w", err)
	}

	return &transport{pc: pc, group: group}, nil
}

func (t *transport) send(datagram []byte) error {
	_, err := t.pc.WriteTo(datagram, nil, t.group)
	return err
}

func (t *transport) receive(buf []byte) (int, net.Addr, error) {
	n, _, src, err := t.pc.ReadFrom(buf)
	return n, src, err
}

func (t *transport) close() error {
	return t.pc.Close()
}

// LocalAddresses returns the non-loopback, non-bridge IPv4 addresses of
// this host, used to populate a freshly registered ServiceInfo.
func LocalAddresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isBridgeInterface(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			out = append(out, ip4.String())
		}
	}
	return out, nil
}

// isBridgeInterface recognizes the container-bridge interface naming
// conventions this fabric excludes from ServiceInfo.addresses (SPEC §3).
func isBridgeInterface(name string) bool {
	for _, prefix := range []string{"docker", "br-", "veth", "cni", "flannel", "virbr"} {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
