// Package netscan checks local TCP ports.
package netscan

import (
	"context"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"
)

const dialTimeout = 500 * time.Millisecond

var loopback = []netip.Addr{
	netip.AddrFrom4([4]byte{127, 0, 0, 1}),
	netip.IPv6Loopback(),
}

// Listening returns those of ports which accept TCP connections on a
// loopback address, in the order given.
func Listening(ctx context.Context, ports ...int) []int {
	opened := make([]bool, len(ports))
	var g errgroup.Group
	for i, port := range ports {
		if port < 1 || port > 65535 {
			continue
		}
		g.Go(func() error {
			for _, addr := range loopback {
				if open(ctx, netip.AddrPortFrom(addr, uint16(port))) {
					opened[i] = true
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var ret []int
	for i, port := range ports {
		if opened[i] {
			ret = append(ret, port)
		}
	}
	return ret
}

func open(ctx context.Context, adr netip.AddrPort) bool {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", adr.String())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
