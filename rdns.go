package main

import (
	"context"
	"net"
)

// resolveHost performs spec §4.2's name-resolution contract: reverse-resolve
// addr to a hostname, confirm the forward lookup of that hostname contains
// addr back, and fall back silently to addr itself on any failure. Bounded
// at rdnsTimeout, and cancelled early if parent is cancelled (the owning
// connection closed before the lookup finished) — callers run this on its
// own goroutine since it may block for the full timeout otherwise.
func resolveHost(parent context.Context, addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	ctx, cancel := context.WithTimeout(parent, rdnsTimeout)
	defer cancel()

	var resolver net.Resolver
	names, err := resolver.LookupAddr(ctx, host)
	if err != nil || len(names) == 0 {
		return host
	}
	candidate := names[0]

	ips, err := resolver.LookupIPAddr(ctx, candidate)
	if err != nil {
		return host
	}
	for _, ip := range ips {
		if ip.IP.String() == host {
			return candidate
		}
	}
	return host
}
