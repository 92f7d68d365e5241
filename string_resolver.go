package cfddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that parses an IP address from addr.
// The address is not validated until Resolve is called.
func FromString(addr string) Resolver {
	return stringResolver(addr)
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	addr, err := netip.ParseAddr(string(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("unable to parse IP: %w", err)
	}
	return addr, nil
}
