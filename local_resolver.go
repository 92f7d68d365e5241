package cfddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that reports an address assigned to
// the given interfaces, for hosts whose public address is configured directly
// on a local interface.
// If no interfaces are provided then all interfaces are considered.
// Loopback and link-local addresses are skipped,
// and IPv4 addresses are preferred when both families are present.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addrs, err := r.addresses()
	if err != nil {
		return netip.Addr{}, err
	}

	var fallback netip.Addr
	for _, addr := range addrs {
		if addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			continue
		}
		if addr.Is4() {
			return addr, nil
		}
		if !fallback.IsValid() {
			fallback = addr
		}
	}
	if fallback.IsValid() {
		return fallback, nil
	}
	return netip.Addr{}, errors.New("no usable addresses found on local interfaces")
}

func (r interfaceResolver) addresses() (addrs []netip.Addr, err error) {
	var raw []net.Addr
	var errs []error

	if len(r.ifaces) == 0 {
		raw, err = net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting local interface addresses: %w", err)
		}
	} else {
		for _, name := range r.ifaces {
			iface, err := net.InterfaceByName(name)
			if err != nil {
				errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", name, err))
				continue
			}
			a, err := iface.Addrs()
			if err != nil {
				errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", name, err))
				continue
			}
			raw = append(raw, a...)
		}
	}

	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	for _, addr := range raw {
		prefix, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %w", addr.String(), err))
			continue
		}
		addrs = append(addrs, prefix.Addr())
	}
	if len(addrs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return addrs, nil
}
