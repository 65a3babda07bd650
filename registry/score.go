package registry

import "net"

// Score ranks remote against local by the length of the longest
// matching prefix of dotted IPv4 octets (spec.md §4.D): 4 means same
// host, 3 same subnet, 2 same second octet, 1 same first octet, 0
// otherwise. Non-IPv4 addresses resolve to 0. Implemented fresh per
// spec — neither bketelsen/skynet nor skynet2 score endpoints; they
// round-robin (InstanceChooser) instead.
func Score(remote, local net.IP) int {
	r4 := remote.To4()
	l4 := local.To4()
	if r4 == nil || l4 == nil {
		return 0
	}
	score := 0
	for i := 0; i < 4; i++ {
		if r4[i] != l4[i] {
			break
		}
		score++
	}
	return score
}

// ResolveIPv4 resolves host (dotted literal or name) to its first
// IPv4 address.
func ResolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, &net.AddrError{Err: "no IPv4 address", Addr: host}
}
