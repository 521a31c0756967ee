package util

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies is the set of peers whose forwarding headers are believed
// when resolving the caller address used for rate limiting.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies accepts CIDRs and bare addresses. No entries yields nil,
// which trusts nobody.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	var prefixes []netip.Prefix
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return &TrustedProxies{prefixes: prefixes}, nil
}

func (t *TrustedProxies) trusts(addr netip.Addr) bool {
	if t == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address. X-Forwarded-For is walked right to
// left only when the direct peer is trusted, and the first untrusted hop
// wins. X-Real-IP is the fallback for trusted peers without a usable XFF.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.trusts(peer) {
		return peer.String()
	}

	hops := forwardedHops(r.Header.Get("X-Forwarded-For"))
	if len(hops) > 0 {
		for i := len(hops) - 1; i >= 0; i-- {
			if !trusted.trusts(hops[i]) {
				return hops[i].String()
			}
		}
		return hops[0].String()
	}
	if real, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return real.Unmap().String()
	}
	return peer.String()
}

func forwardedHops(header string) []netip.Addr {
	var hops []netip.Addr
	for part := range strings.SplitSeq(header, ",") {
		addr, err := netip.ParseAddr(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		hops = append(hops, addr.Unmap())
	}
	return hops
}

func peerAddr(remote string) (netip.Addr, bool) {
	remote = strings.TrimSpace(remote)
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remote); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
