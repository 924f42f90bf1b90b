package domain

import "strings"

// NormalizeAddress strips the 0x prefix and lower-cases a contract or wallet
// address. Applied before any address is used as a cache key or filename.
// Idempotent: normalizing an already-normalized address returns it unchanged.
func NormalizeAddress(addr string) string {
	a := strings.ToLower(strings.TrimSpace(addr))
	return strings.TrimPrefix(a, "0x")
}

// NormalizeAddresses normalizes and de-duplicates a wallet list, preserving
// first-seen order.
func NormalizeAddresses(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		n := NormalizeAddress(a)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
