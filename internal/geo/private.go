// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

package geo

import (
	"net"
	"time"

	"github.com/shotcaster/shotcaster/internal/models"
)

// privateRanges lists the private, loopback, and link-local CIDR blocks that
// never reach the upstream resolver.
var privateRanges = buildPrivateRanges()

func buildPrivateRanges() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",   // IPv6 loopback
		"fc00::/7",  // IPv6 unique local
		"fe80::/10", // IPv6 link-local
	}

	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		nets = append(nets, network)
	}
	return nets
}

// IsPrivateIP reports whether the address belongs to a private, loopback, or
// link-local range. "localhost" and the unspecified address count as private.
// Deterministic, no I/O.
func IsPrivateIP(ipStr string) bool {
	if ipStr == "localhost" {
		return true
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ip.IsUnspecified() {
		return true
	}

	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// privateResult creates the synthetic result returned for private-range IPs.
// These never enter the cache and never reach the upstream resolver.
func privateResult(ip string) models.GeoResult {
	return models.GeoResult{
		IP:        ip,
		Country:   "Private Network",
		City:      "Private Network",
		ISP:       "Private",
		IsPrivate: true,
		CachedAt:  time.Now(),
	}
}

// NormalizeIP strips a port from host:port forms before the address is used
// as a cache key. IPv4-mapped IPv6 forms are deliberately left distinct.
func NormalizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
