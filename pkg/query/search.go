package query

import (
	"strconv"
	"strings"

	"github.com/openrecon/scanview/pkg/models"
)

// ApplySearch returns the hosts with any searchable field containing the
// query as a case-insensitive substring. A trimmed-empty query passes the
// input through unchanged.
func ApplySearch(hosts []*models.Host, q string) []*models.Host {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return hosts
	}

	out := make([]*models.Host, 0, len(hosts))
	for _, h := range hosts {
		if hostMatches(h, q) {
			out = append(out, h)
		}
	}
	return out
}

func hostMatches(h *models.Host, q string) bool {
	for _, a := range h.Addresses {
		if contains(a.Addr, q) || contains(a.Vendor, q) {
			return true
		}
	}
	for _, n := range h.Hostnames {
		if contains(n.Name, q) {
			return true
		}
	}
	for _, v := range []string{h.IPv4, h.IPv6, h.MAC, h.Hostname, h.OSName, h.Status.State} {
		if contains(v, q) {
			return true
		}
	}
	for _, p := range h.Ports {
		if contains(strconv.Itoa(p.Port), q) ||
			contains(p.Service.Name, q) ||
			contains(p.Service.Product, q) ||
			contains(p.Service.Version, q) ||
			contains(p.Service.ExtraInfo, q) {
			return true
		}
		if scriptsMatch(p.Scripts, q) {
			return true
		}
	}
	return scriptsMatch(h.HostScripts, q)
}

func scriptsMatch(scripts []models.Script, q string) bool {
	for _, s := range scripts {
		if contains(s.ID, q) || contains(s.Output, q) {
			return true
		}
	}
	return false
}

func contains(s, q string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), q)
}
