package nmap

import (
	"regexp"
	"strings"

	"github.com/openrecon/scanview/pkg/aggregate"
	"github.com/openrecon/scanview/pkg/models"
)

var (
	grepHeaderRe = regexp.MustCompile(`^#\s*Nmap\s+([\d.A-Za-z]+)?\s*scan initiated\s+(.*?)\s+as:\s+(.*)$`)
	grepHostRe   = regexp.MustCompile(`^Host:\s+(\S+)\s+\(([^)]*)\)`)
	grepStatusRe = regexp.MustCompile(`\bStatus:\s+(\S+)`)
	grepPortsRe  = regexp.MustCompile(`\bPorts:\s+(.*?)(?:\t|$)`)
	grepOSRe     = regexp.MustCompile(`\bOS:\s+(.*?)(?:\t|$)`)
)

// ParseGrepable parses nmap greppable (-oG) output. One line describes one
// host; a host seen on several lines (separate Status and Ports records) is
// folded into a single entry. Lines that do not match the expected shape are
// skipped rather than failing the parse.
func (p *Parser) ParseGrepable(raw string) (*models.Scan, error) {
	scan := p.newScan()
	scan.Scanner = "nmap"

	index := make(map[string]*models.Host)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "#") {
			// Header comments only contribute the invocation command line
			// and start time string.
			if m := grepHeaderRe.FindStringSubmatch(line); m != nil {
				scan.Version = m[1]
				scan.StartStr = m[2]
				scan.Args = m[3]
			}
			continue
		}

		m := grepHostRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ip, name := m[1], m[2]

		h, ok := index[ip]
		if !ok {
			h = p.newHost()
			addrType := "ipv4"
			if strings.Contains(ip, ":") {
				addrType = "ipv6"
			}
			h.Addresses = append(h.Addresses, models.Address{Addr: ip, AddrType: addrType})
			index[ip] = h
			scan.Hosts = append(scan.Hosts, h)
		}
		if name != "" && len(h.Hostnames) == 0 {
			h.Hostnames = append(h.Hostnames, models.Hostname{Name: name, Type: "PTR"})
		}

		if sm := grepStatusRe.FindStringSubmatch(line); sm != nil {
			h.Status.State = strings.ToLower(sm[1])
			h.Status.Reason = ""
		}

		if pm := grepPortsRe.FindStringSubmatch(line); pm != nil {
			for _, record := range strings.Split(pm[1], ",") {
				if port, ok := parseGrepPort(strings.TrimSpace(record)); ok {
					if h.FindPort(port.Port, port.Protocol) == nil {
						h.Ports = append(h.Ports, port)
					}
				}
			}
		}

		if om := grepOSRe.FindStringSubmatch(line); om != nil && len(h.OS.Matches) == 0 {
			h.OS.Matches = append(h.OS.Matches, models.OSMatch{Name: strings.TrimSpace(om[1])})
		}
	}

	// No explicit status token: a host carrying any open port is inferred
	// "up". With zero ports the bias is "down"; the format gives no way to
	// tell the two apart.
	for _, h := range scan.Hosts {
		if h.Status.State != "unknown" {
			continue
		}
		h.Status.State = "down"
		for _, port := range h.Ports {
			if port.State.State == "open" {
				h.Status.State = "up"
				break
			}
		}
	}

	aggregate.Refresh(scan)
	return scan, nil
}

// parseGrepPort parses one slash-delimited port record of the fixed arity
// port/state/protocol/owner/service/rpc/version.
func parseGrepPort(record string) (models.Port, bool) {
	fields := strings.Split(record, "/")
	if len(fields) < 3 {
		return models.Port{}, false
	}
	number := toIntDefault(fields[0], -1)
	if number < 0 {
		return models.Port{}, false
	}

	// Pad short records so the positional fields below always resolve.
	for len(fields) < 7 {
		fields = append(fields, "")
	}

	port := models.Port{
		Port:     number,
		Protocol: fields[2],
		State:    models.PortState{State: fields[1]},
		Owner:    fields[3],
	}
	service := strings.TrimSpace(fields[4])
	version := strings.TrimSpace(strings.Trim(strings.Join(fields[6:], "/"), "/"))
	if service != "" || version != "" {
		port.Service = models.Service{Name: service, Proto: strings.TrimSpace(fields[5])}
		// The version column packs product and version into one field with
		// "|" standing in for the slashes the format reserves.
		version = strings.ReplaceAll(version, "|", "/")
		product, ver, extra := splitProductVersion(version)
		port.Service.Product = product
		port.Service.Version = ver
		port.Service.ExtraInfo = extra
	}
	return port, true
}

// splitProductVersion heuristically splits "OpenSSH 8.9p1 (protocol 2.0)"
// into product, version and parenthesized extra info.
func splitProductVersion(s string) (product, version, extra string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", ""
	}
	if open := strings.Index(s, "("); open >= 0 {
		if close := strings.LastIndex(s, ")"); close > open {
			extra = s[open+1 : close]
			s = strings.TrimSpace(s[:open] + s[close+1:])
		}
	}
	fields := strings.Fields(s)
	if len(fields) > 1 && strings.ContainsAny(fields[len(fields)-1], "0123456789") {
		version = fields[len(fields)-1]
		product = strings.Join(fields[:len(fields)-1], " ")
	} else {
		product = s
	}
	return product, version, extra
}
