package nmap

import (
	"math"
	"regexp"
	"strings"

	"github.com/openrecon/scanview/pkg/aggregate"
	"github.com/openrecon/scanview/pkg/models"
)

// The normal (-oN) grammar is a line-oriented state machine: no current host,
// in host, and in host with an open port table. Each line category has one
// anchored pattern; a line matching none of them is skipped so a mangled line
// degrades one field instead of the parse.

var (
	normalBannerRe   = regexp.MustCompile(`^Starting Nmap\s+([\d.A-Za-z]+)?.*?\s+at\s+(.*)$`)
	normalReportRe   = regexp.MustCompile(`^Nmap scan report for\s+(.+)$`)
	normalTargetRe   = regexp.MustCompile(`^(.*?)\s+\(([^)]+)\)$`)
	normalStatusRe   = regexp.MustCompile(`^Host is (up|down)(?:\s+\((.+)\))?`)
	normalTableRe    = regexp.MustCompile(`^PORT\s+STATE\s+SERVICE`)
	normalPortRe     = regexp.MustCompile(`^(\d+)/([a-z0-9]+)\s+(\S+)\s+(\S+)(?:\s+(.*))?$`)
	normalMACRe      = regexp.MustCompile(`^MAC Address:\s+([0-9A-Fa-f:]{17})(?:\s+\(([^)]*)\))?`)
	normalOSRe       = regexp.MustCompile(`^(?:OS details|Running):\s+(.+)$`)
	normalOSGuessRe  = regexp.MustCompile(`^Aggressive OS guesses:\s+(.+)$`)
	normalDistanceRe = regexp.MustCompile(`^Network Distance:\s+(\d+)\s+hops?`)
	normalUptimeRe   = regexp.MustCompile(`^Uptime guess:\s+([\d.]+)\s+days\s+\((.+)\)`)
	normalDoneRe     = regexp.MustCompile(`^Nmap done:\s+(\d+)\s+IP address(?:es)?\s+\((\d+)\s+hosts?\s+up\)\s+scanned in\s+([\d.]+)\s+seconds`)
	osAccuracyRe     = regexp.MustCompile(`\s*\((\d+)%\)$`)
)

// ParseNormal parses nmap normal (-oN) report output.
func (p *Parser) ParseNormal(raw string) (*models.Scan, error) {
	scan := p.newScan()
	scan.Scanner = "nmap"

	var current *models.Host
	inPortTable := false

	flush := func() {
		if current != nil {
			scan.Hosts = append(scan.Hosts, current)
			current = nil
		}
		inPortTable = false
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		if m := normalBannerRe.FindStringSubmatch(trimmed); m != nil {
			scan.Version = m[1]
			scan.StartStr = m[2]
			continue
		}

		// Files written with -oN carry the same comment header as -oG files.
		if strings.HasPrefix(trimmed, "#") {
			if m := grepHeaderRe.FindStringSubmatch(trimmed); m != nil {
				scan.Version = m[1]
				scan.StartStr = m[2]
				scan.Args = m[3]
			}
			continue
		}

		if m := normalReportRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = p.newHost()
			addTarget(current, m[1])
			continue
		}

		if m := normalDoneRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			scan.RunStats.Summary = trimmed
			scan.RunStats.HostsTotal = toInt(m[1])
			scan.RunStats.HostsUp = toInt(m[2])
			scan.RunStats.Elapsed = toFloat(m[3])
			continue
		}

		if current == nil {
			continue
		}

		if m := normalStatusRe.FindStringSubmatch(trimmed); m != nil {
			current.Status.State = m[1]
			current.Status.Reason = m[2]
			continue
		}

		if normalTableRe.MatchString(trimmed) {
			inPortTable = true
			continue
		}

		if inPortTable {
			if m := normalPortRe.FindStringSubmatch(trimmed); m != nil {
				port := models.Port{
					Port:     toInt(m[1]),
					Protocol: m[2],
					State:    models.PortState{State: m[3]},
				}
				if m[4] != "" || m[5] != "" {
					product, version, extra := splitProductVersion(m[5])
					port.Service = models.Service{
						Name:      m[4],
						Product:   product,
						Version:   version,
						ExtraInfo: extra,
					}
				}
				if current.FindPort(port.Port, port.Protocol) == nil {
					current.Ports = append(current.Ports, port)
				}
				continue
			}
			// Blank lines and indicator-prefixed lines (NSE output, service
			// fingerprints) do not terminate the table; anything else does.
			if trimmed == "" || strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "SF") {
				continue
			}
			inPortTable = false
		}

		if m := normalMACRe.FindStringSubmatch(trimmed); m != nil {
			addr := models.Address{Addr: m[1], AddrType: "mac", Vendor: m[2]}
			if addr.Vendor == "" || addr.Vendor == "Unknown" {
				if v := p.vendorFor(addr.Addr); v != "" {
					addr.Vendor = v
				}
			}
			current.Addresses = append(current.Addresses, addr)
			continue
		}

		if m := normalOSRe.FindStringSubmatch(trimmed); m != nil {
			setOSMatch(current, m[1], true)
			continue
		}

		// The aggressive guess list is a fallback, used only when no better
		// OS line was captured for this host.
		if m := normalOSGuessRe.FindStringSubmatch(trimmed); m != nil {
			first := strings.TrimSpace(strings.SplitN(m[1], ",", 2)[0])
			setOSMatch(current, first, false)
			continue
		}

		if m := normalDistanceRe.FindStringSubmatch(trimmed); m != nil {
			current.Distance.Value = toInt(m[1])
			continue
		}

		if m := normalUptimeRe.FindStringSubmatch(trimmed); m != nil {
			days := toFloat(m[1])
			current.Uptime = models.Uptime{
				Seconds:  int64(math.Round(days * 86400)),
				LastBoot: m[2],
			}
			continue
		}
	}

	flush()
	aggregate.Refresh(scan)
	return scan, nil
}

// addTarget splits a scan report target of the shape "name (ip)" or a bare
// address into the host's hostname and address lists.
func addTarget(h *models.Host, target string) {
	target = strings.TrimSpace(target)
	name, addr := "", target
	if m := normalTargetRe.FindStringSubmatch(target); m != nil {
		name, addr = m[1], m[2]
	}
	addrType := "ipv4"
	if strings.Contains(addr, ":") {
		addrType = "ipv6"
	}
	h.Addresses = append(h.Addresses, models.Address{Addr: addr, AddrType: addrType})
	if name != "" {
		h.Hostnames = append(h.Hostnames, models.Hostname{Name: name, Type: "PTR"})
	}
}

// setOSMatch installs an OS guess. A definite match overwrites an earlier
// fallback guess; a fallback never overwrites anything.
func setOSMatch(h *models.Host, name string, definite bool) {
	accuracy := 0
	if m := osAccuracyRe.FindStringSubmatch(name); m != nil {
		accuracy = toInt(m[1])
		name = strings.TrimSpace(osAccuracyRe.ReplaceAllString(name, ""))
	}
	if name == "" {
		return
	}
	if len(h.OS.Matches) > 0 && !definite {
		return
	}
	match := models.OSMatch{Name: name, Accuracy: accuracy}
	if len(h.OS.Matches) > 0 {
		h.OS.Matches[0] = match
		return
	}
	h.OS.Matches = append(h.OS.Matches, match)
}
