package nmap

import "strings"

type format int

const (
	formatUnknown format = iota
	formatXML
	formatGrepable
	formatNormal
)

// detectFormat inspects raw text and decides which grammar applies. The
// checks run in a fixed order; formatUnknown tells the caller to fall back to
// a best-effort XML attempt.
func detectFormat(raw string) format {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "<?xml") || strings.Contains(trimmed, "<nmaprun") {
		return formatXML
	}

	// Both -oG and -oN files open with "# Nmap ... scan initiated" comment
	// lines, so the header alone is ambiguous. Record markers decide: -oG
	// hosts live on "Host:" lines, -oN hosts under "Nmap scan report for".
	headerSeen := false
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			headerSeen = headerSeen || strings.HasPrefix(line, "# Nmap")
		case strings.HasPrefix(line, "Host:"):
			return formatGrepable
		case strings.HasPrefix(line, "Nmap scan report for") || strings.HasPrefix(line, "Starting Nmap"):
			return formatNormal
		}
	}

	// Header with no host records: an empty -oG run; the greppable parser
	// yields the correct empty scan.
	if headerSeen {
		return formatGrepable
	}

	return formatUnknown
}
