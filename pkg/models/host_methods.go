package models

// Refresh recomputes the derived convenience scalars of the host from its
// address, hostname, OS and port lists. It must be called after any mutation
// of those lists.
func (h *Host) Refresh() {
	h.IPv4, h.IPv6, h.MAC, h.Vendor = "", "", "", ""
	for _, a := range h.Addresses {
		switch a.AddrType {
		case "ipv4":
			if h.IPv4 == "" {
				h.IPv4 = a.Addr
			}
		case "ipv6":
			if h.IPv6 == "" {
				h.IPv6 = a.Addr
			}
		case "mac":
			if h.MAC == "" {
				h.MAC = a.Addr
				h.Vendor = a.Vendor
			}
		}
	}

	h.Hostname = ""
	if len(h.Hostnames) > 0 {
		h.Hostname = h.Hostnames[0].Name
	}

	h.OSName = ""
	if len(h.OS.Matches) > 0 {
		h.OSName = h.OS.Matches[0].Name
	}

	h.OpenPorts, h.ClosedPorts, h.FilteredPorts = 0, 0, 0
	for _, p := range h.Ports {
		switch p.State.State {
		case "open":
			h.OpenPorts++
		case "closed":
			h.ClosedPorts++
		case "filtered", "open|filtered":
			h.FilteredPorts++
		}
	}
}

// Addr returns the address used as host identity when merging scans: the
// primary IPv4, falling back to IPv6.
func (h *Host) Addr() string {
	if h.IPv4 != "" {
		return h.IPv4
	}
	return h.IPv6
}

// FindPort returns the port matching (number, protocol), or nil.
func (h *Host) FindPort(number int, protocol string) *Port {
	for i := range h.Ports {
		if h.Ports[i].Port == number && h.Ports[i].Protocol == protocol {
			return &h.Ports[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the host. Merging works on clones so that
// callers holding the pre-merge scan never observe mutation.
func (h *Host) Clone() *Host {
	c := *h
	c.Addresses = append([]Address(nil), h.Addresses...)
	c.Hostnames = append([]Hostname(nil), h.Hostnames...)
	c.Ports = make([]Port, len(h.Ports))
	for i, p := range h.Ports {
		c.Ports[i] = p
		c.Ports[i].Service.CPEs = append([]string(nil), p.Service.CPEs...)
		c.Ports[i].Scripts = cloneScripts(p.Scripts)
	}
	c.HostScripts = cloneScripts(h.HostScripts)
	c.Smurfs = append([]Smurf(nil), h.Smurfs...)
	c.OS.Matches = make([]OSMatch, len(h.OS.Matches))
	for i, m := range h.OS.Matches {
		c.OS.Matches[i] = m
		c.OS.Matches[i].Classes = make([]OSClass, len(m.Classes))
		for j, cl := range m.Classes {
			c.OS.Matches[i].Classes[j] = cl
			c.OS.Matches[i].Classes[j].CPEs = append([]string(nil), cl.CPEs...)
		}
	}
	c.OS.Fingerprints = append([]string(nil), h.OS.Fingerprints...)
	c.OS.PortsUsed = append([]PortUsed(nil), h.OS.PortsUsed...)
	c.Trace.Hops = append([]Hop(nil), h.Trace.Hops...)
	return &c
}

func cloneScripts(scripts []Script) []Script {
	if scripts == nil {
		return nil
	}
	out := make([]Script, len(scripts))
	for i, s := range scripts {
		out[i] = s
		out[i].Elements = cloneElements(s.Elements)
	}
	return out
}

func cloneElements(elems []ScriptElement) []ScriptElement {
	if elems == nil {
		return nil
	}
	out := make([]ScriptElement, len(elems))
	for i, e := range elems {
		out[i] = e
		out[i].Children = cloneElements(e.Children)
	}
	return out
}
