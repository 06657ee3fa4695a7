package nmap

import (
	"encoding/xml"
	"fmt"

	"github.com/openrecon/scanview/pkg/aggregate"
	"github.com/openrecon/scanview/pkg/models"
)

// XML schema structs. Every numeric attribute is declared as a string and
// coerced through the helpers in attr.go, so a malformed number degrades one
// field instead of rejecting the document. A missing nmaprun root element is
// the one hard failure; it means the input is not this format at all.

type xmlRun struct {
	XMLName   xml.Name      `xml:"nmaprun"`
	Scanner   string        `xml:"scanner,attr"`
	Version   string        `xml:"version,attr"`
	Args      string        `xml:"args,attr"`
	Start     string        `xml:"start,attr"`
	StartStr  string        `xml:"startstr,attr"`
	ScanInfos []xmlScanInfo `xml:"scaninfo"`
	Verbose   xmlLevel      `xml:"verbose"`
	Debugging xmlLevel      `xml:"debugging"`
	Hosts     []xmlHost     `xml:"host"`
	RunStats  xmlRunStats   `xml:"runstats"`
}

type xmlScanInfo struct {
	Type        string `xml:"type,attr"`
	Protocol    string `xml:"protocol,attr"`
	NumServices string `xml:"numservices,attr"`
	Services    string `xml:"services,attr"`
}

type xmlLevel struct {
	Level string `xml:"level,attr"`
}

type xmlHost struct {
	StartTime     string         `xml:"starttime,attr"`
	EndTime       string         `xml:"endtime,attr"`
	Status        *xmlStatus     `xml:"status"`
	Addresses     []xmlAddress   `xml:"address"`
	Hostnames     []xmlHostname  `xml:"hostnames>hostname"`
	Ports         []xmlPort      `xml:"ports>port"`
	OS            *xmlOS         `xml:"os"`
	Uptime        *xmlUptime     `xml:"uptime"`
	Distance      *xmlDistance   `xml:"distance"`
	TCPSequence   *xmlTCPSeq     `xml:"tcpsequence"`
	IPIDSequence  *xmlClassSeq   `xml:"ipidsequence"`
	TCPTSSequence *xmlClassSeq   `xml:"tcptssequence"`
	Times         *xmlTimes      `xml:"times"`
	Trace         *xmlTrace      `xml:"trace"`
	HostScripts   []xmlScript    `xml:"hostscript>script"`
	Smurfs        []xmlSmurf     `xml:"smurf"`
}

type xmlStatus struct {
	State     string `xml:"state,attr"`
	Reason    string `xml:"reason,attr"`
	ReasonTTL string `xml:"reason_ttl,attr"`
}

type xmlAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
	Vendor   string `xml:"vendor,attr"`
}

type xmlHostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type xmlPort struct {
	Protocol string       `xml:"protocol,attr"`
	PortID   string       `xml:"portid,attr"`
	State    xmlPortState `xml:"state"`
	Owner    *xmlOwner    `xml:"owner"`
	Service  *xmlService  `xml:"service"`
	Scripts  []xmlScript  `xml:"script"`
}

type xmlPortState struct {
	State     string `xml:"state,attr"`
	Reason    string `xml:"reason,attr"`
	ReasonTTL string `xml:"reason_ttl,attr"`
	ReasonIP  string `xml:"reason_ip,attr"`
}

type xmlOwner struct {
	Name string `xml:"name,attr"`
}

type xmlService struct {
	Name       string   `xml:"name,attr"`
	Product    string   `xml:"product,attr"`
	Version    string   `xml:"version,attr"`
	ExtraInfo  string   `xml:"extrainfo,attr"`
	OSType     string   `xml:"ostype,attr"`
	Tunnel     string   `xml:"tunnel,attr"`
	Proto      string   `xml:"proto,attr"`
	RPCNum     string   `xml:"rpcnum,attr"`
	LowVer     string   `xml:"lowver,attr"`
	HighVer    string   `xml:"highver,attr"`
	Hostname   string   `xml:"hostname,attr"`
	ServiceFP  string   `xml:"servicefp,attr"`
	DeviceType string   `xml:"devicetype,attr"`
	Method     string   `xml:"method,attr"`
	Conf       string   `xml:"conf,attr"`
	CPEs       []string `xml:"cpe"`
}

type xmlScript struct {
	ID     string     `xml:"id,attr"`
	Output string     `xml:"output,attr"`
	Tables []xmlTable `xml:"table"`
	Elems  []xmlElem  `xml:"elem"`
}

type xmlTable struct {
	Key    string     `xml:"key,attr"`
	Tables []xmlTable `xml:"table"`
	Elems  []xmlElem  `xml:"elem"`
}

type xmlElem struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlOS struct {
	PortsUsed    []xmlPortUsed    `xml:"portused"`
	Matches      []xmlOSMatch     `xml:"osmatch"`
	Fingerprints []xmlFingerprint `xml:"osfingerprint"`
}

type xmlPortUsed struct {
	State    string `xml:"state,attr"`
	Protocol string `xml:"proto,attr"`
	PortID   string `xml:"portid,attr"`
}

type xmlOSMatch struct {
	Name     string       `xml:"name,attr"`
	Accuracy string       `xml:"accuracy,attr"`
	Line     string       `xml:"line,attr"`
	Classes  []xmlOSClass `xml:"osclass"`
}

type xmlOSClass struct {
	Type     string   `xml:"type,attr"`
	Vendor   string   `xml:"vendor,attr"`
	Family   string   `xml:"osfamily,attr"`
	Gen      string   `xml:"osgen,attr"`
	Accuracy string   `xml:"accuracy,attr"`
	CPEs     []string `xml:"cpe"`
}

type xmlFingerprint struct {
	Fingerprint string `xml:"fingerprint,attr"`
}

type xmlUptime struct {
	Seconds  string `xml:"seconds,attr"`
	LastBoot string `xml:"lastboot,attr"`
}

type xmlDistance struct {
	Value string `xml:"value,attr"`
}

type xmlTCPSeq struct {
	Index      string `xml:"index,attr"`
	Difficulty string `xml:"difficulty,attr"`
	Values     string `xml:"values,attr"`
}

type xmlClassSeq struct {
	Class  string `xml:"class,attr"`
	Values string `xml:"values,attr"`
}

type xmlTimes struct {
	SRTT   string `xml:"srtt,attr"`
	RTTVar string `xml:"rttvar,attr"`
	To     string `xml:"to,attr"`
}

type xmlTrace struct {
	Protocol string   `xml:"proto,attr"`
	Port     string   `xml:"port,attr"`
	Hops     []xmlHop `xml:"hop"`
}

type xmlHop struct {
	TTL    string `xml:"ttl,attr"`
	IPAddr string `xml:"ipaddr,attr"`
	RTT    string `xml:"rtt,attr"`
	Host   string `xml:"host,attr"`
}

type xmlSmurf struct {
	Responses string `xml:"responses,attr"`
}

type xmlRunStats struct {
	Finished xmlFinished  `xml:"finished"`
	Hosts    xmlHostStats `xml:"hosts"`
}

type xmlFinished struct {
	Time    string `xml:"time,attr"`
	TimeStr string `xml:"timestr,attr"`
	Elapsed string `xml:"elapsed,attr"`
	Summary string `xml:"summary,attr"`
	Exit    string `xml:"exit,attr"`
}

type xmlHostStats struct {
	Up    string `xml:"up,attr"`
	Down  string `xml:"down,attr"`
	Total string `xml:"total,attr"`
}

// ParseXML parses nmap XML output into a canonical scan.
func (p *Parser) ParseXML(raw string) (*models.Scan, error) {
	var run xmlRun
	if err := xml.Unmarshal([]byte(raw), &run); err != nil {
		return nil, fmt.Errorf("no nmaprun root element found: %w", err)
	}

	scan := p.newScan()
	scan.Scanner = run.Scanner
	scan.Version = run.Version
	scan.Args = run.Args
	scan.Start = toInt64(run.Start)
	scan.StartStr = run.StartStr
	scan.Verbose = toInt(run.Verbose.Level)
	scan.Debugging = toInt(run.Debugging.Level)

	for _, si := range run.ScanInfos {
		scan.ScanInfos = append(scan.ScanInfos, models.ScanInfo{
			Type:        si.Type,
			Protocol:    si.Protocol,
			NumServices: toInt(si.NumServices),
			Services:    si.Services,
		})
	}

	for _, xh := range run.Hosts {
		scan.Hosts = append(scan.Hosts, p.convertHost(xh))
	}

	scan.RunStats = models.RunStats{
		FinishedAt: toInt64(run.RunStats.Finished.Time),
		TimeStr:    run.RunStats.Finished.TimeStr,
		Elapsed:    toFloat(run.RunStats.Finished.Elapsed),
		Summary:    run.RunStats.Finished.Summary,
		Exit:       run.RunStats.Finished.Exit,
		HostsUp:    toInt(run.RunStats.Hosts.Up),
		HostsDown:  toInt(run.RunStats.Hosts.Down),
		HostsTotal: toInt(run.RunStats.Hosts.Total),
	}

	aggregate.Refresh(scan)
	return scan, nil
}

func (p *Parser) convertHost(xh xmlHost) *models.Host {
	h := p.newHost()
	h.StartTime = toInt64(xh.StartTime)
	h.EndTime = toInt64(xh.EndTime)

	// Hosts skipped due to scan timing have no status element at all; the
	// state stays "unknown" in that case.
	if xh.Status != nil {
		h.Status = models.Status{
			State:     xh.Status.State,
			Reason:    xh.Status.Reason,
			ReasonTTL: toInt(xh.Status.ReasonTTL),
		}
		if h.Status.State == "" {
			h.Status.State = "unknown"
		}
	}

	for _, a := range xh.Addresses {
		addr := models.Address{Addr: a.Addr, AddrType: a.AddrType, Vendor: a.Vendor}
		if addr.AddrType == "mac" && addr.Vendor == "" {
			addr.Vendor = p.vendorFor(addr.Addr)
		}
		h.Addresses = append(h.Addresses, addr)
	}

	for _, n := range xh.Hostnames {
		h.Hostnames = append(h.Hostnames, models.Hostname{Name: n.Name, Type: n.Type})
	}

	for _, xp := range xh.Ports {
		h.Ports = append(h.Ports, convertPort(xp))
	}

	if xh.OS != nil {
		for _, pu := range xh.OS.PortsUsed {
			h.OS.PortsUsed = append(h.OS.PortsUsed, models.PortUsed{
				State:    pu.State,
				Protocol: pu.Protocol,
				Port:     toInt(pu.PortID),
			})
		}
		for _, m := range xh.OS.Matches {
			match := models.OSMatch{
				Name:     m.Name,
				Accuracy: toInt(m.Accuracy),
				Line:     toInt(m.Line),
			}
			for _, c := range m.Classes {
				match.Classes = append(match.Classes, models.OSClass{
					Type:     c.Type,
					Vendor:   c.Vendor,
					Family:   c.Family,
					Gen:      c.Gen,
					Accuracy: toInt(c.Accuracy),
					CPEs:     append([]string(nil), c.CPEs...),
				})
			}
			h.OS.Matches = append(h.OS.Matches, match)
		}
		for _, f := range xh.OS.Fingerprints {
			h.OS.Fingerprints = append(h.OS.Fingerprints, f.Fingerprint)
		}
	}

	if xh.Uptime != nil {
		h.Uptime = models.Uptime{Seconds: toInt64(xh.Uptime.Seconds), LastBoot: xh.Uptime.LastBoot}
	}
	if xh.Distance != nil {
		h.Distance = models.Distance{Value: toInt(xh.Distance.Value)}
	}
	if xh.TCPSequence != nil {
		h.TCPSequence = models.TCPSequence{
			Index:      toInt(xh.TCPSequence.Index),
			Difficulty: xh.TCPSequence.Difficulty,
			Values:     xh.TCPSequence.Values,
		}
	}
	if xh.IPIDSequence != nil {
		h.IPIDSequence = models.IPIDSequence{Class: xh.IPIDSequence.Class, Values: xh.IPIDSequence.Values}
	}
	if xh.TCPTSSequence != nil {
		h.TCPTSSequence = models.TCPTSSequence{Class: xh.TCPTSSequence.Class, Values: xh.TCPTSSequence.Values}
	}
	if xh.Times != nil {
		h.Times = models.Times{SRTT: xh.Times.SRTT, RTTVar: xh.Times.RTTVar, To: xh.Times.To}
	}
	if xh.Trace != nil {
		h.Trace = models.Trace{Protocol: xh.Trace.Protocol, Port: toInt(xh.Trace.Port)}
		for _, hop := range xh.Trace.Hops {
			h.Trace.Hops = append(h.Trace.Hops, models.Hop{
				TTL:    toInt(hop.TTL),
				IPAddr: hop.IPAddr,
				RTT:    hop.RTT,
				Host:   hop.Host,
			})
		}
	}

	for _, s := range xh.HostScripts {
		h.HostScripts = append(h.HostScripts, convertScript(s))
	}
	for _, s := range xh.Smurfs {
		h.Smurfs = append(h.Smurfs, models.Smurf{Responses: s.Responses})
	}

	return h
}

func convertPort(xp xmlPort) models.Port {
	port := models.Port{
		Port:     toInt(xp.PortID),
		Protocol: xp.Protocol,
		State: models.PortState{
			State:     xp.State.State,
			Reason:    xp.State.Reason,
			ReasonTTL: toInt(xp.State.ReasonTTL),
			ReasonIP:  xp.State.ReasonIP,
		},
	}
	if xp.Owner != nil {
		port.Owner = xp.Owner.Name
	}
	if xp.Service != nil {
		port.Service = models.Service{
			Name:        xp.Service.Name,
			Product:     xp.Service.Product,
			Version:     xp.Service.Version,
			ExtraInfo:   xp.Service.ExtraInfo,
			OSType:      xp.Service.OSType,
			Tunnel:      xp.Service.Tunnel,
			Proto:       xp.Service.Proto,
			RPCNum:      toInt(xp.Service.RPCNum),
			LowVersion:  toInt(xp.Service.LowVer),
			HighVersion: toInt(xp.Service.HighVer),
			Hostname:    xp.Service.Hostname,
			ServiceFP:   xp.Service.ServiceFP,
			DeviceType:  xp.Service.DeviceType,
			Method:      xp.Service.Method,
			Conf:        toInt(xp.Service.Conf),
			CPEs:        append([]string(nil), xp.Service.CPEs...),
		}
	}
	for _, s := range xp.Scripts {
		port.Scripts = append(port.Scripts, convertScript(s))
	}
	return port
}

// convertScript maps a script node and its table/elem tree recursively.
func convertScript(xs xmlScript) models.Script {
	return models.Script{
		ID:       xs.ID,
		Output:   xs.Output,
		Elements: convertTree(xs.Tables, xs.Elems),
	}
}

func convertTree(tables []xmlTable, elems []xmlElem) []models.ScriptElement {
	var out []models.ScriptElement
	for _, e := range elems {
		out = append(out, models.ScriptElement{Key: e.Key, Value: e.Value})
	}
	for _, t := range tables {
		out = append(out, models.ScriptElement{
			Key:      t.Key,
			Children: convertTree(t.Tables, t.Elems),
		})
	}
	return out
}
