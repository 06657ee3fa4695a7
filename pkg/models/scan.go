package models

// Scan is the root entity for one ingested nmap run
type Scan struct {
	ID        string     `json:"id"`         // Process-unique identifier for this scan
	Scanner   string     `json:"scanner"`    // Scanner name (normally "nmap")
	Version   string     `json:"version"`    // Scanner version
	Args      string     `json:"args"`       // Command line the scan was invoked with
	Start     int64      `json:"start"`      // Declared start time, epoch seconds
	StartStr  string     `json:"start_str"`  // Human readable start time
	ScanInfos []ScanInfo `json:"scan_infos"` // One entry per scan type/protocol
	Verbose   int        `json:"verbose"`    // Verbosity level
	Debugging int        `json:"debugging"`  // Debug level
	Hosts     []*Host    `json:"hosts"`      // Scanned endpoints
	RunStats  RunStats   `json:"run_stats"`  // Finish time and host totals

	// Derived fields, recomputed from Hosts after every mutation
	TotalHosts     int              `json:"total_hosts"`
	HostsUp        int              `json:"hosts_up"`
	HostsDown      int              `json:"hosts_down"`
	HostsOther     int              `json:"hosts_other"`
	Duration       float64          `json:"duration"` // Scan duration in seconds
	UniquePorts    []PortSummary    `json:"unique_ports"`
	UniqueServices []ServiceSummary `json:"unique_services"`
}

// ScanInfo describes one scan type performed during the run
type ScanInfo struct {
	Type        string `json:"type"`         // e.g. "syn", "connect"
	Protocol    string `json:"protocol"`     // e.g. "tcp", "udp"
	NumServices int    `json:"num_services"` // Number of services probed
	Services    string `json:"services"`     // Port spec as printed by the scanner
}

// RunStats carries the run statistics block of a scan
type RunStats struct {
	FinishedAt int64   `json:"finished_at"` // Finish time, epoch seconds
	TimeStr    string  `json:"time_str"`    // Human readable finish time
	Elapsed    float64 `json:"elapsed"`     // Elapsed seconds as reported
	Summary    string  `json:"summary"`     // Free text summary line
	Exit       string  `json:"exit"`        // Exit status ("success" or "error")
	HostsUp    int     `json:"hosts_up"`    // Up count as reported by the scanner
	HostsDown  int     `json:"hosts_down"`  // Down count as reported by the scanner
	HostsTotal int     `json:"hosts_total"` // Total count as reported by the scanner
}

// Host represents one scanned endpoint
type Host struct {
	ID            string        `json:"id"`         // Process-unique identifier, not stable across re-parses
	StartTime     int64         `json:"start_time"` // Epoch seconds
	EndTime       int64         `json:"end_time"`   // Epoch seconds
	Status        Status        `json:"status"`
	Addresses     []Address     `json:"addresses"` // Ordered; IPv4/IPv6/MAC
	Hostnames     []Hostname    `json:"hostnames"`
	Ports         []Port        `json:"ports"`
	OS            OSInfo        `json:"os"`
	Uptime        Uptime        `json:"uptime"`
	Distance      Distance      `json:"distance"`
	TCPSequence   TCPSequence   `json:"tcp_sequence"`
	IPIDSequence  IPIDSequence  `json:"ipid_sequence"`
	TCPTSSequence TCPTSSequence `json:"tcpts_sequence"`
	Times         Times         `json:"times"`
	Trace         Trace         `json:"trace"`
	HostScripts   []Script      `json:"host_scripts"` // Host-level NSE results
	Smurfs        []Smurf       `json:"smurfs"`

	// Derived convenience scalars, recomputed from the lists above
	IPv4          string `json:"ipv4"`     // First IPv4 address
	IPv6          string `json:"ipv6"`     // First IPv6 address
	MAC           string `json:"mac"`      // First MAC address
	Vendor        string `json:"vendor"`   // Vendor of the first MAC address
	Hostname      string `json:"hostname"` // First hostname
	OSName        string `json:"os_name"`  // Best OS match name
	OpenPorts     int    `json:"open_ports"`
	ClosedPorts   int    `json:"closed_ports"`
	FilteredPorts int    `json:"filtered_ports"`
}

// Status is the up/down state of a host
type Status struct {
	State     string `json:"state"`  // up, down, unknown, skipped
	Reason    string `json:"reason"` // e.g. "echo-reply", "arp-response"
	ReasonTTL int    `json:"reason_ttl"`
}

// Address is one network address of a host
type Address struct {
	Addr     string `json:"addr"`
	AddrType string `json:"addr_type"` // ipv4, ipv6, mac
	Vendor   string `json:"vendor"`    // MAC vendor, optional
}

// Hostname is one name of a host together with its origin
type Hostname struct {
	Name string `json:"name"`
	Type string `json:"type"` // user, PTR or empty
}

// Port is one probed port of a host, keyed by (Protocol, Port)
type Port struct {
	Port     int       `json:"port"`
	Protocol string    `json:"protocol"` // tcp, udp, sctp, ...
	State    PortState `json:"state"`
	Service  Service   `json:"service"`
	Scripts  []Script  `json:"scripts"` // Per-port NSE results
	Owner    string    `json:"owner"`   // Process owning the port, if discovered
}

// PortState is the observed state of a port
type PortState struct {
	State     string `json:"state"` // open, closed, filtered, open|filtered, ...
	Reason    string `json:"reason"`
	ReasonTTL int    `json:"reason_ttl"`
	ReasonIP  string `json:"reason_ip"`
}

// Service is the detected service behind a port
type Service struct {
	Name        string   `json:"name"`
	Product     string   `json:"product"`
	Version     string   `json:"version"`
	ExtraInfo   string   `json:"extra_info"`
	OSType      string   `json:"os_type"`
	Tunnel      string   `json:"tunnel"` // e.g. "ssl"
	Proto       string   `json:"proto"`  // Application protocol, e.g. "rpc"
	RPCNum      int      `json:"rpc_num"`
	LowVersion  int      `json:"low_version"`
	HighVersion int      `json:"high_version"`
	Hostname    string   `json:"hostname"`
	ServiceFP   string   `json:"service_fp"` // Raw service fingerprint
	DeviceType  string   `json:"device_type"`
	Method      string   `json:"method"` // table, probed
	Conf        int      `json:"conf"`   // Detection confidence, 0-10
	CPEs        []string `json:"cpes"`
}

// Script is an NSE script result attached to a host or a port
type Script struct {
	ID       string          `json:"id"`
	Output   string          `json:"output"`
	Elements []ScriptElement `json:"elements"`
}

// ScriptElement mirrors the scanner's table/elem structure. A leaf carries
// Value; a table carries Children.
type ScriptElement struct {
	Key      string          `json:"key"`
	Value    string          `json:"value"`
	Children []ScriptElement `json:"children"`
}

// OSInfo holds OS detection output for a host
type OSInfo struct {
	Matches      []OSMatch  `json:"matches"`
	Fingerprints []string   `json:"fingerprints"`
	PortsUsed    []PortUsed `json:"ports_used"`
}

// OSMatch is one candidate operating system
type OSMatch struct {
	Name     string    `json:"name"`
	Accuracy int       `json:"accuracy"` // 0-100
	Line     int       `json:"line"`     // Source line in the OS database
	Classes  []OSClass `json:"classes"`
}

// OSClass is the classification of an OS match
type OSClass struct {
	Type     string   `json:"type"`
	Vendor   string   `json:"vendor"`
	Family   string   `json:"family"`
	Gen      string   `json:"gen"`
	Accuracy int      `json:"accuracy"`
	CPEs     []string `json:"cpes"`
}

// PortUsed is a port the scanner relied on for OS detection
type PortUsed struct {
	State    string `json:"state"`
	Protocol string `json:"protocol"`
	Port     int    `json:"port"`
}

// Uptime is the scanner's uptime guess for a host
type Uptime struct {
	Seconds  int64  `json:"seconds"`
	LastBoot string `json:"last_boot"`
}

// Distance is the network distance in hops
type Distance struct {
	Value int `json:"value"`
}

// TCPSequence describes TCP ISN predictability
type TCPSequence struct {
	Index      int    `json:"index"`
	Difficulty string `json:"difficulty"`
	Values     string `json:"values"`
}

// IPIDSequence describes IP ID generation behaviour
type IPIDSequence struct {
	Class  string `json:"class"`
	Values string `json:"values"`
}

// TCPTSSequence describes TCP timestamp behaviour
type TCPTSSequence struct {
	Class  string `json:"class"`
	Values string `json:"values"`
}

// Times carries round-trip timing data for a host
type Times struct {
	SRTT   string `json:"srtt"`
	RTTVar string `json:"rtt_var"`
	To     string `json:"to"`
}

// Trace is a traceroute block
type Trace struct {
	Protocol string `json:"protocol"`
	Port     int    `json:"port"`
	Hops     []Hop  `json:"hops"`
}

// Hop is one traceroute hop
type Hop struct {
	TTL    int    `json:"ttl"`
	IPAddr string `json:"ip_addr"`
	RTT    string `json:"rtt"`
	Host   string `json:"host"`
}

// Smurf records smurf responses observed for a host
type Smurf struct {
	Responses string `json:"responses"`
}

// PortSummary groups hosts by (port, protocol, state) across a scan
type PortSummary struct {
	Port     int      `json:"port"`
	Protocol string   `json:"protocol"`
	State    string   `json:"state"`
	Service  string   `json:"service"`
	Product  string   `json:"product"`
	Hosts    []string `json:"hosts"` // Addresses exhibiting this combination
	Count    int      `json:"count"`
}

// ServiceSummary groups observations by (service name, product, version)
type ServiceSummary struct {
	Name    string   `json:"name"`
	Product string   `json:"product"`
	Version string   `json:"version"`
	Ports   []int    `json:"ports"`
	Hosts   []string `json:"hosts"`
	CPEs    []string `json:"cpes"`
}
