package nmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrecon/scanview/pkg/models"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV -O 192.168.1.0/24" start="1710000000" startstr="Sat Mar  9 16:00:00 2024" version="7.94">
<scaninfo type="syn" protocol="tcp" numservices="1000" services="1-1000"/>
<verbose level="1"/>
<debugging level="0"/>
<host starttime="1710000001" endtime="1710000042">
<status state="up" reason="arp-response" reason_ttl="0"/>
<address addr="192.168.1.1" addrtype="ipv4"/>
<address addr="00:0C:29:4F:8E:35" addrtype="mac" vendor="VMware, Inc."/>
<hostnames>
<hostname name="gw.lab.local" type="PTR"/>
</hostnames>
<ports>
<port protocol="tcp" portid="22">
<state state="open" reason="syn-ack" reason_ttl="64"/>
<service name="ssh" product="OpenSSH" version="8.9p1" extrainfo="Ubuntu Linux; protocol 2.0" method="probed" conf="10">
<cpe>cpe:/a:openbsd:openssh:8.9p1</cpe>
</service>
<script id="ssh-hostkey" output="2048 aa:bb (RSA)">
<table key="keys">
<table>
<elem key="type">ssh-rsa</elem>
<elem key="bits">2048</elem>
</table>
</table>
</script>
</port>
<port protocol="tcp" portid="80">
<state state="closed" reason="reset" reason_ttl="64"/>
</port>
<port protocol="udp" portid="53">
<state state="open|filtered" reason="no-response" reason_ttl="0"/>
<service name="domain" method="table" conf="3"/>
</port>
</ports>
<os>
<portused state="open" proto="tcp" portid="22"/>
<osmatch name="Linux 5.0 - 5.14" accuracy="96" line="65432">
<osclass type="general purpose" vendor="Linux" osfamily="Linux" osgen="5.X" accuracy="96">
<cpe>cpe:/o:linux:linux_kernel:5</cpe>
</osclass>
</osmatch>
</os>
<uptime seconds="86500" lastboot="Fri Mar  8 15:58:00 2024"/>
<distance value="1"/>
<trace proto="tcp" port="22">
<hop ttl="1" ipaddr="192.168.1.1" rtt="0.42" host="gw.lab.local"/>
</trace>
<hostscript>
<script id="smb-os-discovery" output="OS: Linux"/>
</hostscript>
</host>
<host starttime="1710000002" endtime="1710000040">
<status state="down" reason="no-response" reason_ttl="0"/>
<address addr="192.168.1.2" addrtype="ipv4"/>
</host>
<runstats>
<finished time="1710000050" timestr="Sat Mar  9 16:00:50 2024" elapsed="50.12" summary="Nmap done at Sat Mar  9 16:00:50 2024; 2 IP addresses (1 host up) scanned in 50.12 seconds" exit="success"/>
<hosts up="1" down="1" total="2"/>
</runstats>
</nmaprun>`

func testParser() *Parser {
	return NewParser(WithIDSource(&models.SequenceSource{Prefix: "t"}))
}

func TestParseXML(t *testing.T) {
	scan, err := testParser().ParseXML(sampleXML)
	require.NoError(t, err)

	assert.Equal(t, "nmap", scan.Scanner)
	assert.Equal(t, "7.94", scan.Version)
	assert.Equal(t, "nmap -sV -O 192.168.1.0/24", scan.Args)
	assert.Equal(t, int64(1710000000), scan.Start)
	assert.Equal(t, 1, scan.Verbose)
	require.Len(t, scan.ScanInfos, 1)
	assert.Equal(t, 1000, scan.ScanInfos[0].NumServices)

	require.Len(t, scan.Hosts, 2)
	h := scan.Hosts[0]
	assert.Equal(t, "up", h.Status.State)
	assert.Equal(t, "arp-response", h.Status.Reason)
	assert.Equal(t, "192.168.1.1", h.IPv4)
	assert.Equal(t, "00:0C:29:4F:8E:35", h.MAC)
	assert.Equal(t, "VMware, Inc.", h.Vendor)
	assert.Equal(t, "gw.lab.local", h.Hostname)
	assert.Equal(t, "Linux 5.0 - 5.14", h.OSName)

	require.Len(t, h.Ports, 3)
	ssh := h.FindPort(22, "tcp")
	require.NotNil(t, ssh)
	assert.Equal(t, "open", ssh.State.State)
	assert.Equal(t, "OpenSSH", ssh.Service.Product)
	assert.Equal(t, 10, ssh.Service.Conf)
	assert.Equal(t, []string{"cpe:/a:openbsd:openssh:8.9p1"}, ssh.Service.CPEs)

	assert.Equal(t, 1, h.OpenPorts)
	assert.Equal(t, 1, h.ClosedPorts)
	assert.Equal(t, 1, h.FilteredPorts) // open|filtered counts as filtered

	assert.Equal(t, int64(86500), h.Uptime.Seconds)
	assert.Equal(t, 1, h.Distance.Value)
	require.Len(t, h.Trace.Hops, 1)
	assert.Equal(t, "192.168.1.1", h.Trace.Hops[0].IPAddr)
	require.Len(t, h.HostScripts, 1)
	assert.Equal(t, "smb-os-discovery", h.HostScripts[0].ID)

	assert.Equal(t, 2, scan.TotalHosts)
	assert.Equal(t, 1, scan.HostsUp)
	assert.Equal(t, 1, scan.HostsDown)
	assert.Equal(t, 0, scan.HostsOther)
	assert.InDelta(t, 50.12, scan.Duration, 0.001)
	assert.Equal(t, "success", scan.RunStats.Exit)
}

func TestParseXMLScriptTree(t *testing.T) {
	scan, err := testParser().ParseXML(sampleXML)
	require.NoError(t, err)

	ssh := scan.Hosts[0].FindPort(22, "tcp")
	require.NotNil(t, ssh)
	require.Len(t, ssh.Scripts, 1)

	script := ssh.Scripts[0]
	assert.Equal(t, "ssh-hostkey", script.ID)
	require.Len(t, script.Elements, 1)
	keys := script.Elements[0]
	assert.Equal(t, "keys", keys.Key)
	require.Len(t, keys.Children, 1)
	require.Len(t, keys.Children[0].Children, 2)
	assert.Equal(t, "type", keys.Children[0].Children[0].Key)
	assert.Equal(t, "ssh-rsa", keys.Children[0].Children[0].Value)
}

func TestParseXMLMissingRoot(t *testing.T) {
	_, err := testParser().ParseXML(`<foo><bar/></foo>`)
	assert.Error(t, err)
}

func TestParseXMLLenientFields(t *testing.T) {
	// Malformed numbers and a missing status element degrade single fields,
	// never the document.
	raw := `<nmaprun scanner="nmap" start="not-a-number">
<host>
<address addr="10.0.0.5" addrtype="ipv4"/>
<ports>
<port protocol="tcp" portid="banana"><state state="open" reason_ttl="x"/></port>
</ports>
</host>
</nmaprun>`
	scan, err := testParser().ParseXML(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(0), scan.Start)
	require.Len(t, scan.Hosts, 1)
	h := scan.Hosts[0]
	assert.Equal(t, "unknown", h.Status.State)
	assert.Equal(t, "", h.Status.Reason)
	assert.Equal(t, 0, h.Status.ReasonTTL)
	require.Len(t, h.Ports, 1)
	assert.Equal(t, 0, h.Ports[0].Port)
	assert.Equal(t, "open", h.Ports[0].State.State)
}

func TestParseXMLFirstAddressOfEachTypeWins(t *testing.T) {
	raw := `<nmaprun scanner="nmap">
<host>
<status state="up"/>
<address addr="10.0.0.1" addrtype="ipv4"/>
<address addr="10.0.0.2" addrtype="ipv4"/>
<address addr="fe80::1" addrtype="ipv6"/>
</host>
</nmaprun>`
	scan, err := testParser().ParseXML(raw)
	require.NoError(t, err)

	h := scan.Hosts[0]
	assert.Equal(t, "10.0.0.1", h.IPv4)
	assert.Equal(t, "fe80::1", h.IPv6)
	assert.Len(t, h.Addresses, 3) // the raw list keeps every address
}

func TestParseXMLVendorLookupFillsGap(t *testing.T) {
	raw := `<nmaprun scanner="nmap">
<host>
<status state="up"/>
<address addr="10.0.0.1" addrtype="ipv4"/>
<address addr="00:0C:29:AA:BB:CC" addrtype="mac"/>
</host>
</nmaprun>`
	p := NewParser(
		WithIDSource(&models.SequenceSource{Prefix: "t"}),
		WithVendorLookup(func(mac string) string { return "VMware, Inc." }),
	)
	scan, err := p.ParseXML(raw)
	require.NoError(t, err)
	assert.Equal(t, "VMware, Inc.", scan.Hosts[0].Vendor)
}
