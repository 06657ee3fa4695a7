package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrecon/scanview/pkg/config"
	"github.com/openrecon/scanview/pkg/models"
	"github.com/openrecon/scanview/pkg/nmap"
	"github.com/openrecon/scanview/pkg/query"
)

const uploadXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sV 192.168.1.0/24" start="1710000000" version="7.94">
<host starttime="1710000010" endtime="1710000040">
<status state="up" reason="arp-response"/>
<address addr="192.168.1.1" addrtype="ipv4"/>
<hostnames><hostname name="gw.lab.local" type="PTR"/></hostnames>
<ports>
<port protocol="tcp" portid="22"><state state="open" reason="syn-ack"/><service name="ssh" product="OpenSSH" version="8.9p1" conf="10"/></port>
<port protocol="tcp" portid="80"><state state="open" reason="syn-ack"/><service name="http" product="nginx" conf="10"/></port>
</ports>
</host>
<host starttime="1710000010" endtime="1710000041">
<status state="down" reason="no-response"/>
<address addr="192.168.1.7" addrtype="ipv4"/>
</host>
<runstats><finished time="1710000100" elapsed="100.0"/><hosts up="1" down="1" total="2"/></runstats>
</nmaprun>`

const mergeXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sU 192.168.1.1" start="1710001000" version="7.94">
<host starttime="1710001010" endtime="1710001040">
<status state="up" reason="echo-reply"/>
<address addr="192.168.1.1" addrtype="ipv4"/>
<ports>
<port protocol="udp" portid="53"><state state="open" reason="udp-response"/><service name="domain" conf="8"/></port>
</ports>
</host>
<runstats><finished time="1710001100" elapsed="90.0"/><hosts up="1" down="0" total="1"/></runstats>
</nmaprun>`

func testServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	parser := nmap.NewParser(nmap.WithIDSource(&models.SequenceSource{Prefix: "api"}))
	return NewServer(cfg, parser, nil)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadScan(t *testing.T, s *Server) *models.Scan {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/scans", uploadXML)
	require.Equal(t, http.StatusCreated, rec.Code)

	var scan models.Scan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	require.NotEmpty(t, scan.ID)
	return &scan
}

func TestUploadAndGetScan(t *testing.T) {
	s := testServer(t, config.DefaultConfig())
	scan := uploadScan(t, s)

	assert.Equal(t, 2, scan.TotalHosts)
	assert.Equal(t, 1, scan.HostsUp)
	assert.Equal(t, 1, scan.HostsDown)

	rec := doRequest(t, s, http.MethodGet, "/api/scans/"+scan.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/scans/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsGarbage(t *testing.T) {
	s := testServer(t, config.DefaultConfig())
	rec := doRequest(t, s, http.MethodPost, "/api/scans", "not a scan at all")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadSizeLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxInputBytes = 64
	s := testServer(t, cfg)

	rec := doRequest(t, s, http.MethodPost, "/api/scans", strings.Repeat("x", 100))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestListScans(t *testing.T) {
	s := testServer(t, config.DefaultConfig())

	rec := doRequest(t, s, http.MethodGet, "/api/scans", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	scan := uploadScan(t, s)

	rec = doRequest(t, s, http.MethodGet, "/api/scans", "")
	var summaries []ScanSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, scan.ID, summaries[0].ID)
	assert.Equal(t, "nmap", summaries[0].Scanner)
	assert.Equal(t, 2, summaries[0].TotalHosts)
}

func TestQueryHosts(t *testing.T) {
	s := testServer(t, config.DefaultConfig())
	scan := uploadScan(t, s)

	type hostsResponse struct {
		Total int            `json:"total"`
		Count int            `json:"count"`
		Hosts []*models.Host `json:"hosts"`
	}

	queryHosts := func(params url.Values) hostsResponse {
		path := fmt.Sprintf("/api/scans/%s/hosts?%s", scan.ID, params.Encode())
		rec := doRequest(t, s, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp hostsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	// No parameters: everything back.
	resp := queryHosts(url.Values{})
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Count)

	// Filter on status.
	filter, err := json.Marshal(query.RuleGroup{Logic: query.LogicAnd, Rules: []query.Rule{
		{Field: "status", Operator: query.OpEquals, Value: "up", Enabled: true},
	}})
	require.NoError(t, err)
	resp = queryHosts(url.Values{"filter": {string(filter)}})
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "192.168.1.1", resp.Hosts[0].IPv4)

	// Search.
	resp = queryHosts(url.Values{"search": {"nginx"}})
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "192.168.1.1", resp.Hosts[0].IPv4)

	// Sort descending by IP.
	resp = queryHosts(url.Values{"sort": {"ip:desc"}})
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "192.168.1.7", resp.Hosts[0].IPv4)

	// Malformed filter JSON is a client error.
	path := fmt.Sprintf("/api/scans/%s/hosts?filter=%s", scan.ID, url.QueryEscape("{bad json"))
	rec := doRequest(t, s, http.MethodGet, path, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeScan(t *testing.T) {
	s := testServer(t, config.DefaultConfig())
	scan := uploadScan(t, s)

	rec := doRequest(t, s, http.MethodPost, "/api/scans/"+scan.ID+"/merge", mergeXML)
	require.Equal(t, http.StatusOK, rec.Code)

	var merged models.Scan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, scan.ID, merged.ID)
	assert.Equal(t, 2, merged.TotalHosts)

	var gateway *models.Host
	for _, h := range merged.Hosts {
		if h.IPv4 == "192.168.1.1" {
			gateway = h
		}
	}
	require.NotNil(t, gateway)
	assert.Len(t, gateway.Ports, 3)

	// The stored scan reflects the merge.
	rec = doRequest(t, s, http.MethodGet, "/api/scans/"+scan.ID, "")
	var stored models.Scan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, 2, stored.TotalHosts)

	// Merging into an unknown scan is a 404.
	rec = doRequest(t, s, http.MethodPost, "/api/scans/nope/merge", mergeXML)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseSortExpr(t *testing.T) {
	keys := ParseSortExpr("ip:asc, open_ports:desc ,,hostname")
	require.Len(t, keys, 3)
	assert.Equal(t, query.SortKey{Field: "ip"}, keys[0])
	assert.Equal(t, query.SortKey{Field: "open_ports", Descending: true}, keys[1])
	assert.Equal(t, query.SortKey{Field: "hostname"}, keys[2])

	assert.Empty(t, ParseSortExpr(""))
	assert.Empty(t, ParseSortExpr(" , :desc"))
}
