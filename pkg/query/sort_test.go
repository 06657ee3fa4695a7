package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openrecon/scanview/pkg/models"
)

func hostAt(id, ip string, open int) *models.Host {
	h := &models.Host{
		ID:        id,
		Status:    models.Status{State: "up"},
		Addresses: []models.Address{{Addr: ip, AddrType: "ipv4"}},
	}
	for i := 0; i < open; i++ {
		h.Ports = append(h.Ports, models.Port{
			Port: 1000 + i, Protocol: "tcp",
			State: models.PortState{State: "open"},
		})
	}
	h.Refresh()
	return h
}

func TestApplySortDottedQuad(t *testing.T) {
	hosts := []*models.Host{
		hostAt("a", "192.168.1.100", 0),
		hostAt("b", "192.168.1.2", 0),
		hostAt("c", "192.168.1.20", 0),
		hostAt("d", "10.0.0.1", 0),
	}

	out := ApplySort(hosts, []SortKey{{Field: "ip"}})
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(out))

	out = ApplySort(hosts, []SortKey{{Field: "ip", Descending: true}})
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(out))
}

func TestApplySortMultiKey(t *testing.T) {
	hosts := []*models.Host{
		hostAt("a", "192.168.1.3", 1),
		hostAt("b", "192.168.1.1", 2),
		hostAt("c", "192.168.1.2", 2),
	}

	out := ApplySort(hosts, []SortKey{
		{Field: "open_ports", Descending: true},
		{Field: "ip"},
	})
	assert.Equal(t, []string{"b", "c", "a"}, ids(out))
}

func TestApplySortIsStable(t *testing.T) {
	// Equal keys keep their original relative order.
	hosts := []*models.Host{
		hostAt("first", "192.168.1.1", 1),
		hostAt("second", "192.168.1.2", 1),
		hostAt("third", "192.168.1.3", 1),
	}
	out := ApplySort(hosts, []SortKey{{Field: "open_ports"}})
	assert.Equal(t, []string{"first", "second", "third"}, ids(out))
}

func TestApplySortDoesNotMutateInput(t *testing.T) {
	hosts := []*models.Host{
		hostAt("b", "192.168.1.2", 0),
		hostAt("a", "192.168.1.1", 0),
	}
	out := ApplySort(hosts, []SortKey{{Field: "ip"}})
	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Equal(t, []string{"b", "a"}, ids(hosts))

	// No keys still returns a copy, in the original order.
	copied := ApplySort(hosts, nil)
	assert.Equal(t, ids(hosts), ids(copied))
}

func TestFilterSearchSortComposition(t *testing.T) {
	hosts := fixtureHosts()

	filtered := ApplyFilters(hosts, RuleGroup{Logic: LogicAnd, Rules: []Rule{
		rule("status", OpEquals, "up"),
	}})
	searched := ApplySearch(filtered, "192.168")
	sorted := ApplySort(searched, []SortKey{{Field: "open_ports", Descending: true}})

	// Each stage narrows or reorders; no stage invents hosts.
	assert.Subset(t, ids(hosts), ids(sorted))
	assert.Len(t, sorted, len(searched))
	assert.Equal(t, []string{"h2", "h1"}, ids(sorted))
}
