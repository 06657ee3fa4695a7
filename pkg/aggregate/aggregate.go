// Package aggregate derives scan-level and host-level summary statistics from
// a host collection. It is pure and idempotent: re-running it over an already
// aggregated scan reproduces the same output.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/openrecon/scanview/pkg/models"
)

// Refresh recomputes every derived field of the scan from its host list:
// the per-host convenience scalars, the host counters, the scan duration and
// the unique port/service rollups. All three parsers and the merge reconciler
// call this as their last step.
func Refresh(scan *models.Scan) {
	for _, h := range scan.Hosts {
		h.Refresh()
	}

	scan.TotalHosts = len(scan.Hosts)
	scan.HostsUp, scan.HostsDown = 0, 0
	for _, h := range scan.Hosts {
		switch h.Status.State {
		case "up":
			scan.HostsUp++
		case "down":
			scan.HostsDown++
		}
	}
	scan.HostsOther = scan.TotalHosts - scan.HostsUp - scan.HostsDown

	scan.Duration = scan.RunStats.Elapsed
	if scan.Duration == 0 && scan.RunStats.FinishedAt > 0 && scan.Start > 0 {
		scan.Duration = float64(scan.RunStats.FinishedAt - scan.Start)
	}

	scan.UniquePorts, scan.UniqueServices = Summarize(scan.Hosts)
}

// Summarize groups the ports of a host collection into order-stable port and
// service rollups. Hosts with no usable address contribute under an empty
// address string rather than being dropped.
func Summarize(hosts []*models.Host) ([]models.PortSummary, []models.ServiceSummary) {
	portIndex := make(map[string]*models.PortSummary)
	svcIndex := make(map[string]*models.ServiceSummary)

	for _, h := range hosts {
		addr := h.Addr()
		for _, p := range h.Ports {
			key := fmt.Sprintf("%d/%s/%s", p.Port, p.Protocol, p.State.State)
			ps, ok := portIndex[key]
			if !ok {
				ps = &models.PortSummary{
					Port:     p.Port,
					Protocol: p.Protocol,
					State:    p.State.State,
					Service:  p.Service.Name,
					Product:  p.Service.Product,
				}
				portIndex[key] = ps
			}
			if ps.Service == "" {
				ps.Service = p.Service.Name
			}
			if ps.Product == "" {
				ps.Product = p.Service.Product
			}
			ps.Hosts = appendUnique(ps.Hosts, addr)
			ps.Count++

			if p.Service.Name == "" {
				continue
			}
			skey := fmt.Sprintf("%s/%s/%s", p.Service.Name, p.Service.Product, p.Service.Version)
			ss, ok := svcIndex[skey]
			if !ok {
				ss = &models.ServiceSummary{
					Name:    p.Service.Name,
					Product: p.Service.Product,
					Version: p.Service.Version,
				}
				svcIndex[skey] = ss
			}
			ss.Ports = appendUniqueInt(ss.Ports, p.Port)
			ss.Hosts = appendUnique(ss.Hosts, addr)
			for _, cpe := range p.Service.CPEs {
				ss.CPEs = appendUnique(ss.CPEs, cpe)
			}
		}
	}

	ports := make([]models.PortSummary, 0, len(portIndex))
	for _, ps := range portIndex {
		ports = append(ports, *ps)
	}
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].Port != ports[j].Port {
			return ports[i].Port < ports[j].Port
		}
		if ports[i].Protocol != ports[j].Protocol {
			return ports[i].Protocol < ports[j].Protocol
		}
		return ports[i].State < ports[j].State
	})

	services := make([]models.ServiceSummary, 0, len(svcIndex))
	for _, ss := range svcIndex {
		sort.Ints(ss.Ports)
		services = append(services, *ss)
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].Name != services[j].Name {
			return services[i].Name < services[j].Name
		}
		if services[i].Product != services[j].Product {
			return services[i].Product < services[j].Product
		}
		return services[i].Version < services[j].Version
	})

	return ports, services
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func appendUniqueInt(list []int, v int) []int {
	for _, n := range list {
		if n == v {
			return list
		}
	}
	return append(list, v)
}
