// Package merge reconciles a freshly parsed scan into an existing one.
//
// Host identity is the primary IPv4 address, falling back to IPv6, never the
// generated id, which is per-parse. The policy is last-writer-wins with
// service confidence as the tiebreaker: port state and scripts take the
// incoming value, a service block is replaced only when the incoming
// detection is strictly more confident.
package merge

import (
	"github.com/openrecon/scanview/pkg/aggregate"
	"github.com/openrecon/scanview/pkg/models"
)

// Scans folds incoming into existing and returns the merged scan as a new
// value. Neither argument is mutated; callers holding the pre-merge scans
// keep consistent views.
func Scans(existing, incoming *models.Scan) *models.Scan {
	merged := *existing
	merged.Hosts = make([]*models.Host, 0, len(existing.Hosts))
	for _, h := range existing.Hosts {
		merged.Hosts = append(merged.Hosts, h.Clone())
	}

	index := make(map[string]*models.Host, len(merged.Hosts))
	for _, h := range merged.Hosts {
		if addr := h.Addr(); addr != "" {
			index[addr] = h
		}
	}

	for _, in := range incoming.Hosts {
		target, ok := index[in.Addr()]
		if !ok || in.Addr() == "" {
			clone := in.Clone()
			merged.Hosts = append(merged.Hosts, clone)
			if addr := clone.Addr(); addr != "" {
				index[addr] = clone
			}
			continue
		}
		mergeHost(target, in)
	}

	aggregate.Refresh(&merged)
	return &merged
}

func mergeHost(target, in *models.Host) {
	for _, port := range in.Ports {
		existing := target.FindPort(port.Port, port.Protocol)
		if existing == nil {
			copied := port
			copied.Service.CPEs = append([]string(nil), port.Service.CPEs...)
			copied.Scripts = mergeScripts(nil, port.Scripts, true)
			target.Ports = append(target.Ports, copied)
			continue
		}

		existing.Scripts = mergeScripts(existing.Scripts, port.Scripts, true)

		// The incoming output is assumed newer: state is last-writer-wins,
		// the service block only moves on strictly higher confidence.
		if port.Service.Conf > existing.Service.Conf {
			existing.Service = port.Service
			existing.Service.CPEs = append([]string(nil), port.Service.CPEs...)
		}
		if port.State.State != existing.State.State {
			existing.State = port.State
		}
	}

	// Host-level scripts are not confidence-scored; union by id without
	// overwriting.
	target.HostScripts = mergeScripts(target.HostScripts, in.HostScripts, false)
}

// mergeScripts unions incoming scripts into existing by script id. When
// overwrite is set, an already-seen id is replaced by the incoming script;
// otherwise it is kept.
func mergeScripts(existing, incoming []models.Script, overwrite bool) []models.Script {
	out := existing
	for _, in := range incoming {
		found := false
		for i := range out {
			if out[i].ID == in.ID {
				if overwrite {
					out[i] = in
				}
				found = true
				break
			}
		}
		if !found {
			out = append(out, in)
		}
	}
	return out
}
