// Package query filters, searches and sorts host collections. It only reads
// its input; returned slices are fresh and safe to chain.
package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/openrecon/scanview/pkg/models"
)

// FieldKind partitions fields by the comparisons that make sense for them.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindIP     FieldKind = "ip"
)

// Field describes one filterable/sortable host attribute. UI collaborators
// enumerate these to build rule pickers.
type Field struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"kind"`
	Description string    `json:"description"`
}

type accessor func(h *models.Host) string

var fieldAccessors = map[string]accessor{
	"ip":             func(h *models.Host) string { return h.IPv4 },
	"ipv6":           func(h *models.Host) string { return h.IPv6 },
	"mac":            func(h *models.Host) string { return h.MAC },
	"vendor":         func(h *models.Host) string { return h.Vendor },
	"hostname":       func(h *models.Host) string { return h.Hostname },
	"os":             func(h *models.Host) string { return h.OSName },
	"status":         func(h *models.Host) string { return h.Status.State },
	"status_reason":  func(h *models.Host) string { return h.Status.Reason },
	"open_ports":     func(h *models.Host) string { return fmt.Sprintf("%d", h.OpenPorts) },
	"closed_ports":   func(h *models.Host) string { return fmt.Sprintf("%d", h.ClosedPorts) },
	"filtered_ports": func(h *models.Host) string { return fmt.Sprintf("%d", h.FilteredPorts) },
	"port_count":     func(h *models.Host) string { return fmt.Sprintf("%d", len(h.Ports)) },
	"uptime":         func(h *models.Host) string { return fmt.Sprintf("%d", h.Uptime.Seconds) },
	"distance":       func(h *models.Host) string { return fmt.Sprintf("%d", h.Distance.Value) },
	"start_time":     func(h *models.Host) string { return fmt.Sprintf("%d", h.StartTime) },
	"end_time":       func(h *models.Host) string { return fmt.Sprintf("%d", h.EndTime) },
}

var fieldCatalog = []Field{
	{Name: "ip", Kind: KindIP, Description: "Primary IPv4 address"},
	{Name: "ipv6", Kind: KindString, Description: "Primary IPv6 address"},
	{Name: "mac", Kind: KindString, Description: "MAC address"},
	{Name: "vendor", Kind: KindString, Description: "MAC vendor"},
	{Name: "hostname", Kind: KindString, Description: "Primary hostname"},
	{Name: "os", Kind: KindString, Description: "Best OS match"},
	{Name: "status", Kind: KindString, Description: "Host state (up/down/unknown/skipped)"},
	{Name: "status_reason", Kind: KindString, Description: "Reason for the host state"},
	{Name: "open_ports", Kind: KindNumber, Description: "Open port count"},
	{Name: "closed_ports", Kind: KindNumber, Description: "Closed port count"},
	{Name: "filtered_ports", Kind: KindNumber, Description: "Filtered port count"},
	{Name: "port_count", Kind: KindNumber, Description: "Total probed port count"},
	{Name: "uptime", Kind: KindNumber, Description: "Uptime guess in seconds"},
	{Name: "distance", Kind: KindNumber, Description: "Network distance in hops"},
	{Name: "start_time", Kind: KindNumber, Description: "Host scan start, epoch seconds"},
	{Name: "end_time", Kind: KindNumber, Description: "Host scan end, epoch seconds"},
}

// Fields returns the filterable field catalog.
func Fields() []Field {
	return append([]Field(nil), fieldCatalog...)
}

// OperatorsFor returns the operators valid for a field kind. This is the
// applicability table UI collaborators consume.
func OperatorsFor(kind FieldKind) []string {
	switch kind {
	case KindNumber:
		return []string{
			OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpInRange,
			OpIsEmpty, OpIsNotEmpty,
		}
	default:
		return []string{
			OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith,
			OpEndsWith, OpRegex, OpIsEmpty, OpIsNotEmpty,
		}
	}
}

// fieldKind returns the declared kind of a catalog field, KindString for
// anything unknown.
func fieldKind(name string) FieldKind {
	for _, f := range fieldCatalog {
		if f.Name == name {
			return f.Kind
		}
	}
	return KindString
}

// resolveField stringifies the named attribute of a host. Catalog names go
// through the static accessor table; anything else falls back to dot-path
// traversal over the host struct for forward compatibility.
func resolveField(h *models.Host, name string) string {
	if acc, ok := fieldAccessors[name]; ok {
		return acc(h)
	}
	return dotPath(reflect.ValueOf(h).Elem(), strings.Split(name, "."))
}

func dotPath(v reflect.Value, path []string) string {
	for _, part := range path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return ""
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return ""
		}
		v = v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, part)
		})
		if !v.IsValid() {
			return ""
		}
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", v.Float())
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
	default:
		return ""
	}
}
