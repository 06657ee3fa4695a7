// Package nmap normalizes nmap output into the canonical scan model. It
// understands the XML (-oX), greppable (-oG) and normal (-oN) output formats
// and produces value-identical scans for equivalent content.
package nmap

import (
	"errors"

	"github.com/openrecon/scanview/pkg/models"
)

// ErrUnknownFormat is returned when the input matches none of the supported
// output formats.
var ErrUnknownFormat = errors.New("unrecognized scan output: expected nmap XML (-oX), greppable (-oG) or normal (-oN) format")

// VendorLookup resolves a MAC address to a vendor name. The text formats
// rarely carry vendor strings, so the parser fills them in through this hook
// when one is installed.
type VendorLookup func(mac string) string

// Parser turns raw nmap output into canonical scans.
type Parser struct {
	ids     models.IDSource
	vendors VendorLookup
}

// Option configures a Parser.
type Option func(*Parser)

// WithIDSource replaces the default UUID identifier source. Tests use this to
// get deterministic host ids.
func WithIDSource(src models.IDSource) Option {
	return func(p *Parser) { p.ids = src }
}

// WithVendorLookup installs a MAC vendor lookup used to enrich addresses that
// arrived without a vendor string.
func WithVendorLookup(lookup VendorLookup) Option {
	return func(p *Parser) { p.vendors = lookup }
}

// NewParser creates a parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{ids: models.UUIDSource{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse detects the format of raw and dispatches to the matching parser.
//
// Detection is a permissive, ordered cascade rather than strict sniffing:
// scan output is often concatenated, pasted or truncated. As a last resort
// the XML parser is attempted even without a prolog, since some valid
// documents omit it.
func (p *Parser) Parse(raw string) (*models.Scan, error) {
	switch detectFormat(raw) {
	case formatXML:
		return p.ParseXML(raw)
	case formatGrepable:
		return p.ParseGrepable(raw)
	case formatNormal:
		return p.ParseNormal(raw)
	}
	if scan, err := p.ParseXML(raw); err == nil {
		return scan, nil
	}
	return nil, ErrUnknownFormat
}

// newScan allocates a scan with a fresh identifier.
func (p *Parser) newScan() *models.Scan {
	return &models.Scan{ID: p.ids.NewID()}
}

// newHost allocates a host with a fresh identifier and an unknown status.
func (p *Parser) newHost() *models.Host {
	return &models.Host{
		ID:     p.ids.NewID(),
		Status: models.Status{State: "unknown"},
	}
}

// vendorFor resolves a vendor for mac through the installed lookup, if any.
func (p *Parser) vendorFor(mac string) string {
	if p.vendors == nil || mac == "" {
		return ""
	}
	return p.vendors(mac)
}
