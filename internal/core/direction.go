package core

import (
	"strings"

	"go.uber.org/zap"
)

// Direction classifies a message relative to the operating company.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// defaultCarrierDomains is the fixed list of shipping-line domains the
// engine recognises out of the box. Config may extend it.
var defaultCarrierDomains = map[string]string{
	"maersk.com":       "Maersk",
	"sealandmaersk.com": "Maersk",
	"msc.com":          "MSC",
	"cma-cgm.com":      "CMA CGM",
	"hapag-lloyd.com":  "Hapag-Lloyd",
	"one-line.com":     "ONE",
	"evergreen-line.com": "Evergreen",
	"evergreen-marine.com": "Evergreen",
	"coscoshipping.com": "COSCO",
	"cosco-usa.com":    "COSCO",
	"hmm21.com":        "HMM",
	"yangming.com":     "Yang Ming",
	"zim.com":          "ZIM",
	"oocl.com":         "OOCL",
}

// DirectionDetector classifies messages as inbound or outbound using
// sender-domain heuristics, and exposes carrier-domain membership as a
// separate predicate for the classifier and link resolver.
type DirectionDetector struct {
	ownDomains     []string
	carrierDomains map[string]string
	viaMarkers     []string
	logger         *zap.Logger
}

// NewDirectionDetector creates a detector for the given operating-company
// domains. Extra carrier domains extend the built-in shipping-line list.
func NewDirectionDetector(ownDomains []string, extraCarrierDomains map[string]string, logger *zap.Logger) *DirectionDetector {
	normalized := make([]string, len(ownDomains))
	for i, d := range ownDomains {
		normalized[i] = strings.ToLower(strings.TrimSpace(d))
	}

	carriers := make(map[string]string, len(defaultCarrierDomains)+len(extraCarrierDomains))
	for d, name := range defaultCarrierDomains {
		carriers[d] = name
	}
	for d, name := range extraCarrierDomains {
		carriers[strings.ToLower(strings.TrimSpace(d))] = name
	}

	return &DirectionDetector{
		ownDomains:     normalized,
		carrierDomains: carriers,
		viaMarkers:     []string{" via ", "via=", "+via+"},
		logger:         logger,
	}
}

// Detect classifies a message by its effective sender. Addresses on the
// operating company's own domains are outbound; everything else is inbound.
// A "via" relay marker means the mail was forwarded through our systems
// but authored externally, so it stays inbound.
func (d *DirectionDetector) Detect(sender, trueSender string) Direction {
	addr := trueSender
	if addr == "" {
		addr = sender
	}
	lowered := strings.ToLower(addr)

	for _, marker := range d.viaMarkers {
		if strings.Contains(lowered, marker) {
			return DirectionInbound
		}
	}

	domain := domainOf(lowered)
	for _, own := range d.ownDomains {
		if domain == own {
			return DirectionOutbound
		}
	}
	return DirectionInbound
}

// IsCarrierDomain reports whether the address belongs to a recognised
// shipping line, and which one.
func (d *DirectionDetector) IsCarrierDomain(addr string) (string, bool) {
	domain := domainOf(strings.ToLower(addr))
	if domain == "" {
		return "", false
	}
	if name, ok := d.carrierDomains[domain]; ok {
		return name, true
	}
	// Subdomains like in.export.maersk.com still count as the carrier.
	for carrierDomain, name := range d.carrierDomains {
		if strings.HasSuffix(domain, "."+carrierDomain) {
			return name, true
		}
	}
	return "", false
}

// CarrierNames returns the display names of all recognised carriers.
func (d *DirectionDetector) CarrierNames() []string {
	names := make(map[string]bool, len(d.carrierDomains))
	out := make([]string, 0, len(d.carrierDomains))
	for _, name := range d.carrierDomains {
		if !names[name] {
			names[name] = true
			out = append(out, name)
		}
	}
	return out
}

// domainOf extracts the domain part of an email address, tolerating
// display-name forms like `"Maersk Export" <noreply@maersk.com>`.
func domainOf(addr string) string {
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.TrimSpace(addr[at+1:])
}
