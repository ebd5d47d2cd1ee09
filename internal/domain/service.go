package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ServiceKey identifies one of the public services that may be alerted
// about a monument.
type ServiceKey string

const (
	ServiceUDAP   ServiceKey = "udap"   // Unité départementale de l'architecture et du patrimoine
	ServiceCRMH   ServiceKey = "crmh"   // Conservation régionale des monuments historiques
	ServiceSRA    ServiceKey = "sra"    // Service régional de l'archéologie
	ServiceCAOA   ServiceKey = "caoa"   // Conservateur des antiquités et objets d'art
	ServiceMairie ServiceKey = "mairie" // Town hall
	ServiceDDT    ServiceKey = "ddt"    // Police des édifices menaçant ruine
)

// ServiceKeys lists every key in a stable order.
var ServiceKeys = []ServiceKey{ServiceUDAP, ServiceCRMH, ServiceSRA, ServiceCAOA, ServiceMairie, ServiceDDT}

// Service is the administrative unit (an UDAP) the author works for. It owns
// the letterhead printed on reports and the addresses alerts are routed to.
type Service struct {
	ID         uuid.UUID
	Name       string
	Department string
	Recipients map[ServiceKey]string
	Letterhead Letterhead
}

// RecipientsFor returns the non-empty addresses configured for keys, in the
// order of keys, without duplicates.
func (s *Service) RecipientsFor(keys []ServiceKey) []string {
	var out []string
	seen := make(map[string]bool)
	for _, k := range keys {
		addr := strings.TrimSpace(s.Recipients[k])
		if addr == "" || seen[strings.ToLower(addr)] {
			continue
		}
		seen[strings.ToLower(addr)] = true
		out = append(out, addr)
	}
	return out
}

// Letterhead is the institutional header and footer printed on every page of
// a report PDF. It is stored as JSON on the service row.
type Letterhead struct {
	Ministry    []string `json:"ministry"`
	ServiceName string   `json:"service_name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	FooterText  string   `json:"footer_text"`
}

// Default letterhead values.
const (
	DefaultMinistry   = "Ministère de la Culture"
	DefaultFooterText = "Constat d'état établi en application du Code du patrimoine, livre VI."
)

// WithDefaults fills empty letterhead fields. serviceName is used when the
// letterhead does not name the service itself.
func (l Letterhead) WithDefaults(serviceName string) Letterhead {
	if len(l.Ministry) == 0 {
		l.Ministry = []string{DefaultMinistry}
	}
	if l.ServiceName == "" {
		l.ServiceName = serviceName
	}
	if l.FooterText == "" {
		l.FooterText = DefaultFooterText
	}
	return l
}

// HeaderLines returns the lines printed in the running page header.
func (l Letterhead) HeaderLines() []string {
	lines := append([]string{}, l.Ministry...)
	if l.ServiceName != "" {
		lines = append(lines, l.ServiceName)
	}
	return lines
}

// ContactLine joins the address, phone and email present on the letterhead.
func (l Letterhead) ContactLine() string {
	var parts []string
	for _, p := range []string{l.Address, l.Phone, l.Email} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " · ")
}
