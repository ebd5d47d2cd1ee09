package domain

import "strings"

// AlertCategory is the kind of problem an alert reports.
type AlertCategory string

const (
	AlertEdificeEnPeril AlertCategory = "Édifice en péril"
	AlertAbords         AlertCategory = "Abords de l'édifice"
	AlertObjets         AlertCategory = "Objets et mobiliers"
	AlertArcheologie    AlertCategory = "Archéologie"
	AlertSecurite       AlertCategory = "Sécurité"
	AlertSite           AlertCategory = "Site classé ou inscrit"
	AlertBiodiversite   AlertCategory = "Biodiversité"
)

// alertServices maps each category to the services that must hear about it.
// Every category maps to at least one service.
var alertServices = map[AlertCategory][]ServiceKey{
	AlertEdificeEnPeril: {ServiceUDAP, ServiceCRMH, ServiceDDT},
	AlertAbords:         {ServiceUDAP},
	AlertObjets:         {ServiceCAOA, ServiceCRMH},
	AlertArcheologie:    {ServiceSRA},
	AlertSecurite:       {ServiceMairie, ServiceUDAP},
	AlertSite:           {ServiceUDAP},
	AlertBiodiversite:   {ServiceUDAP},
}

// AlertCategories lists the known categories in display order.
var AlertCategories = []AlertCategory{
	AlertEdificeEnPeril,
	AlertAbords,
	AlertObjets,
	AlertArcheologie,
	AlertSecurite,
	AlertSite,
	AlertBiodiversite,
}

// ServicesForCategory returns the services alerted for a category.
// Unknown categories go to the UDAP, which owns every report.
func ServicesForCategory(c AlertCategory) []ServiceKey {
	if keys, ok := alertServices[AlertCategory(strings.TrimSpace(string(c)))]; ok {
		return keys
	}
	return []ServiceKey{ServiceUDAP}
}

// AlertRecipients merges the alert's own addresses with the service
// addresses mapped from its category. Order is preserved and duplicates are
// dropped case-insensitively.
func AlertRecipients(a *Alert, svc *Service) []string {
	var all []string
	all = append(all, a.MandatoryEmails...)
	all = append(all, a.AdditionalEmails...)
	if svc != nil {
		all = append(all, svc.RecipientsFor(ServicesForCategory(a.Category))...)
	}
	return UniqueEmails(all)
}

// UniqueEmails trims, drops blanks and removes case-insensitive duplicates.
func UniqueEmails(emails []string) []string {
	var out []string
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
