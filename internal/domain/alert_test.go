package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServicesForCategory_EveryCategoryMapped(t *testing.T) {
	for _, c := range AlertCategories {
		assert.NotEmpty(t, ServicesForCategory(c), c)
	}
}

func TestServicesForCategory(t *testing.T) {
	assert.Equal(t, []ServiceKey{ServiceUDAP, ServiceCRMH, ServiceDDT}, ServicesForCategory(AlertEdificeEnPeril))
	assert.Equal(t, []ServiceKey{ServiceSRA}, ServicesForCategory(AlertArcheologie))
	assert.Equal(t, []ServiceKey{ServiceUDAP}, ServicesForCategory("Catégorie inconnue"))
}

func TestAlertRecipients(t *testing.T) {
	svc := &Service{
		Recipients: map[ServiceKey]string{
			ServiceUDAP: "udap@culture.gouv.fr",
			ServiceCRMH: "crmh@culture.gouv.fr",
			ServiceDDT:  "",
			ServiceSRA:  "sra@culture.gouv.fr",
		},
	}

	tests := []struct {
		name  string
		alert Alert
		want  []string
	}{
		{
			name: "service addresses appended after alert addresses",
			alert: Alert{
				Category:         AlertEdificeEnPeril,
				MandatoryEmails:  []string{"proprietaire@example.fr"},
				AdditionalEmails: []string{"architecte@example.fr"},
			},
			want: []string{"proprietaire@example.fr", "architecte@example.fr", "udap@culture.gouv.fr", "crmh@culture.gouv.fr"},
		},
		{
			name: "duplicates removed case-insensitively",
			alert: Alert{
				Category:        AlertAbords,
				MandatoryEmails: []string{"UDAP@culture.gouv.fr", " ", "udap@culture.gouv.fr"},
			},
			want: []string{"UDAP@culture.gouv.fr"},
		},
		{
			name:  "no service configured for the category",
			alert: Alert{Category: AlertObjets},
			want:  []string{"crmh@culture.gouv.fr"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlertRecipients(&tt.alert, svc))
		})
	}
}
