package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Église Saint-Étienne", "eglise-saint-etienne"},
		{"  Château  d'Ô  ", "chateau-d-o"},
		{"Cathédrale N°3", "cathedrale-n-3"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	slug := Slugify(strings.Repeat("abbaye ", 20))
	assert.LessOrEqual(t, len(slug), maxSlugLength)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "constat-eglise-saint-martin.pdf", PDFFilename("Église Saint-Martin"))
	assert.Equal(t, "constat-rapport.pdf", PDFFilename(""))
}

func TestAlertContentID(t *testing.T) {
	assert.Equal(t, "alert-photo_1.jpg", AlertContentID("photo_1.jpg"))
	assert.Equal(t, "alert-reports-a-b.jpg", AlertContentID("reports/a b.jpg"))
}
