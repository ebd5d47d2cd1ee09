package email

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 60

// Slugify lower-cases s, strips accents and joins words with hyphens:
// "Église Saint-Étienne" becomes "eglise-saint-etienne".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// PDFFilename names the attached report: constat-<slug>.pdf.
func PDFFilename(title string) string {
	slug := Slugify(title)
	if slug == "" {
		slug = "rapport"
	}
	return "constat-" + slug + ".pdf"
}

// AlertContentID is the Content-ID of an inline alert photo.
func AlertContentID(attachmentID string) string {
	var b strings.Builder
	for _, r := range attachmentID {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return "alert-" + b.String()
}
