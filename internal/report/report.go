// Package report renders state reports ("constats d'état") to HTML and PDF.
//
// RenderReportHTML produces a self-contained semantic HTML document in which
// every photo is an <img data-attachment-id="..."> placeholder. The document
// is stored as-is in validation requests, so image URLs are resolved only
// when a PDF or a preview is produced, with ResolveImagePlaceholders.
//
// Two PDF engines implement Renderer: PDFRenderer lays the HTML out with
// go-pdf/fpdf, ChromeRenderer prints it with headless Chrome.
package report

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
)

// =============================================================================
// Renderer Interface
// =============================================================================

// Renderer turns report HTML into a PDF document.
type Renderer interface {
	// Render lays out htmlDoc under the given letterhead. images holds the
	// decoded photos keyed by attachment id; ids missing from the map are
	// drawn as placeholders.
	Render(ctx context.Context, htmlDoc string, letterhead domain.Letterhead, images map[string]ImageData) ([]byte, error)

	// Engine names the implementation, for logs and metrics.
	Engine() string
}

// ImageData holds a photo ready to be embedded.
type ImageData struct {
	Data        []byte
	ContentType string
}

// =============================================================================
// Colors
// =============================================================================

// Colors is the palette of the French state's graphic charter.
var Colors = struct {
	BlueFrance  string
	RedMarianne string
	TextDark    string
	TextMuted   string
	Border      string
	Background  string
}{
	BlueFrance:  "#000091",
	RedMarianne: "#E1000F",
	TextDark:    "#161616",
	TextMuted:   "#666666",
	Border:      "#DDDDDD",
	Background:  "#F6F6F6",
}

// HexToRGB converts "#RRGGBB" or "RRGGBB" to RGB components. Malformed input
// yields black.
func HexToRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

// =============================================================================
// Text Formatting Helpers
// =============================================================================

// NotProvided replaces any report field the author left blank.
const NotProvided = "non renseigné"

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FormatDate formats a date the French way ("14 mars 2025"), in Paris time.
// A nil date yields an empty string.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	local := t.In(paris)
	return strconv.Itoa(local.Day()) + " " + frenchMonths[local.Month()-1] + " " + strconv.Itoa(local.Year())
}

var paris = loadParis()

func loadParis() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// orNotProvided returns the trimmed value or NotProvided.
func orNotProvided(s *string) string {
	if v := strings.TrimSpace(domain.StringValue(s)); v != "" {
		return v
	}
	return NotProvided
}
