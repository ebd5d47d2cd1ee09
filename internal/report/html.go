package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/DukeRupert/constat/internal/domain"
)

// VersionMarker is the first line of every rendered report. Stored HTML is
// parsed again months later, so the marker records which layout wrote it.
const VersionMarker = "<!-- constat-html v1 -->"

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html"))

type field struct {
	Label string
	Value string
}

type figure struct {
	ID      string
	Caption string
}

type sectionView struct {
	Name       string
	Etat       string
	Proportion string
	Comments   string
	Pairs      [][]figure
}

type alertView struct {
	Category string
	Fields   []field
	Pairs    [][]figure
}

type reportView struct {
	Title          string
	NotProvided    string
	Monument       []field
	Visit          []field
	Condition      []field
	Overview       [][]figure
	Sections       []sectionView
	Preconisations []string
	Commentaires   []string
	Alerts         []alertView
}

// RenderReportHTML renders a report as semantic HTML. Missing fields are
// written as "non renseigné"; photos are placeholders carrying their
// attachment id. The same bundle always renders to the same string.
func RenderReportHTML(b *domain.ReportBundle) (string, error) {
	view := buildView(b)

	var buf bytes.Buffer
	buf.WriteString(VersionMarker)
	buf.WriteString("\n")
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}

func buildView(b *domain.ReportBundle) reportView {
	r := b.Report

	v := reportView{
		Title:       orNotProvided(r.Title),
		NotProvided: NotProvided,
		Monument: []field{
			{"Édifice", orNotProvided(r.Title)},
			{"Adresse", orNotProvided(r.Address)},
			{"Commune", communeLine(r)},
			{"Protection", orNotProvided(r.Protection)},
			{"Propriétaire", orNotProvided(r.OwnerName)},
			{"Courriel du propriétaire", orNotProvided(r.OwnerEmail)},
		},
		Visit: []field{
			{"Date de la visite", dateOrNotProvided(r)},
			{"Nature de la visite", orNotProvided(r.VisitNature)},
			{"Rédacteur", orNotProvided(r.RedactedBy)},
			{"Personnes présentes", orNotProvided(r.Contacts)},
		},
		Condition: []field{
			{"État général", orNotProvided(r.EtatGeneral)},
			{"Proportion dans cet état", orNotProvided(r.Proportion)},
		},
		Preconisations: paragraphs(r.Preconisations),
		Commentaires:   paragraphs(r.Commentaires),
	}

	var overview []figure
	if r.PlanAttachmentID != nil && *r.PlanAttachmentID != "" {
		overview = append(overview, figure{ID: *r.PlanAttachmentID, Caption: "Plan de situation"})
	}
	overview = append(overview, figures(b.Attachments, "Vue générale")...)
	v.Overview = pairs(overview)

	for _, s := range b.Sections {
		name := orNotProvided(s.Name)
		v.Sections = append(v.Sections, sectionView{
			Name:       name,
			Etat:       orNotProvided(s.EtatGeneral),
			Proportion: orNotProvided(s.Proportion),
			Comments:   orNotProvided(s.Commentaires),
			Pairs:      pairs(figures(s.Attachments, name)),
		})
	}

	for _, a := range b.Alerts {
		if !a.ShowInReport {
			continue
		}
		category := strings.TrimSpace(string(a.Category))
		if category == "" {
			category = NotProvided
		}
		services := make([]string, 0, 3)
		for _, k := range domain.ServicesForCategory(a.Category) {
			services = append(services, strings.ToUpper(string(k)))
		}
		v.Alerts = append(v.Alerts, alertView{
			Category: category,
			Fields: []field{
				{"Nature", orNotProvided(a.Nature)},
				{"Commentaires", orNotProvided(a.Commentaires)},
				{"Services alertés", strings.Join(services, ", ")},
			},
			Pairs: pairs(figures(a.Attachments, category)),
		})
	}

	return v
}

func communeLine(r domain.StateReport) string {
	commune := strings.TrimSpace(domain.StringValue(r.Commune))
	postal := strings.TrimSpace(domain.StringValue(r.PostalCode))
	switch {
	case commune == "" && postal == "":
		return NotProvided
	case postal == "":
		return commune
	case commune == "":
		return postal
	}
	return postal + " " + commune
}

func dateOrNotProvided(r domain.StateReport) string {
	if d := FormatDate(r.VisitDate); d != "" {
		return d
	}
	return NotProvided
}

// paragraphs splits free text on blank lines and newlines.
func paragraphs(s *string) []string {
	var out []string
	for _, line := range strings.Split(domain.StringValue(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return []string{NotProvided}
	}
	return out
}

func figures(atts []domain.Attachment, fallback string) []figure {
	out := make([]figure, 0, len(atts))
	for i, a := range atts {
		caption := strings.TrimSpace(domain.StringValue(a.Label))
		if caption == "" {
			caption = fmt.Sprintf("%s – photo %d", fallback, i+1)
		}
		out = append(out, figure{ID: a.ID, Caption: caption})
	}
	return out
}

// pairs groups figures two by two for the side-by-side layout.
func pairs(figs []figure) [][]figure {
	var out [][]figure
	for i := 0; i < len(figs); i += 2 {
		end := i + 2
		if end > len(figs) {
			end = len(figs)
		}
		out = append(out, figs[i:end])
	}
	return out
}
