// Package domain contains core business types and interfaces.
//
// This file defines the state report ("constat d'état") and the records
// attached to it: visited sections, alerts and photo attachments.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// State Report
// =============================================================================

// StateReport is a condition report written after visiting a protected
// monument. Optional fields are nil when the author left them blank.
type StateReport struct {
	ID               uuid.UUID
	Title            *string // titre_edifice
	Address          *string
	Commune          *string
	PostalCode       *string
	VisitDate        *time.Time
	VisitNature      *string
	RedactedBy       *string
	OwnerName        *string
	OwnerEmail       *string
	Contacts         *string
	Protection       *string
	EtatGeneral      *string
	Proportion       *string
	Preconisations   *string
	Commentaires     *string
	AttachmentID     *string // reference to the finalized PDF; nil while drafting
	PlanAttachmentID *string
	ServiceID        *uuid.UUID
	CreatedBy        uuid.UUID
	Disabled         bool
	CreatedAt        time.Time
}

// IsFinalized returns true once the author has produced the final document.
func (r *StateReport) IsFinalized() bool {
	return r.AttachmentID != nil && *r.AttachmentID != ""
}

// DisplayTitle returns the monument name, or an empty string.
func (r *StateReport) DisplayTitle() string {
	return StringValue(r.Title)
}

// =============================================================================
// Attachments, Sections, Alerts
// =============================================================================

// Attachment is a photo stored in object storage. ID is the storage key.
type Attachment struct {
	ID               string
	StateReportID    uuid.UUID
	VisitedSectionID *uuid.UUID
	AlertID          *uuid.UUID
	Label            *string
	IsDeprecated     bool
	CreatedAt        time.Time
}

// VisitedSection records the condition of one part of the monument.
type VisitedSection struct {
	ID            uuid.UUID
	StateReportID uuid.UUID
	Name          *string
	EtatGeneral   *string
	Proportion    *string
	Commentaires  *string
	Attachments   []Attachment
}

// Alert is a problem noticed during the visit that must be reported to one
// or more public services.
type Alert struct {
	ID               uuid.UUID
	StateReportID    uuid.UUID
	Category         AlertCategory
	Nature           *string
	Commentaires     *string
	MandatoryEmails  []string
	AdditionalEmails []string
	ShowInReport     bool
	Attachments      []Attachment
}

// ReportBundle is a report with everything needed to render it.
type ReportBundle struct {
	Report      StateReport
	Sections    []VisitedSection
	Alerts      []Alert
	Attachments []Attachment // photos attached to the report itself
}

// NewReportBundle distributes attachments to their section or alert, drops
// deprecated ones and orders everything by creation time so that rendering
// the same data always yields the same document.
func NewReportBundle(report StateReport, sections []VisitedSection, alerts []Alert, attachments []Attachment) *ReportBundle {
	live := make([]Attachment, 0, len(attachments))
	for _, a := range attachments {
		if !a.IsDeprecated && a.ID != "" {
			live = append(live, a)
		}
	}
	sortAttachments(live)

	b := &ReportBundle{Report: report}
	sectionIdx := make(map[uuid.UUID]int, len(sections))
	for i, s := range sections {
		s.Attachments = nil
		b.Sections = append(b.Sections, s)
		sectionIdx[s.ID] = i
	}
	alertIdx := make(map[uuid.UUID]int, len(alerts))
	for i, a := range alerts {
		a.Attachments = nil
		b.Alerts = append(b.Alerts, a)
		alertIdx[a.ID] = i
	}

	for _, a := range live {
		switch {
		case a.VisitedSectionID != nil:
			if i, ok := sectionIdx[*a.VisitedSectionID]; ok {
				b.Sections[i].Attachments = append(b.Sections[i].Attachments, a)
			}
		case a.AlertID != nil:
			if i, ok := alertIdx[*a.AlertID]; ok {
				b.Alerts[i].Attachments = append(b.Alerts[i].Attachments, a)
			}
		case report.PlanAttachmentID != nil && a.ID == *report.PlanAttachmentID:
			// rendered on its own next to the first general photo
		default:
			b.Attachments = append(b.Attachments, a)
		}
	}
	return b
}

// AttachmentIDs returns the ids of every attachment in the bundle.
func (b *ReportBundle) AttachmentIDs() []string {
	var ids []string
	if b.Report.PlanAttachmentID != nil {
		ids = append(ids, *b.Report.PlanAttachmentID)
	}
	for _, a := range b.Attachments {
		ids = append(ids, a.ID)
	}
	for _, s := range b.Sections {
		for _, a := range s.Attachments {
			ids = append(ids, a.ID)
		}
	}
	for _, al := range b.Alerts {
		for _, a := range al.Attachments {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func sortAttachments(atts []Attachment) {
	sort.SliceStable(atts, func(i, j int) bool {
		if !atts[i].CreatedAt.Equal(atts[j].CreatedAt) {
			return atts[i].CreatedAt.Before(atts[j].CreatedAt)
		}
		return atts[i].ID < atts[j].ID
	})
}
