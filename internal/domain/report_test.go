package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportBundle(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	reportID := uuid.New()
	sectionID := uuid.New()
	alertID := uuid.New()
	plan := "plan.jpg"

	report := StateReport{ID: reportID, PlanAttachmentID: &plan}
	sections := []VisitedSection{{ID: sectionID, StateReportID: reportID}}
	alerts := []Alert{{ID: alertID, StateReportID: reportID, Category: AlertSecurite}}
	attachments := []Attachment{
		{ID: "b.jpg", StateReportID: reportID, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a.jpg", StateReportID: reportID, CreatedAt: base.Add(time.Minute)},
		{ID: "old.jpg", StateReportID: reportID, IsDeprecated: true, CreatedAt: base},
		{ID: "plan.jpg", StateReportID: reportID, CreatedAt: base},
		{ID: "section.jpg", StateReportID: reportID, VisitedSectionID: &sectionID, CreatedAt: base},
		{ID: "alert.jpg", StateReportID: reportID, AlertID: &alertID, CreatedAt: base},
	}

	b := NewReportBundle(report, sections, alerts, attachments)

	require.Len(t, b.Attachments, 2)
	assert.Equal(t, "a.jpg", b.Attachments[0].ID)
	assert.Equal(t, "b.jpg", b.Attachments[1].ID)
	require.Len(t, b.Sections[0].Attachments, 1)
	assert.Equal(t, "section.jpg", b.Sections[0].Attachments[0].ID)
	require.Len(t, b.Alerts[0].Attachments, 1)
	assert.Equal(t, "alert.jpg", b.Alerts[0].Attachments[0].ID)

	assert.Equal(t, []string{"plan.jpg", "a.jpg", "b.jpg", "section.jpg", "alert.jpg"}, b.AttachmentIDs())
}

func TestStateReport_IsFinalized(t *testing.T) {
	empty := ""
	pdf := "reports/final.pdf"

	assert.False(t, (&StateReport{}).IsFinalized())
	assert.False(t, (&StateReport{AttachmentID: &empty}).IsFinalized())
	assert.True(t, (&StateReport{AttachmentID: &pdf}).IsFinalized())
}
