package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const getStateReport = `-- name: GetStateReport :one
SELECT id, titre_edifice, adresse, commune, code_postal, date_visite, nature_visite,
       redacted_by, proprietaire, proprietaire_email, personnes_presentes, nature_protection,
       etat_general, proportion_dans_cet_etat, preconisations, commentaires, attachment_id,
       plan_situation, service_id, created_by, disabled, created_at
FROM state_report
WHERE id = $1 AND disabled = false
`

func (q *Queries) GetStateReport(ctx context.Context, id uuid.UUID) (StateReport, error) {
	row := q.db.QueryRowContext(ctx, getStateReport, id)
	var i StateReport
	err := row.Scan(
		&i.ID,
		&i.TitreEdifice,
		&i.Adresse,
		&i.Commune,
		&i.CodePostal,
		&i.DateVisite,
		&i.NatureVisite,
		&i.RedactedBy,
		&i.Proprietaire,
		&i.ProprietaireEmail,
		&i.PersonnesPresentes,
		&i.NatureProtection,
		&i.EtatGeneral,
		&i.ProportionDansCetEtat,
		&i.Preconisations,
		&i.Commentaires,
		&i.AttachmentID,
		&i.PlanSituation,
		&i.ServiceID,
		&i.CreatedBy,
		&i.Disabled,
		&i.CreatedAt,
	)
	return i, err
}

const listAlertsByReport = `-- name: ListAlertsByReport :many
SELECT id, state_report_id, alert, nature, commentaires, mandatory_emails, additional_emails,
       show_in_report, created_at
FROM report_alert
WHERE state_report_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListAlertsByReport(ctx context.Context, stateReportID uuid.UUID) ([]ReportAlert, error) {
	rows, err := q.db.QueryContext(ctx, listAlertsByReport, stateReportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReportAlert
	for rows.Next() {
		var i ReportAlert
		if err := rows.Scan(
			&i.ID,
			&i.StateReportID,
			&i.Alert,
			&i.Nature,
			&i.Commentaires,
			pq.Array(&i.MandatoryEmails),
			pq.Array(&i.AdditionalEmails),
			&i.ShowInReport,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAttachmentsByReport = `-- name: ListAttachmentsByReport :many
SELECT id, state_report_id, visited_section_id, alert_id, label, is_deprecated, created_at
FROM report_attachment
WHERE state_report_id = $1 AND is_deprecated = false
ORDER BY created_at, id
`

func (q *Queries) ListAttachmentsByReport(ctx context.Context, stateReportID uuid.UUID) ([]ReportAttachment, error) {
	rows, err := q.db.QueryContext(ctx, listAttachmentsByReport, stateReportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReportAttachment
	for rows.Next() {
		var i ReportAttachment
		if err := rows.Scan(
			&i.ID,
			&i.StateReportID,
			&i.VisitedSectionID,
			&i.AlertID,
			&i.Label,
			&i.IsDeprecated,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listVisitedSectionsByReport = `-- name: ListVisitedSectionsByReport :many
SELECT id, state_report_id, section, etat_general, proportion_dans_cet_etat, commentaires, created_at
FROM visited_section
WHERE state_report_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListVisitedSectionsByReport(ctx context.Context, stateReportID uuid.UUID) ([]VisitedSection, error) {
	rows, err := q.db.QueryContext(ctx, listVisitedSectionsByReport, stateReportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VisitedSection
	for rows.Next() {
		var i VisitedSection
		if err := rows.Scan(
			&i.ID,
			&i.StateReportID,
			&i.Section,
			&i.EtatGeneral,
			&i.ProportionDansCetEtat,
			&i.Commentaires,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
