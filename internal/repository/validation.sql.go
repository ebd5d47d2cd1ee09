package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const createValidation = `-- name: CreateValidation :one
INSERT INTO state_report_validation (
    id, state_report_id, user_id, service_id, supervisor_email, validation_link,
    validation_link_expires_at, status, html_string, original_recipients
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9
)
RETURNING id, state_report_id, user_id, service_id, supervisor_email, validation_link,
          validation_link_expires_at, status, supervisor_comment, validated_at, html_string,
          original_recipients, created_at
`

type CreateValidationParams struct {
	ID                      uuid.UUID
	StateReportID           uuid.UUID
	UserID                  uuid.NullUUID
	ServiceID               uuid.NullUUID
	SupervisorEmail         string
	ValidationLink          string
	ValidationLinkExpiresAt time.Time
	HtmlString              string
	OriginalRecipients      []string
}

func (q *Queries) CreateValidation(ctx context.Context, arg CreateValidationParams) (StateReportValidation, error) {
	row := q.db.QueryRowContext(ctx, createValidation,
		arg.ID,
		arg.StateReportID,
		arg.UserID,
		arg.ServiceID,
		arg.SupervisorEmail,
		arg.ValidationLink,
		arg.ValidationLinkExpiresAt,
		arg.HtmlString,
		pq.Array(arg.OriginalRecipients),
	)
	var i StateReportValidation
	err := row.Scan(
		&i.ID,
		&i.StateReportID,
		&i.UserID,
		&i.ServiceID,
		&i.SupervisorEmail,
		&i.ValidationLink,
		&i.ValidationLinkExpiresAt,
		&i.Status,
		&i.SupervisorComment,
		&i.ValidatedAt,
		&i.HtmlString,
		pq.Array(&i.OriginalRecipients),
		&i.CreatedAt,
	)
	return i, err
}

const decideValidation = `-- name: DecideValidation :execrows
UPDATE state_report_validation
SET status = $2, supervisor_comment = $3, validated_at = $4
WHERE validation_link = $1 AND status = 'pending'
  AND validation_link_expires_at >= $4
`

type DecideValidationParams struct {
	ValidationLink    string
	Status            string
	SupervisorComment sql.NullString
	ValidatedAt       sql.NullTime
}

func (q *Queries) DecideValidation(ctx context.Context, arg DecideValidationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, decideValidation,
		arg.ValidationLink,
		arg.Status,
		arg.SupervisorComment,
		arg.ValidatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getValidationByLink = `-- name: GetValidationByLink :one
SELECT id, state_report_id, user_id, service_id, supervisor_email, validation_link,
       validation_link_expires_at, status, supervisor_comment, validated_at, html_string,
       original_recipients, created_at
FROM state_report_validation
WHERE validation_link = $1
`

func (q *Queries) GetValidationByLink(ctx context.Context, validationLink string) (StateReportValidation, error) {
	row := q.db.QueryRowContext(ctx, getValidationByLink, validationLink)
	var i StateReportValidation
	err := row.Scan(
		&i.ID,
		&i.StateReportID,
		&i.UserID,
		&i.ServiceID,
		&i.SupervisorEmail,
		&i.ValidationLink,
		&i.ValidationLinkExpiresAt,
		&i.Status,
		&i.SupervisorComment,
		&i.ValidatedAt,
		&i.HtmlString,
		pq.Array(&i.OriginalRecipients),
		&i.CreatedAt,
	)
	return i, err
}

const listValidationsByReport = `-- name: ListValidationsByReport :many
SELECT id, state_report_id, user_id, service_id, supervisor_email, validation_link,
       validation_link_expires_at, status, supervisor_comment, validated_at, html_string,
       original_recipients, created_at
FROM state_report_validation
WHERE state_report_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListValidationsByReport(ctx context.Context, stateReportID uuid.UUID) ([]StateReportValidation, error) {
	rows, err := q.db.QueryContext(ctx, listValidationsByReport, stateReportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StateReportValidation
	for rows.Next() {
		var i StateReportValidation
		if err := rows.Scan(
			&i.ID,
			&i.StateReportID,
			&i.UserID,
			&i.ServiceID,
			&i.SupervisorEmail,
			&i.ValidationLink,
			&i.ValidationLinkExpiresAt,
			&i.Status,
			&i.SupervisorComment,
			&i.ValidatedAt,
			&i.HtmlString,
			pq.Array(&i.OriginalRecipients),
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
