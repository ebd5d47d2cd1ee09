package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type ReportAlert struct {
	ID               uuid.UUID
	StateReportID    uuid.UUID
	Alert            string
	Nature           sql.NullString
	Commentaires     sql.NullString
	MandatoryEmails  []string
	AdditionalEmails []string
	ShowInReport     bool
	CreatedAt        time.Time
}

type ReportAttachment struct {
	ID               string
	StateReportID    uuid.UUID
	VisitedSectionID uuid.NullUUID
	AlertID          uuid.NullUUID
	Label            sql.NullString
	IsDeprecated     bool
	CreatedAt        time.Time
}

type Service struct {
	ID             uuid.UUID
	Name           string
	Department     sql.NullString
	CourrielUdap   sql.NullString
	CourrielCrmh   sql.NullString
	CourrielSra    sql.NullString
	CourrielCaoa   sql.NullString
	CourrielMairie sql.NullString
	CourrielDdt    sql.NullString
	Letterhead     pqtype.NullRawMessage
	CreatedAt      time.Time
}

type StateReport struct {
	ID                    uuid.UUID
	TitreEdifice          sql.NullString
	Adresse               sql.NullString
	Commune               sql.NullString
	CodePostal            sql.NullString
	DateVisite            sql.NullTime
	NatureVisite          sql.NullString
	RedactedBy            sql.NullString
	Proprietaire          sql.NullString
	ProprietaireEmail     sql.NullString
	PersonnesPresentes    sql.NullString
	NatureProtection      sql.NullString
	EtatGeneral           sql.NullString
	ProportionDansCetEtat sql.NullString
	Preconisations        sql.NullString
	Commentaires          sql.NullString
	AttachmentID          sql.NullString
	PlanSituation         sql.NullString
	ServiceID             uuid.NullUUID
	CreatedBy             uuid.UUID
	Disabled              bool
	CreatedAt             time.Time
}

type StateReportValidation struct {
	ID                      uuid.UUID
	StateReportID           uuid.UUID
	UserID                  uuid.NullUUID
	ServiceID               uuid.NullUUID
	SupervisorEmail         string
	ValidationLink          string
	ValidationLinkExpiresAt time.Time
	Status                  string
	SupervisorComment       sql.NullString
	ValidatedAt             sql.NullTime
	HtmlString              string
	OriginalRecipients      []string
	CreatedAt               time.Time
}

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	ServiceID uuid.NullUUID
	CreatedAt time.Time
}

type VisitedSection struct {
	ID                    uuid.UUID
	StateReportID         uuid.UUID
	Section               sql.NullString
	EtatGeneral           sql.NullString
	ProportionDansCetEtat sql.NullString
	Commentaires          sql.NullString
	CreatedAt             time.Time
}
