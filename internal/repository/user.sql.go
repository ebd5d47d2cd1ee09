package repository

import (
	"context"

	"github.com/google/uuid"
)

const getServiceByID = `-- name: GetServiceByID :one
SELECT id, name, department, courriel_udap, courriel_crmh, courriel_sra, courriel_caoa,
       courriel_mairie, courriel_ddt, letterhead, created_at
FROM service
WHERE id = $1
`

func (q *Queries) GetServiceByID(ctx context.Context, id uuid.UUID) (Service, error) {
	row := q.db.QueryRowContext(ctx, getServiceByID, id)
	var i Service
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Department,
		&i.CourrielUdap,
		&i.CourrielCrmh,
		&i.CourrielSra,
		&i.CourrielCaoa,
		&i.CourrielMairie,
		&i.CourrielDdt,
		&i.Letterhead,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, name, email, service_id, created_at
FROM "user"
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.ServiceID,
		&i.CreatedAt,
	)
	return i, err
}
