package postgres

import (
	"context"
	"database/sql"
	"strings"

	"patient-portal/internal/domain/accessgrants"
)

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

const grantColumns = `
	id, patient_id, doctor_id,
	access_type, status,
	granted_at, expires_at, revoked_at
`

func (r *AccessGrantsRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patient_access (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		g.ID,
		g.PatientID,
		g.DoctorID,
		string(g.AccessType),
		string(g.Status),
		g.GrantedAt,
		g.ExpiresAt,
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *AccessGrantsRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patient_access
		SET
			status = $2,
			expires_at = $3,
			revoked_at = $4
		WHERE id = $1
	`,
		g.ID,
		string(g.Status),
		g.ExpiresAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM patient_access
		WHERE id = $1
	`, id)

	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return accessgrants.Grant{}, ErrNotFound
	}
	return g, err
}

func (r *AccessGrantsRepo) ListByPair(ctx context.Context, patientID, doctorID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM patient_access
		WHERE patient_id = $1 AND doctor_id = $2
		ORDER BY granted_at ASC
	`, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *AccessGrantsRepo) ListByPatient(ctx context.Context, patientID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM patient_access
		WHERE patient_id = $1
		ORDER BY granted_at ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *AccessGrantsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM patient_access
		WHERE doctor_id = $1
		ORDER BY granted_at ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func scanGrant(row rowScanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	var accessType, status string
	var revokedAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.PatientID,
		&g.DoctorID,
		&accessType,
		&status,
		&g.GrantedAt,
		&g.ExpiresAt,
		&revokedAt,
	); err != nil {
		return accessgrants.Grant{}, err
	}

	g.AccessType = accessgrants.AccessType(accessType)
	g.Status = accessgrants.Status(status)
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}

func collectGrants(rows *sql.Rows) ([]accessgrants.Grant, error) {
	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
