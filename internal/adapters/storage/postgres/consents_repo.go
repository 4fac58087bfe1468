package postgres

import (
	"context"
	"database/sql"
	"strings"

	"patient-portal/internal/domain/consents"
)

type ConsentsRepo struct {
	db *sql.DB
}

func NewConsentsRepo(db *sql.DB) *ConsentsRepo {
	return &ConsentsRepo{db: db}
}

const consentColumns = `
	id, patient_id, requester_id,
	purpose, message, data_types, duration_days,
	status, requested_at, responded_at, expires_at
`

func (r *ConsentsRepo) Create(ctx context.Context, c consents.Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consent_requests (`+consentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		c.ID,
		c.PatientID,
		c.RequesterID,
		c.Purpose,
		c.Message,
		dataTypesToText(c.DataTypes),
		c.DurationDays,
		string(c.Status),
		c.RequestedAt,
		toNullTime(c.RespondedAt),
		toNullTime(c.ExpiresAt),
	)
	return err
}

func (r *ConsentsRepo) Update(ctx context.Context, c consents.Request) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consent_requests
		SET
			status = $2,
			responded_at = $3,
			expires_at = $4
		WHERE id = $1
	`,
		c.ID,
		string(c.Status),
		toNullTime(c.RespondedAt),
		toNullTime(c.ExpiresAt),
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

func (r *ConsentsRepo) GetByID(ctx context.Context, id string) (consents.Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return consents.Request{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_requests
		WHERE id = $1
	`, id)

	c, err := scanConsent(row)
	if err == sql.ErrNoRows {
		return consents.Request{}, ErrNotFound
	}
	return c, err
}

func (r *ConsentsRepo) ListByPatient(ctx context.Context, patientID string) ([]consents.Request, error) {
	return r.list(ctx, "patient_id", patientID)
}

func (r *ConsentsRepo) ListByRequester(ctx context.Context, requesterID string) ([]consents.Request, error) {
	return r.list(ctx, "requester_id", requesterID)
}

func (r *ConsentsRepo) list(ctx context.Context, column, value string) ([]consents.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_requests
		WHERE `+column+` = $1
		ORDER BY requested_at ASC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]consents.Request, 0)
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConsent(row rowScanner) (consents.Request, error) {
	var c consents.Request
	var status, dataTypes string
	var respondedAt, expiresAt sql.NullTime

	if err := row.Scan(
		&c.ID,
		&c.PatientID,
		&c.RequesterID,
		&c.Purpose,
		&c.Message,
		&dataTypes,
		&c.DurationDays,
		&status,
		&c.RequestedAt,
		&respondedAt,
		&expiresAt,
	); err != nil {
		return consents.Request{}, err
	}

	c.Status = consents.Status(status)
	c.DataTypes = textToDataTypes(dataTypes)
	c.RespondedAt = fromNullTime(respondedAt)
	c.ExpiresAt = fromNullTime(expiresAt)
	return c, nil
}

func dataTypesToText(ts []consents.DataType) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

func textToDataTypes(s string) []consents.DataType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]consents.DataType, 0, len(parts))
	for _, p := range parts {
		out = append(out, consents.DataType(p))
	}
	return out
}
