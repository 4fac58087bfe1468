package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"patient-portal/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

const recordColumns = `
	id, patient_id, doctor_id,
	title, body, meta, tags,
	created_at, updated_at
`

func (r *RecordsRepo) Create(ctx context.Context, rec *records.HealthRecord) error {
	meta, err := json.Marshal(rec.Meta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO health_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		rec.ID,
		rec.PatientID,
		rec.DoctorID,
		rec.Title,
		rec.Body,
		meta,
		strings.Join(rec.Tags, ","),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (*records.HealthRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM health_records
		WHERE id = $1
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RecordsRepo) ListByPatient(ctx context.Context, patientID string) ([]*records.HealthRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM health_records
		WHERE patient_id = $1
		ORDER BY created_at ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*records.HealthRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row rowScanner) (*records.HealthRecord, error) {
	var rec records.HealthRecord
	var meta []byte
	var tags string

	if err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.DoctorID,
		&rec.Title,
		&rec.Body,
		&meta,
		&tags,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Meta); err != nil {
			return nil, err
		}
	}
	// Filas migradas del esquema viejo pueden traer la metadata empacada
	// dentro del body en lugar de la columna jsonb.
	if rec.Meta == (records.RecordMeta{}) {
		if body, legacy, ok := records.DecodeLegacyDescription(rec.Body); ok {
			rec.Body = body
			rec.Meta = legacy
		}
	}
	if tags != "" {
		rec.Tags = strings.Split(tags, ",")
	}
	return &rec, nil
}
