package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"patient-portal/internal/domain/schedule"
)

type ConsultationsRepo struct {
	db *sql.DB
}

func NewConsultationsRepo(db *sql.DB) *ConsultationsRepo {
	return &ConsultationsRepo{db: db}
}

const consultationColumns = `
	id, doctor_id, patient_id,
	start_at, duration_minutes,
	kind, reason, notes, status,
	created_at, updated_at
`

func (r *ConsultationsRepo) Create(ctx context.Context, c schedule.Consultation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consultations (`+consultationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		c.ID,
		c.DoctorID,
		toNullString(c.PatientID),
		c.Start,
		c.DurationMinutes,
		string(c.Kind),
		c.Reason,
		c.Notes,
		string(c.Status),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if isExclusionViolation(err) {
		// El constraint de exclusión sobre (doctor_id, rango horario) es
		// la última línea de defensa contra la doble reserva.
		return schedule.ErrConflict
	}
	return err
}

func (r *ConsultationsRepo) Update(ctx context.Context, c schedule.Consultation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consultations
		SET
			start_at = $2,
			duration_minutes = $3,
			kind = $4,
			reason = $5,
			notes = $6,
			status = $7,
			updated_at = $8
		WHERE id = $1
	`,
		c.ID,
		c.Start,
		c.DurationMinutes,
		string(c.Kind),
		c.Reason,
		c.Notes,
		string(c.Status),
		c.UpdatedAt,
	)
	if isExclusionViolation(err) {
		return schedule.ErrConflict
	}
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConsultationsRepo) GetByID(ctx context.Context, id string) (schedule.Consultation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return schedule.Consultation{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE id = $1
	`, id)

	c, err := scanConsultation(row)
	if err == sql.ErrNoRows {
		return schedule.Consultation{}, ErrNotFound
	}
	return c, err
}

func (r *ConsultationsRepo) ListByDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]schedule.Consultation, error) {
	// doctor_id = '' marca bloqueos globales, que afectan toda agenda.
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE (doctor_id = $1 OR doctor_id = '')
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConsultations(rows)
}

func (r *ConsultationsRepo) ListByPatientBetween(ctx context.Context, patientID string, from, to time.Time) ([]schedule.Consultation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		WHERE patient_id = $1
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at ASC
	`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConsultations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsultation(row rowScanner) (schedule.Consultation, error) {
	var c schedule.Consultation
	var patientID sql.NullString
	var kind, status string

	if err := row.Scan(
		&c.ID,
		&c.DoctorID,
		&patientID,
		&c.Start,
		&c.DurationMinutes,
		&kind,
		&c.Reason,
		&c.Notes,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return schedule.Consultation{}, err
	}

	c.Kind = schedule.Kind(kind)
	c.Status = schedule.Status(status)
	if patientID.Valid {
		p := patientID.String
		c.PatientID = &p
	}
	return c, nil
}

func collectConsultations(rows *sql.Rows) ([]schedule.Consultation, error) {
	out := make([]schedule.Consultation, 0)
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
