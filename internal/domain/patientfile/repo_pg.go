package patientfile

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrecord/medrecord/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, national_id, first_name, last_name, birth_date, email, phone, address,
	referring_doctor_id, secret_hash, created_at, updated_at`

func scan(row pgx.Row) (*PatientFile, error) {
	var f PatientFile
	var birth time.Time
	err := row.Scan(&f.ID, &f.NationalID, &f.FirstName, &f.LastName, &birth, &f.Email, &f.Phone, &f.Address,
		&f.ReferringDoctorID, &f.SecretHash, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.BirthDate = civil.DateOf(birth)
	return &f, nil
}

func (r *repoPG) Create(ctx context.Context, f *PatientFile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_file (id, national_id, first_name, last_name, birth_date, email, phone, address,
			referring_doctor_id, secret_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		f.ID, f.NationalID, f.FirstName, f.LastName, f.BirthDate.In(time.UTC), f.Email, f.Phone, f.Address,
		f.ReferringDoctorID, f.SecretHash,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert patient file: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*PatientFile, error) {
	f, err := scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM patient_file WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient file: %w", err)
	}
	return f, nil
}

func (r *repoPG) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient_file WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("patient file exists: %w", err)
	}
	return exists, nil
}

func (r *repoPG) Update(ctx context.Context, f *PatientFile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient_file SET first_name = $2, last_name = $3, birth_date = $4, email = $5,
			phone = $6, address = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.FirstName, f.LastName, f.BirthDate.In(time.UTC), f.Email, f.Phone, f.Address,
	).Scan(&f.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient file: %w", err)
	}
	return nil
}

func (r *repoPG) UpdateReferringDoctor(ctx context.Context, id, doctorID string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patient_file SET referring_doctor_id = $2, updated_at = now() WHERE id = $1`, id, doctorID)
	if err != nil {
		return fmt.Errorf("update referring doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient_file WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) CountByReferringDoctor(ctx context.Context, doctorID string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_file WHERE referring_doctor_id = $1`, doctorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referred patient files: %w", err)
	}
	return n, nil
}
