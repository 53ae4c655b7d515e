package correspondence

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrecord/medrecord/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, doctor_id, patient_file_id, valid_until, created_at`

func scan(row pgx.Row) (*Correspondence, error) {
	var c Correspondence
	var validUntil time.Time
	if err := row.Scan(&c.ID, &c.DoctorID, &c.PatientFileID, &validUntil, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ValidUntil = civil.DateOf(validUntil)
	return &c, nil
}

func (r *repoPG) Save(ctx context.Context, c *Correspondence) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO correspondence (id, doctor_id, patient_file_id, valid_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET valid_until = EXCLUDED.valid_until
		RETURNING created_at`,
		c.ID, c.DoctorID, c.PatientFileID, c.ValidUntil.In(time.UTC),
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save correspondence: %w", err)
	}
	return nil
}

func (r *repoPG) FindByID(ctx context.Context, id uuid.UUID) (*Correspondence, error) {
	c, err := scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM correspondence WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find correspondence: %w", err)
	}
	return c, nil
}

func (r *repoPG) FindByPatientFileID(ctx context.Context, patientFileID string) ([]*Correspondence, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+cols+` FROM correspondence WHERE patient_file_id = $1 ORDER BY valid_until DESC, created_at`,
		patientFileID)
	if err != nil {
		return nil, fmt.Errorf("list correspondences: %w", err)
	}
	defer rows.Close()

	var items []*Correspondence
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan correspondence: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM correspondence WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete correspondence: %w", err)
	}
	return nil
}

func (r *repoPG) DeleteAllByPatientFileID(ctx context.Context, patientFileID string) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM correspondence WHERE patient_file_id = $1`, patientFileID)
	if err != nil {
		return 0, fmt.Errorf("delete correspondences of patient file: %w", err)
	}
	return tag.RowsAffected(), nil
}
