package entry

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

const cols = `id, kind, entry_date, comments, author_id, patient_file_id,
	act_code, disease_code, text, recipient_id, description`

// row is the flattened column set of clinical_entry. Variant columns that do
// not apply to a kind are NULL.
type row struct {
	ID            uuid.UUID
	Kind          Kind
	Date          time.Time
	Comments      string
	AuthorID      string
	PatientFileID string
	ActCode       *string
	DiseaseCode   *string
	Text          *string
	RecipientID   *string
	Description   *string
}

func toRow(e Entry) row {
	b := e.Common()
	r := row{
		ID:            b.ID,
		Kind:          e.Kind(),
		Date:          b.Date.In(time.UTC),
		Comments:      b.Comments,
		AuthorID:      b.AuthoringDoctorID,
		PatientFileID: b.PatientFileID,
	}
	switch v := e.(type) {
	case *Act:
		r.ActCode = &v.ActCode
	case *Diagnosis:
		r.DiseaseCode = &v.DiseaseCode
	case *Mail:
		r.Text = &v.Text
		r.RecipientID = &v.RecipientDoctorID
	case *Prescription:
		r.Description = &v.Description
	case *Symptom:
		r.Description = &v.Description
	}
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r row) entity() (Entry, error) {
	base := Base{
		ID:                r.ID,
		Date:              civil.DateOf(r.Date),
		Comments:          r.Comments,
		AuthoringDoctorID: r.AuthorID,
		PatientFileID:     r.PatientFileID,
	}
	switch r.Kind {
	case KindAct:
		return &Act{Base: base, ActCode: deref(r.ActCode)}, nil
	case KindDiagnosis:
		return &Diagnosis{Base: base, DiseaseCode: deref(r.DiseaseCode)}, nil
	case KindMail:
		return &Mail{Base: base, Text: deref(r.Text), RecipientDoctorID: deref(r.RecipientID)}, nil
	case KindPrescription:
		return &Prescription{Base: base, Description: deref(r.Description)}, nil
	case KindSymptom:
		return &Symptom{Base: base, Description: deref(r.Description)}, nil
	}
	return nil, fmt.Errorf("unknown entry kind %q in row %s", r.Kind, r.ID)
}

func scan(s pgx.Row) (Entry, error) {
	var r row
	if err := s.Scan(&r.ID, &r.Kind, &r.Date, &r.Comments, &r.AuthorID, &r.PatientFileID,
		&r.ActCode, &r.DiseaseCode, &r.Text, &r.RecipientID, &r.Description); err != nil {
		return nil, err
	}
	return r.entity()
}

func (p *repoPG) Save(ctx context.Context, e Entry) error {
	r := toRow(e)
	_, err := db.Conn(ctx, p.pool).Exec(ctx, `
		INSERT INTO clinical_entry (`+cols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			comments = EXCLUDED.comments,
			act_code = EXCLUDED.act_code,
			disease_code = EXCLUDED.disease_code,
			text = EXCLUDED.text,
			recipient_id = EXCLUDED.recipient_id,
			description = EXCLUDED.description,
			updated_at = now()`,
		r.ID, r.Kind, r.Date, r.Comments, r.AuthorID, r.PatientFileID,
		r.ActCode, r.DiseaseCode, r.Text, r.RecipientID, r.Description,
	)
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

func (p *repoPG) FindByID(ctx context.Context, id uuid.UUID) (Entry, error) {
	e, err := scan(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+cols+` FROM clinical_entry WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

func (p *repoPG) FindByPatientFileID(ctx context.Context, patientFileID string) ([]Entry, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx,
		`SELECT `+cols+` FROM clinical_entry WHERE patient_file_id = $1 ORDER BY entry_date, seq`,
		patientFileID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *repoPG) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if _, err := db.Conn(ctx, p.pool).Exec(ctx, `DELETE FROM clinical_entry WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (p *repoPG) DeleteAllByPatientFileID(ctx context.Context, patientFileID string) (int64, error) {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `DELETE FROM clinical_entry WHERE patient_file_id = $1`, patientFileID)
	if err != nil {
		return 0, fmt.Errorf("delete entries of patient file: %w", err)
	}
	return tag.RowsAffected(), nil
}
