package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrecord/medrecord/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) exists(ctx context.Context, table, code string) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE code = $1)`, code).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%s exists: %w", table, err)
	}
	return ok, nil
}

func (r *repoPG) ActExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "medical_act", code)
}

func (r *repoPG) DiseaseExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "disease", code)
}

// list returns (code, label) pairs of a catalog table; search matches
// case-insensitively on code prefix or label substring.
func (r *repoPG) list(ctx context.Context, table, search string, limit, offset int) ([][2]string, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ``
	args := []interface{}{}
	if search != "" {
		where = ` WHERE code ILIKE $1 || '%' OR label ILIKE '%' || $1 || '%'`
		args = append(args, search)
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	n := len(args)
	rows, err := conn.Query(ctx,
		fmt.Sprintf(`SELECT code, label FROM %s%s ORDER BY code LIMIT $%d OFFSET $%d`, table, where, n+1, n+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var items [][2]string
	for rows.Next() {
		var code, label string
		if err := rows.Scan(&code, &label); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, [2]string{code, label})
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActs(ctx context.Context, search string, limit, offset int) ([]*MedicalAct, int, error) {
	pairs, total, err := r.list(ctx, "medical_act", search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	acts := make([]*MedicalAct, 0, len(pairs))
	for _, p := range pairs {
		acts = append(acts, &MedicalAct{Code: p[0], Label: p[1]})
	}
	return acts, total, nil
}

func (r *repoPG) ListDiseases(ctx context.Context, search string, limit, offset int) ([]*Disease, int, error) {
	pairs, total, err := r.list(ctx, "disease", search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	diseases := make([]*Disease, 0, len(pairs))
	for _, p := range pairs {
		diseases = append(diseases, &Disease{Code: p[0], Label: p[1]})
	}
	return diseases, total, nil
}
