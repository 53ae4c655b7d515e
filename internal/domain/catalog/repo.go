package catalog

import "context"

type Repository interface {
	ActExists(ctx context.Context, code string) (bool, error)
	DiseaseExists(ctx context.Context, code string) (bool, error)
	ListActs(ctx context.Context, search string, limit, offset int) ([]*MedicalAct, int, error)
	ListDiseases(ctx context.Context, search string, limit, offset int) ([]*Disease, int, error)
}
