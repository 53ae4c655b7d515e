package catalog

// MedicalAct is a catalog entry referenced by Act clinical entries.
type MedicalAct struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Disease is a catalog entry referenced by Diagnosis clinical entries.
type Disease struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}
