package correspondence

import (
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/medrecord/medrecord/internal/platform/apperr"
)

// Correspondence is a time-bounded grant from a patient file's referring
// doctor to another doctor. The grant covers ValidUntil itself.
type Correspondence struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      string     `json:"doctor_id"`
	PatientFileID string     `json:"patient_file_id"`
	ValidUntil    civil.Date `json:"valid_until"`
	CreatedAt     time.Time  `json:"created_at"`
}

// New builds a correspondence on patientFileID for targetDoctorID. A
// referring doctor cannot delegate to themself.
func New(patientFileID, referringDoctorID, targetDoctorID string, validUntil civil.Date) (*Correspondence, error) {
	if targetDoctorID == "" {
		return nil, apperr.BadRequest("doctor_id is required")
	}
	if targetDoctorID == referringDoctorID {
		return nil, apperr.SelfDelegation()
	}
	if !validUntil.IsValid() {
		return nil, apperr.BadRequest("valid_until must be a valid date")
	}
	return &Correspondence{
		DoctorID:      targetDoctorID,
		PatientFileID: patientFileID,
		ValidUntil:    validUntil,
	}, nil
}

// IsActive reports whether the grant still holds on the given day.
func (c *Correspondence) IsActive(on civil.Date) bool {
	return !on.After(c.ValidUntil)
}

// HasActive reports whether doctorID is the target of an active grant in corrs.
func HasActive(corrs []*Correspondence, doctorID string, on civil.Date) bool {
	for _, c := range corrs {
		if c.DoctorID == doctorID && c.IsActive(on) {
			return true
		}
	}
	return false
}
