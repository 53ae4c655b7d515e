package patientfile

import (
	"time"

	"github.com/golang-sql/civil"

	"github.com/medrecord/medrecord/internal/platform/idp"
	"github.com/medrecord/medrecord/internal/platform/registry"
)

// PatientFile is a patient's medical record. It always has exactly one
// referring doctor, changed only through ChangeReferringDoctor.
type PatientFile struct {
	ID                string     `json:"id"`
	NationalID        string     `json:"national_id"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	BirthDate         civil.Date `json:"birth_date"`
	Email             string     `json:"email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Address           string     `json:"address,omitempty"`
	ReferringDoctorID string     `json:"referring_doctor"`
	SecretHash        string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Demographics are the fields the patient or an administrator may edit.
type Demographics struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate civil.Date `json:"birth_date"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
}

func (f *PatientFile) Apply(d Demographics) {
	f.FirstName = d.FirstName
	f.LastName = d.LastName
	f.BirthDate = d.BirthDate
	f.Email = d.Email
	f.Phone = d.Phone
	f.Address = d.Address
}

func (f *PatientFile) identity() registry.Identity {
	return registry.Identity{NationalID: f.NationalID, FirstName: f.FirstName, LastName: f.LastName, BirthDate: f.BirthDate}
}

func (f *PatientFile) profile() idp.Profile {
	return idp.Profile{ID: f.ID, FirstName: f.FirstName, LastName: f.LastName, Email: f.Email, Phone: f.Phone}
}

// Caller is the authenticated principal behind a request.
type Caller struct {
	ID    string
	Roles []string
}

func (c Caller) Is(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
