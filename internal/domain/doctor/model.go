package doctor

import (
	"time"

	"github.com/medrecord/medrecord/internal/platform/idp"
)

type Doctor struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Specialties []string  `json:"specialties"`
	Admin       bool      `json:"admin"`
	SecretHash  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile holds the fields a doctor may change about themself.
type Profile struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address"`
	Specialties []string `json:"specialties"`
}

func (d *Doctor) Apply(p Profile) {
	d.FirstName = p.FirstName
	d.LastName = p.LastName
	d.Email = p.Email
	d.Phone = p.Phone
	d.Address = p.Address
	d.Specialties = p.Specialties
}

func (d *Doctor) identity() idp.Profile {
	return idp.Profile{ID: d.ID, FirstName: d.FirstName, LastName: d.LastName, Email: d.Email, Phone: d.Phone}
}
