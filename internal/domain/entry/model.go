package entry

import (
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// Kind discriminates the clinical entry variants. It is also the value of
// the "type" field of the wire format.
type Kind string

const (
	KindAct          Kind = "act"
	KindDiagnosis    Kind = "diagnosis"
	KindMail         Kind = "mail"
	KindPrescription Kind = "prescription"
	KindSymptom      Kind = "symptom"
)

// Entry is one clinical entry attached to a patient file. The set of
// implementations is closed: only the variants of this package embed Base.
type Entry interface {
	Kind() Kind
	Common() *Base
}

// Base holds the fields shared by every variant. AuthoringDoctorID and
// PatientFileID are fixed at creation.
type Base struct {
	ID                uuid.UUID
	Date              civil.Date
	Comments          string
	AuthoringDoctorID string
	PatientFileID     string
}

func (b *Base) Common() *Base { return b }

type Act struct {
	Base
	ActCode string
}

type Diagnosis struct {
	Base
	DiseaseCode string
}

type Mail struct {
	Base
	Text              string
	RecipientDoctorID string
}

type Prescription struct {
	Base
	Description string
}

type Symptom struct {
	Base
	Description string
}

func (*Act) Kind() Kind          { return KindAct }
func (*Diagnosis) Kind() Kind    { return KindDiagnosis }
func (*Mail) Kind() Kind         { return KindMail }
func (*Prescription) Kind() Kind { return KindPrescription }
func (*Symptom) Kind() Kind      { return KindSymptom }
