package entry

import (
	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// WireBase is the JSON shape shared by every wire variant. Type is the
// discriminator and is always set by the registry.
type WireBase struct {
	Type            Kind       `json:"type"`
	ID              uuid.UUID  `json:"id"`
	Date            civil.Date `json:"date"`
	Comments        string     `json:"comments"`
	AuthoringDoctor string     `json:"authoring_doctor"`
	PatientFile     string     `json:"patient_file"`
}

func (w *WireBase) Header() *WireBase { return w }

// Wire is the transport representation of an Entry.
type Wire interface {
	Header() *WireBase
}

type ActWire struct {
	WireBase
	ActCode string `json:"act_code"`
}

type DiagnosisWire struct {
	WireBase
	DiseaseCode string `json:"disease_code"`
}

type MailWire struct {
	WireBase
	Text            string `json:"text"`
	RecipientDoctor string `json:"recipient_doctor"`
}

type PrescriptionWire struct {
	WireBase
	Description string `json:"description"`
}

type SymptomWire struct {
	WireBase
	Description string `json:"description"`
}

func wireBase(kind Kind, b *Base) WireBase {
	return WireBase{
		Type:            kind,
		ID:              b.ID,
		Date:            b.Date,
		Comments:        b.Comments,
		AuthoringDoctor: b.AuthoringDoctorID,
		PatientFile:     b.PatientFileID,
	}
}

func entityBase(w *WireBase) Base {
	return Base{
		ID:                w.ID,
		Date:              w.Date,
		Comments:          w.Comments,
		AuthoringDoctorID: w.AuthoringDoctor,
		PatientFileID:     w.PatientFile,
	}
}
