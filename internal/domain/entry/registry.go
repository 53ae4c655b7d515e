package entry

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/medrecord/medrecord/internal/platform/apperr"
)

type codec struct {
	newWire  func() Wire
	toWire   func(Entry) Wire
	toEntity func(Wire) Entry
}

var codecs = map[Kind]codec{
	KindAct: {
		newWire: func() Wire { return &ActWire{} },
		toWire: func(e Entry) Wire {
			a := e.(*Act)
			return &ActWire{WireBase: wireBase(KindAct, &a.Base), ActCode: a.ActCode}
		},
		toEntity: func(w Wire) Entry {
			a := w.(*ActWire)
			return &Act{Base: entityBase(&a.WireBase), ActCode: a.ActCode}
		},
	},
	KindDiagnosis: {
		newWire: func() Wire { return &DiagnosisWire{} },
		toWire: func(e Entry) Wire {
			d := e.(*Diagnosis)
			return &DiagnosisWire{WireBase: wireBase(KindDiagnosis, &d.Base), DiseaseCode: d.DiseaseCode}
		},
		toEntity: func(w Wire) Entry {
			d := w.(*DiagnosisWire)
			return &Diagnosis{Base: entityBase(&d.WireBase), DiseaseCode: d.DiseaseCode}
		},
	},
	KindMail: {
		newWire: func() Wire { return &MailWire{} },
		toWire: func(e Entry) Wire {
			m := e.(*Mail)
			return &MailWire{WireBase: wireBase(KindMail, &m.Base), Text: m.Text, RecipientDoctor: m.RecipientDoctorID}
		},
		toEntity: func(w Wire) Entry {
			m := w.(*MailWire)
			return &Mail{Base: entityBase(&m.WireBase), Text: m.Text, RecipientDoctorID: m.RecipientDoctor}
		},
	},
	KindPrescription: {
		newWire: func() Wire { return &PrescriptionWire{} },
		toWire: func(e Entry) Wire {
			p := e.(*Prescription)
			return &PrescriptionWire{WireBase: wireBase(KindPrescription, &p.Base), Description: p.Description}
		},
		toEntity: func(w Wire) Entry {
			p := w.(*PrescriptionWire)
			return &Prescription{Base: entityBase(&p.WireBase), Description: p.Description}
		},
	},
	KindSymptom: {
		newWire: func() Wire { return &SymptomWire{} },
		toWire: func(e Entry) Wire {
			s := e.(*Symptom)
			return &SymptomWire{WireBase: wireBase(KindSymptom, &s.Base), Description: s.Description}
		},
		toEntity: func(w Wire) Entry {
			s := w.(*SymptomWire)
			return &Symptom{Base: entityBase(&s.WireBase), Description: s.Description}
		},
	},
}

func lookup(kind Kind) codec {
	c, ok := codecs[kind]
	if !ok {
		panic(fmt.Sprintf("entry: no codec registered for kind %q", kind))
	}
	return c
}

// ToWire converts an entry to its wire variant. Every Entry implementation
// has a codec, so a missing one is a programming error and panics.
func ToWire(e Entry) Wire {
	return lookup(e.Kind()).toWire(e)
}

// ToEntity converts a wire value, dispatching on its discriminator. The
// resulting entry only carries reference ids; they are not resolved here.
func ToEntity(w Wire) Entry {
	return lookup(w.Header().Type).toEntity(w)
}

// Kinds lists the registered discriminators in lexical order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(codecs))
	for k := range codecs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DecodeWire reads a JSON object and returns the wire variant named by its
// "type" field.
func DecodeWire(data []byte) (Wire, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, apperr.BadRequest("invalid entry payload")
	}
	if probe.Type == "" {
		return nil, apperr.BadRequest("entry type is required")
	}
	c, ok := codecs[probe.Type]
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown entry type %q", probe.Type))
	}
	w := c.newWire()
	if err := json.Unmarshal(data, w); err != nil {
		return nil, apperr.BadRequest("invalid " + string(probe.Type) + " entry: " + err.Error())
	}
	w.Header().Type = probe.Type
	return w, nil
}
