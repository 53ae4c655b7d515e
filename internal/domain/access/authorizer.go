package access

import (
	"github.com/golang-sql/civil"

	"github.com/medrecord/medrecord/internal/domain/correspondence"
	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/metrics"
)

type Operation string

const (
	ListEntries          Operation = "list_entries"
	ListCorrespondences  Operation = "list_correspondences"
	CreateEntry          Operation = "create_entry"
	CreateCorrespondence Operation = "create_correspondence"
	UpdateEntry          Operation = "update_entry"
	DeleteEntry          Operation = "delete_entry"
	DeleteCorrespondence Operation = "delete_correspondence"
	ReadPatientFile      Operation = "read_patient_file"
)

// Relationship of a doctor to a patient file.
type Relationship int

const (
	Unrelated Relationship = iota
	ActiveCorrespondent
	Referring
)

func (r Relationship) String() string {
	switch r {
	case Referring:
		return "referring"
	case ActiveCorrespondent:
		return "active_correspondent"
	}
	return "unrelated"
}

// Reason explains a decision. ReasonNone accompanies every allowed decision.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotVisible       Reason = "forbidden_visibility"
	ReasonNotAuthor        Reason = "forbidden_authorship"
	ReasonNotReferring     Reason = "forbidden_not_referring"
	ReasonSelfDelegation   Reason = "self_delegation"
	ReasonMissingEntry     Reason = "missing_entry"
	ReasonUnknownOperation Reason = "unknown_operation"
)

// Request carries everything a decision depends on. Entry is required for
// UpdateEntry and DeleteEntry, TargetDoctorID for CreateCorrespondence.
type Request struct {
	Operation       Operation
	DoctorID        string
	ReferringID     string
	Correspondences []*correspondence.Correspondence
	Today           civil.Date

	EntryAuthorID  string
	HasEntry       bool
	TargetDoctorID string
}

type Decision struct {
	Operation    Operation
	Allowed      bool
	Relationship Relationship
	Reason       Reason
}

// Err converts a denial into the outward error kind, nil when allowed.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonNone:
		return nil
	case ReasonNotVisible:
		return apperr.ForbiddenVisibility()
	case ReasonNotAuthor:
		if d.Operation == DeleteEntry {
			return apperr.ForbiddenAuthorship("delete")
		}
		return apperr.ForbiddenAuthorship("update")
	case ReasonNotReferring:
		return apperr.Forbidden("only the referring doctor can manage correspondences")
	case ReasonSelfDelegation:
		return apperr.SelfDelegation()
	case ReasonMissingEntry:
		return apperr.BadRequest("entry is required for this operation")
	}
	return apperr.Forbidden("operation not permitted")
}

// Resolve returns the relationship of doctorID to a patient file referred by
// referringID, given its correspondences.
func Resolve(doctorID, referringID string, corrs []*correspondence.Correspondence, today civil.Date) Relationship {
	switch {
	case doctorID != "" && doctorID == referringID:
		return Referring
	case doctorID != "" && correspondence.HasActive(corrs, doctorID, today):
		return ActiveCorrespondent
	}
	return Unrelated
}

// Authorize decides whether req may proceed. Visibility is checked before
// anything specific to the operation, so a doctor unrelated to the patient
// file never learns about authorship or delegation targets.
func Authorize(req Request) Decision {
	d := decide(req)
	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	metrics.RecordAuthorization(string(req.Operation), outcome)
	return d
}

func decide(req Request) Decision {
	rel := Resolve(req.DoctorID, req.ReferringID, req.Correspondences, req.Today)
	deny := func(r Reason) Decision { return Decision{Operation: req.Operation, Relationship: rel, Reason: r} }
	allow := Decision{Operation: req.Operation, Allowed: true, Relationship: rel}

	visible := rel == Referring || rel == ActiveCorrespondent

	switch req.Operation {
	case ListEntries, ListCorrespondences, CreateEntry, ReadPatientFile:
		if !visible {
			return deny(ReasonNotVisible)
		}
		return allow

	case CreateCorrespondence:
		if !visible {
			return deny(ReasonNotVisible)
		}
		if req.TargetDoctorID == req.ReferringID {
			return deny(ReasonSelfDelegation)
		}
		if rel != Referring {
			return deny(ReasonNotReferring)
		}
		return allow

	case UpdateEntry, DeleteEntry:
		if !visible {
			return deny(ReasonNotVisible)
		}
		if !req.HasEntry {
			return deny(ReasonMissingEntry)
		}
		if req.DoctorID != req.EntryAuthorID {
			return deny(ReasonNotAuthor)
		}
		return allow

	case DeleteCorrespondence:
		if !visible {
			return deny(ReasonNotVisible)
		}
		if rel != Referring {
			return deny(ReasonNotReferring)
		}
		return allow
	}
	return deny(ReasonUnknownOperation)
}
