package idp

import (
	"context"
	"fmt"
)

type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusSkipped:
		return "skipped"
	}
	return "failed"
}

// Result of a write against the identity provider. Err is set only when
// Status is StatusFailed.
type Result struct {
	Status Status
	Err    error
}

func ok() Result              { return Result{Status: StatusOK} }
func failed(err error) Result { return Result{Status: StatusFailed, Err: err} }
func failedf(format string, a ...interface{}) Result {
	return failed(fmt.Errorf(format, a...))
}

// Profile is what the identity provider stores about a user. ID is the
// doctor or patient file id, used as the provider's username.
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type Client interface {
	UserExists(ctx context.Context, id string) (bool, error)
	DeleteUser(ctx context.Context, id string) Result
	UpdateUser(ctx context.Context, p Profile) Result
}

// Noop is used when no identity provider is configured.
type Noop struct{}

func (Noop) UserExists(context.Context, string) (bool, error) { return false, nil }
func (Noop) DeleteUser(context.Context, string) Result        { return Result{Status: StatusSkipped} }
func (Noop) UpdateUser(context.Context, Profile) Result       { return Result{Status: StatusSkipped} }
