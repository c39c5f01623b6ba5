package app

import (
	"time"

	"habithub/internal/hub"
)

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusNotice  = "notice"
	StatusError   = "error"
)

// Operation tracks one CLI invocation from start to Close. It ends up as a
// single summary line in the log.
type Operation struct {
	ID      string // also the opID column of every log line
	Name    string
	User    string
	Status  string
	Started time.Time
}

// NewOperation creates an operation that succeeds unless recorded otherwise.
func NewOperation(id, name string, started time.Time) *Operation {
	return &Operation{
		ID:      id,
		Name:    name,
		Status:  StatusSuccess,
		Started: started,
	}
}

// Record folds the outcome of one step into the operation status. An error
// is never downgraded by a later notice or success.
func (op *Operation) Record(err error) {
	switch {
	case err == nil:
	case hub.IsNotice(err):
		if op.Status == StatusSuccess {
			op.Status = StatusNotice
		}
	default:
		op.Status = StatusError
	}
}

// Failed reports whether any recorded step failed.
func (op *Operation) Failed() bool {
	return op.Status == StatusError
}
