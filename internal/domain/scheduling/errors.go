package scheduling

import (
	"fmt"

	"github.com/gpcare/practice/internal/platform/apperr"
)

var (
	ErrNotFound          = apperr.New(apperr.ErrNotFound, "appointment not found")
	ErrConflict          = apperr.New(apperr.ErrConflict, "clinician already has an appointment in this time range")
	ErrInvalidTransition = apperr.New(apperr.ErrConflict, "invalid appointment status transition")
	ErrNotReschedulable  = apperr.New(apperr.ErrConflict, "only booked or confirmed appointments can be rescheduled")

	errPatientNotFound   = apperr.New(apperr.ErrNotFound, "patient not found")
	errClinicianNotFound = apperr.New(apperr.ErrNotFound, "clinician not found")
	errRoomNotFound      = apperr.New(apperr.ErrNotFound, "room not found")
)

// TransitionError reports a status change outside the transitions table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change appointment status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == apperr.ErrConflict
}
