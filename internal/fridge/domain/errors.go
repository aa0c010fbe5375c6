package domain

import "errors"

// Error kinds. Every specific error below unwraps to exactly one of them.
var (
	ErrInvalidArgument = errors.New("invalid_argument")
	ErrValidation      = errors.New("validation_error")
	ErrApplyFailed     = errors.New("apply_failed")
	ErrNotFound        = errors.New("not_found")
)

var (
	ErrInvalidFloor      = newError(ErrInvalidArgument, "invalid_floor")
	ErrInvalidSlotIndex  = newError(ErrInvalidArgument, "invalid_slot_index")
	ErrEmptyAllocations  = newError(ErrInvalidArgument, "empty_allocations")
	ErrInvalidID         = newError(ErrInvalidArgument, "invalid_id")
	ErrInvalidLabelRange = newError(ErrInvalidArgument, "invalid_label_range")
	ErrInvalidType       = newError(ErrInvalidArgument, "invalid_compartment_type")
	ErrInvalidStatus     = newError(ErrInvalidArgument, "invalid_compartment_status")
	ErrInvalidLocation   = newError(ErrInvalidArgument, "invalid_location")
	ErrInvalidRoomNumber = newError(ErrInvalidArgument, "invalid_room_number")
	ErrNoCompartments    = newError(ErrInvalidArgument, "no_compartments")

	ErrUnknownCompartment     = newError(ErrValidation, "unknown_compartment")
	ErrCompartmentNotOnFloor  = newError(ErrValidation, "compartment_not_on_floor")
	ErrDuplicateCompartment   = newError(ErrValidation, "duplicate_compartment")
	ErrUnknownRoom            = newError(ErrValidation, "unknown_room")
	ErrRoomNotOnFloor         = newError(ErrValidation, "room_not_on_floor")
	ErrRoomInMultipleTargets  = newError(ErrValidation, "room_in_multiple_compartments")
	ErrCompartmentLocked      = newError(ErrValidation, "compartment_locked")
	ErrCompartmentUnavailable = newError(ErrValidation, "compartment_unavailable")
	ErrRoomAssignedInUnit     = newError(ErrValidation, "room_assigned_in_unit")
	ErrReorderMismatch        = newError(ErrValidation, "reorder_mismatch")
	ErrRoomExists             = newError(ErrValidation, "room_exists")

	ErrUnitNotFound        = newError(ErrNotFound, "unit_not_found")
	ErrCompartmentNotFound = newError(ErrNotFound, "compartment_not_found")

	// ErrFloorBusy is returned when another apply holds the floor lock. It is
	// an ApplyFailed kind: nothing was written and the caller may retry.
	ErrFloorBusy = newError(ErrApplyFailed, "floor_busy")
)

type kindError struct {
	kind error
	code string
}

func newError(kind error, code string) error {
	return &kindError{kind: kind, code: code}
}

func (e *kindError) Error() string { return e.code }

func (e *kindError) Unwrap() error { return e.kind }

// Code returns the stable snake_case code of a domain error, or "" when err is
// not one.
func Code(err error) string {
	var kErr *kindError
	if errors.As(err, &kErr) {
		return kErr.code
	}
	return ""
}
