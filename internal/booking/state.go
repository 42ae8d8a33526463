// Package booking drives the public "book an appointment" wizard for one
// doctor: pick a date, pick a free slot, enter patient details, submit.
package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/docbook-web/internal/apiclient"
)

// Step identifies a wizard screen.
type Step int

const (
	StepDate Step = iota + 1
	StepSlots
	StepDetails
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepDate:
		return "date"
	case StepSlots:
		return "slots"
	case StepDetails:
		return "details"
	case StepSuccess:
		return "success"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ParseStep reads a step name posted back by a form. Unknown names map to
// StepDate.
func ParseStep(raw string) Step {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "slots":
		return StepSlots
	case "details":
		return StepDetails
	case "success":
		return StepSuccess
	default:
		return StepDate
	}
}

// State is one of DateSelect, SlotSelect, Details or Success.
type State interface {
	Step() Step
}

// DateSelect waits for a date.
type DateSelect struct {
	Err string
}

// SlotSelect shows the free slots for the chosen date. Empty Slots with no
// Err means the doctor has nothing free that day.
type SlotSelect struct {
	Slots []string
	Err   string
}

// Details collects consultation type and patient identity.
type Details struct {
	Err        string
	Submitting bool
}

// Success holds the appointment the backend created. It carries no error.
type Success struct {
	Appointment apiclient.Appointment
}

func (DateSelect) Step() Step { return StepDate }
func (SlotSelect) Step() Step { return StepSlots }
func (Details) Step() Step    { return StepDetails }
func (Success) Step() Step    { return StepSuccess }

// Draft is everything entered so far. It survives Back and failed submits.
type Draft struct {
	Date             string
	Time             string
	ConsultationType apiclient.ConsultationMode
	PatientName      string
	PatientContact   string
}

var (
	// ErrDoctorUnavailable is returned when a flow is started for a doctor
	// that is not accepting bookings.
	ErrDoctorUnavailable = errors.New("booking: doctor is not available for booking")

	// ErrSubmitInFlight rejects a second submit while one is pending.
	ErrSubmitInFlight = errors.New("booking: submission already in progress")

	// ErrInvalidTransition is returned when an operation is not valid in the
	// current state.
	ErrInvalidTransition = errors.New("booking: invalid transition")
)

// ValidationError is a user-facing input problem; the flow stays put.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func transitionError(op string, from State) error {
	return fmt.Errorf("booking: %s from %s: %w", op, from.Step(), ErrInvalidTransition)
}
