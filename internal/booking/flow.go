package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgSelectDate      = "Please select a date"
	msgInvalidDate     = "Please select a valid date"
	msgSelectSlot      = "Please select a time slot"
	msgSlotUnavailable = "Please select an available time slot"
	msgEnterName       = "Please enter your name"
	msgEnterContact    = "Please enter your contact number"
	msgBadMode         = "Please select a consultation type offered by this doctor"
	msgSlotsFailed     = "Failed to load slots"
	msgServerError     = "Server error. Please try again."
)

var tracer = otel.Tracer("docbook.internal.booking")

// API is the slice of the backend client the wizard needs.
type API interface {
	AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error)
	CreateAppointment(ctx context.Context, req apiclient.AppointmentRequest) (*apiclient.BookingResult, error)
}

// Option customizes a Flow.
type Option func(*Flow)

// WithLogger sets the flow logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics counts submissions.
func WithMetrics(m *metrics.FrontendMetrics) Option {
	return func(f *Flow) { f.metrics = m }
}

// Flow is the booking wizard for one doctor. Its methods are safe to call
// from several goroutines.
type Flow struct {
	api     API
	doctor  apiclient.Doctor
	logger  *logging.Logger
	metrics *metrics.FrontendMetrics

	mu       sync.Mutex
	state    State
	draft    Draft
	slots    []string
	fetchSeq uint64
}

// New starts a wizard at DateSelect. The consultation type defaults to the
// doctor's first listed mode, or online when none is listed.
func New(api API, doctor apiclient.Doctor, opts ...Option) (*Flow, error) {
	if api == nil {
		return nil, errors.New("booking: api required")
	}
	if !doctor.IsAvailable {
		return nil, ErrDoctorUnavailable
	}
	f := &Flow{
		api:    api,
		doctor: doctor,
		logger: logging.Default(),
		state:  DateSelect{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.draft.ConsultationType = f.defaultMode()
	return f, nil
}

func (f *Flow) defaultMode() apiclient.ConsultationMode {
	if len(f.doctor.ConsultationModes) > 0 {
		return f.doctor.ConsultationModes[0]
	}
	return apiclient.ModeOnline
}

// Modes lists the consultation types the details step offers.
func (f *Flow) Modes() []apiclient.ConsultationMode {
	if len(f.doctor.ConsultationModes) == 0 {
		return []apiclient.ConsultationMode{apiclient.ModeOnline}
	}
	out := make([]apiclient.ConsultationMode, len(f.doctor.ConsultationModes))
	copy(out, f.doctor.ConsultationModes)
	return out
}

// Doctor returns the doctor being booked.
func (f *Flow) Doctor() apiclient.Doctor { return f.doctor }

// State returns the current state value.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Draft returns a copy of the entered values.
func (f *Flow) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SetDate records the chosen date (YYYY-MM-DD). Changing the date forgets
// the selected time.
func (f *Flow) SetDate(date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, done := f.state.(Success); done {
		return transitionError("set date", f.state)
	}
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			f.state = DateSelect{Err: msgInvalidDate}
			return invalid("date", msgInvalidDate)
		}
	}
	if date != f.draft.Date {
		f.draft.Time = ""
		f.slots = nil
	}
	f.draft.Date = date
	return nil
}

// ToSlots moves from DateSelect to SlotSelect and fetches the free slots for
// the chosen date. Calling it again from SlotSelect refreshes the list.
//
// A fetch failure still lands in SlotSelect with an inline error; the error
// is also returned. A reply for a date the flow no longer holds is dropped.
func (f *Flow) ToSlots(ctx context.Context) error {
	f.mu.Lock()
	switch f.state.(type) {
	case DateSelect, SlotSelect:
	default:
		err := transitionError("load slots", f.state)
		f.mu.Unlock()
		return err
	}
	if f.draft.Date == "" {
		f.state = DateSelect{Err: msgSelectDate}
		f.mu.Unlock()
		return invalid("date", msgSelectDate)
	}
	f.fetchSeq++
	seq := f.fetchSeq
	date := f.draft.Date
	doctorID := f.doctor.ID
	f.mu.Unlock()

	slots, err := f.api.AvailableSlots(ctx, doctorID, date)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.fetchSeq || date != f.draft.Date {
		f.logger.Debug("discarding stale slot reply", "doctor_id", doctorID, "date", date)
		return nil
	}
	if err != nil {
		f.slots = nil
		f.state = SlotSelect{Err: apiclient.Message(err, msgSlotsFailed)}
		return fmt.Errorf("booking: load slots: %w", err)
	}
	if slots == nil {
		slots = []string{}
	}
	f.slots = slots
	if f.draft.Time != "" && !contains(slots, f.draft.Time) {
		f.draft.Time = ""
	}
	f.state = SlotSelect{Slots: cloneSlots(slots)}
	return nil
}

// SelectSlot picks one of the fetched slots.
func (f *Flow) SelectSlot(slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.state.(SlotSelect); !ok {
		return transitionError("select slot", f.state)
	}
	slot = strings.TrimSpace(slot)
	if !contains(f.slots, slot) {
		f.state = SlotSelect{Slots: cloneSlots(f.slots), Err: msgSlotUnavailable}
		return invalid("time", msgSlotUnavailable)
	}
	f.draft.Time = slot
	f.state = SlotSelect{Slots: cloneSlots(f.slots)}
	return nil
}

// ToDetails moves to the details step once a slot is selected.
func (f *Flow) ToDetails() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.state.(SlotSelect); !ok {
		return transitionError("continue to details", f.state)
	}
	if f.draft.Time == "" {
		f.state = SlotSelect{Slots: cloneSlots(f.slots), Err: msgSelectSlot}
		return invalid("time", msgSelectSlot)
	}
	f.state = Details{}
	return nil
}

// SetConsultationType chooses one of the doctor's modes.
func (f *Flow) SetConsultationType(mode apiclient.ConsultationMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, done := f.state.(Success); done {
		return transitionError("set consultation type", f.state)
	}
	for _, m := range f.Modes() {
		if m == mode {
			f.draft.ConsultationType = mode
			return nil
		}
	}
	return invalid("consultation_type", msgBadMode)
}

// SetPatient records the patient's name and contact as typed.
func (f *Flow) SetPatient(name, contact string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, done := f.state.(Success); done {
		return transitionError("set patient", f.state)
	}
	f.draft.PatientName = name
	f.draft.PatientContact = contact
	return nil
}

// Submit posts the booking. On success the flow reaches Success with the
// server's appointment; on failure it stays in Details with the error shown
// and every entered value kept.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	details, ok := f.state.(Details)
	if !ok {
		err := transitionError("submit", f.state)
		f.mu.Unlock()
		return err
	}
	if details.Submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	name := strings.TrimSpace(f.draft.PatientName)
	contact := strings.TrimSpace(f.draft.PatientContact)
	var verr *ValidationError
	switch {
	case name == "":
		verr = invalid("patient_name", msgEnterName)
	case contact == "":
		verr = invalid("patient_contact", msgEnterContact)
	}
	if verr != nil {
		f.state = Details{Err: verr.Message}
		f.mu.Unlock()
		f.metrics.ObserveBooking("invalid")
		return verr
	}
	req := apiclient.AppointmentRequest{
		Doctor:           f.doctor.ID,
		PatientName:      name,
		PatientContact:   contact,
		ConsultationType: f.draft.ConsultationType,
		AppointmentDate:  f.draft.Date,
		AppointmentTime:  f.draft.Time,
	}
	f.state = Details{Submitting: true}
	f.mu.Unlock()

	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("docbook.doctor_id", req.Doctor),
		attribute.String("docbook.appointment_date", req.AppointmentDate),
		attribute.String("docbook.appointment_time", req.AppointmentTime),
	)

	result, err := f.api.CreateAppointment(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		f.state = Details{Err: SubmitErrorMessage(err)}
		f.metrics.ObserveBooking("error")
		f.logger.Warn("booking submission failed", "doctor_id", req.Doctor, "date", req.AppointmentDate, "time", req.AppointmentTime, "error", err)
		return fmt.Errorf("booking: submit: %w", err)
	}
	f.state = Success{Appointment: result.Appointment}
	f.metrics.ObserveBooking("success")
	f.logger.Info("appointment booked", "doctor_id", req.Doctor, "appointment_id", result.Appointment.ID)
	return nil
}

// Back returns one step without clearing anything. It is a no-op at
// DateSelect and invalid after Success.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state.(type) {
	case Details:
		f.state = SlotSelect{Slots: cloneSlots(f.slots)}
	case SlotSelect:
		f.state = DateSelect{}
	case DateSelect:
	default:
		return transitionError("back", f.state)
	}
	return nil
}

// Resume rebuilds a flow from values posted back by the browser by replaying
// the public transitions up to step. Replay stops at the first transition
// that fails; the flow then sits at that step with its inline error.
func Resume(ctx context.Context, api API, doctor apiclient.Doctor, draft Draft, step Step, opts ...Option) (*Flow, error) {
	f, err := New(api, doctor, opts...)
	if err != nil {
		return nil, err
	}
	if draft.ConsultationType != "" {
		_ = f.SetConsultationType(draft.ConsultationType)
	}
	_ = f.SetPatient(draft.PatientName, draft.PatientContact)
	if step < StepSlots {
		if err := f.SetDate(draft.Date); err == nil && f.draft.Date != "" {
			// a slot picked before going back; SetDate or ToSlots drop it
			// when the date changes or the slot is gone
			f.mu.Lock()
			f.draft.Time = strings.TrimSpace(draft.Time)
			f.mu.Unlock()
		}
		return f, nil
	}
	if err := f.SetDate(draft.Date); err != nil {
		return f, nil
	}
	if err := f.ToSlots(ctx); err != nil {
		return f, nil
	}
	if step < StepDetails || draft.Time == "" {
		if draft.Time != "" {
			_ = f.SelectSlot(draft.Time)
		}
		return f, nil
	}
	if err := f.SelectSlot(draft.Time); err != nil {
		return f, nil
	}
	_ = f.ToDetails()
	return f, nil
}

// SubmitErrorMessage renders a failed submission: the raw error body when it
// is a string, indented JSON when it is structured, else the error message.
func SubmitErrorMessage(err error) string {
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		return msgServerError
	}
	switch data := apiErr.Data.(type) {
	case nil:
	case string:
		if data != "" {
			return data
		}
	default:
		if b, mErr := json.MarshalIndent(data, "", "  "); mErr == nil {
			return string(b)
		}
	}
	return apiclient.Message(err, msgServerError)
}

func contains(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

func cloneSlots(slots []string) []string {
	out := make([]string, len(slots))
	copy(out, slots)
	return out
}
