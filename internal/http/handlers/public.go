package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/booking"
	"github.com/wolfman30/docbook-web/internal/lookup"
	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

const (
	msgLoadDoctors       = "Failed to load doctors"
	msgLoadDoctorDetails = "Failed to load doctor details"
	msgSubmitInFlight    = "This booking is already being submitted. Check My Appointments before trying again."

	submitClaimTTL = 30 * time.Second
)

// Directory is the cached doctor catalogue the public pages read.
type Directory interface {
	Doctors(ctx context.Context, specialization string) ([]apiclient.Doctor, error)
	Doctor(ctx context.Context, id string) (*apiclient.Doctor, error)
	Specializations(ctx context.Context) ([]string, error)
}

// PublicHandler serves the patient-facing pages.
type PublicHandler struct {
	directory Directory
	bookings  booking.API
	lookups   *lookup.Service
	render    *Renderer
	logger    *logging.Logger
	metrics   *metrics.FrontendMetrics
	now       func() time.Time
}

// NewPublicHandler wires the public pages.
func NewPublicHandler(directory Directory, bookings booking.API, lookups *lookup.Service, render *Renderer, logger *logging.Logger, m *metrics.FrontendMetrics) *PublicHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PublicHandler{
		directory: directory,
		bookings:  bookings,
		lookups:   lookups,
		render:    render,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Home sends visitors to the doctor listing.
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/doctors", http.StatusFound)
}

type doctorsView struct {
	Doctors         []apiclient.Doctor
	Specializations []string
	Specialization  string
}

// ListDoctors renders the directory with its specialization filter. A failed
// specialization fetch only hides the filter options.
func (h *PublicHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	spec := strings.TrimSpace(r.URL.Query().Get("specialization"))
	view := doctorsView{Specialization: spec}
	data := page{Title: "Find a Doctor", Body: &view}

	specs, err := h.directory.Specializations(r.Context())
	if err != nil {
		h.logger.Warn("failed to load specializations", "error", err)
	}
	view.Specializations = specs

	doctors, err := h.directory.Doctors(r.Context(), spec)
	if err != nil {
		h.logger.Warn("failed to load doctors", "specialization", spec, "error", err)
		data.Error = apiclient.Message(err, msgLoadDoctors)
	}
	view.Doctors = doctors
	h.render.Render(w, http.StatusOK, "doctors", data)
}

type doctorView struct {
	Doctor *apiclient.Doctor
}

// DoctorDetail renders one doctor. The booking control only appears while
// the doctor is available.
func (h *PublicHandler) DoctorDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doctor, err := h.directory.Doctor(r.Context(), id)
	if err != nil {
		h.renderDoctorError(w, id, err)
		return
	}
	h.render.Render(w, http.StatusOK, "doctor", page{
		Title: "Dr. " + doctor.Name,
		Body:  doctorView{Doctor: doctor},
	})
}

func (h *PublicHandler) renderDoctorError(w http.ResponseWriter, id string, err error) {
	h.logger.Warn("failed to load doctor", "doctor_id", id, "error", err)
	h.render.Render(w, statusFor(err), "doctor", page{
		Title: "Doctor",
		Error: apiclient.Message(err, msgLoadDoctorDetails),
		Body:  doctorView{},
	})
}

type bookingView struct {
	Doctor      apiclient.Doctor
	Step        string
	Draft       booking.Draft
	Modes       []apiclient.ConsultationMode
	Slots       []string
	StepError   string
	Appointment apiclient.Appointment
	Today       string
}

// BookingForm opens the wizard at the date step.
func (h *PublicHandler) BookingForm(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.bookableDoctor(w, r)
	if !ok {
		return
	}
	flow, err := booking.New(h.bookings, *doctor, h.flowOptions()...)
	if err != nil {
		h.redirectUnbookable(w, r, doctor.ID, err)
		return
	}
	h.renderFlow(w, flow)
}

// BookingStep advances the wizard. The browser carries the draft and the
// step it was on; the flow is rebuilt from them, then the posted action runs.
func (h *PublicHandler) BookingStep(w http.ResponseWriter, r *http.Request) {
	doctor, ok := h.bookableDoctor(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	step := booking.ParseStep(r.PostForm.Get("step"))
	draft := booking.Draft{
		Date:             strings.TrimSpace(r.PostForm.Get("date")),
		Time:             strings.TrimSpace(r.PostForm.Get("time")),
		ConsultationType: apiclient.ConsultationMode(r.PostForm.Get("consultation_type")),
		PatientName:      r.PostForm.Get("patient_name"),
		PatientContact:   r.PostForm.Get("patient_contact"),
	}

	ctx := r.Context()
	flow, err := booking.Resume(ctx, h.bookings, *doctor, draft, step, h.flowOptions()...)
	if err != nil {
		h.redirectUnbookable(w, r, doctor.ID, err)
		return
	}

	var stepErr string
	switch defaultString(r.PostForm.Get("action"), nextAction(step)) {
	case "slots":
		if err := flow.SetDate(draft.Date); err == nil {
			err = flow.ToSlots(ctx)
			h.logStepError("load slots", doctor.ID, err)
		}
	case "back":
		_ = flow.Back()
	case "details":
		if draft.Time != "" {
			_ = flow.SelectSlot(draft.Time)
		}
		_ = flow.ToDetails()
	case "submit":
		if err := flow.SetConsultationType(draft.ConsultationType); err != nil {
			stepErr = err.Error()
			break
		}
		_ = flow.SetPatient(draft.PatientName, draft.PatientContact)
		release, err := h.claimSubmit(r, doctor.ID, draft)
		if err != nil {
			stepErr = msgSubmitInFlight
			break
		}
		err = flow.Submit(ctx)
		release()
		h.logStepError("submit", doctor.ID, err)
	}
	h.renderFlowWithError(w, flow, stepErr)
}

// claimSubmit holds one submission per browser for a doctor, date and time.
// It returns booking.ErrSubmitInFlight while another request holds it. A
// guard failure lets the submission through.
func (h *PublicHandler) claimSubmit(r *http.Request, doctorID string, draft booking.Draft) (func(), error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return func() {}, nil
	}
	action := fmt.Sprintf("book:%s:%s:%s", doctorID, draft.Date, draft.Time)
	release, claimed, err := sess.Claim(r.Context(), action, submitClaimTTL)
	if err != nil {
		h.logger.Warn("booking submit guard unavailable", "doctor_id", doctorID, "error", err)
		return func() {}, nil
	}
	if !claimed {
		h.logger.Info("duplicate booking submit rejected", "doctor_id", doctorID, "date", draft.Date, "time", draft.Time)
		return nil, booking.ErrSubmitInFlight
	}
	return release, nil
}

func nextAction(step booking.Step) string {
	switch step {
	case booking.StepSlots:
		return "details"
	case booking.StepDetails:
		return "submit"
	default:
		return "slots"
	}
}

func (h *PublicHandler) logStepError(op, doctorID string, err error) {
	var verr *booking.ValidationError
	if err == nil || errors.As(err, &verr) {
		return
	}
	h.logger.Debug("booking step failed", "op", op, "doctor_id", doctorID, "error", err)
}

func (h *PublicHandler) bookableDoctor(w http.ResponseWriter, r *http.Request) (*apiclient.Doctor, bool) {
	id := chi.URLParam(r, "id")
	doctor, err := h.directory.Doctor(r.Context(), id)
	if err != nil {
		h.renderDoctorError(w, id, err)
		return nil, false
	}
	if !doctor.IsAvailable {
		http.Redirect(w, r, "/doctors/"+doctor.ID, http.StatusSeeOther)
		return nil, false
	}
	return doctor, true
}

func (h *PublicHandler) redirectUnbookable(w http.ResponseWriter, r *http.Request, id string, err error) {
	h.logger.Warn("booking unavailable", "doctor_id", id, "error", err)
	http.Redirect(w, r, "/doctors/"+id, http.StatusSeeOther)
}

func (h *PublicHandler) flowOptions() []booking.Option {
	return []booking.Option{booking.WithLogger(h.logger), booking.WithMetrics(h.metrics)}
}

func (h *PublicHandler) renderFlow(w http.ResponseWriter, flow *booking.Flow) {
	h.renderFlowWithError(w, flow, "")
}

func (h *PublicHandler) renderFlowWithError(w http.ResponseWriter, flow *booking.Flow, stepErr string) {
	doctor := flow.Doctor()
	view := bookingView{
		Doctor: doctor,
		Draft:  flow.Draft(),
		Modes:  flow.Modes(),
		Today:  h.now().Format("2006-01-02"),
	}
	state := flow.State()
	view.Step = state.Step().String()
	switch s := state.(type) {
	case booking.DateSelect:
		view.StepError = s.Err
	case booking.SlotSelect:
		view.Slots = s.Slots
		view.StepError = s.Err
	case booking.Details:
		view.StepError = s.Err
	case booking.Success:
		view.Appointment = s.Appointment
	}
	if stepErr != "" {
		view.StepError = stepErr
	}
	title := "Book Appointment"
	if _, done := state.(booking.Success); done {
		title = "Appointment Booked"
	}
	h.render.Render(w, http.StatusOK, "book", page{Title: title, Body: view})
}

// MyAppointments renders the lookup form. A contact in the query string runs
// the lookup straight away.
func (h *PublicHandler) MyAppointments(w http.ResponseWriter, r *http.Request) {
	contact := r.URL.Query().Get("contact")
	if strings.TrimSpace(contact) == "" {
		h.render.Render(w, http.StatusOK, "my_appointments", page{
			Title: "My Appointments",
			Body:  lookup.Result{},
		})
		return
	}
	h.lookup(w, r, contact)
}

// SearchAppointments handles the lookup form post.
func (h *PublicHandler) SearchAppointments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	h.lookup(w, r, r.PostForm.Get("contact"))
}

func (h *PublicHandler) lookup(w http.ResponseWriter, r *http.Request, contact string) {
	// Failures are logged by the service and carried in res.Error.
	res, _ := h.lookups.Lookup(r.Context(), contact)
	h.render.Render(w, http.StatusOK, "my_appointments", page{
		Title: "My Appointments",
		Error: res.Error,
		Body:  res,
	})
}
