package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/docbook-web/internal/admin"
	"github.com/wolfman30/docbook-web/internal/apiclient"
	httpmiddleware "github.com/wolfman30/docbook-web/internal/http/middleware"
	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgSessionUnavailable = "Could not start a session. Please try again."
	msgDoctorNotFound     = "Doctor not found"
	msgUnknownStatus      = "Unknown appointment status"
)

// AdminAPI is the backend surface of the admin pages.
type AdminAPI interface {
	admin.AppointmentsAPI
	admin.DoctorsAPI
	admin.StatsAPI
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.TokenPair, error)
}

// AdminHandler serves the admin panel.
type AdminHandler struct {
	api     AdminAPI
	cache   admin.Purger
	render  *Renderer
	logger  *logging.Logger
	metrics *metrics.FrontendMetrics
}

// NewAdminHandler wires the admin pages. cache is purged after doctor writes
// and may be nil.
func NewAdminHandler(api AdminAPI, cache admin.Purger, render *Renderer, logger *logging.Logger, m *metrics.FrontendMetrics) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{api: api, cache: cache, render: render, logger: logger, metrics: m}
}

func (h *AdminHandler) options() []admin.Option {
	return []admin.Option{admin.WithLogger(h.logger), admin.WithMetrics(h.metrics)}
}

// adminPage fills the chrome shared by protected pages.
func adminPage(r *http.Request, title string, body any) page {
	p := page{Title: title, Admin: true, Body: body}
	if info, ok := httpmiddleware.AdminTokenInfoFromContext(r.Context()); ok {
		p.AdminSubject = info.Subject
	}
	return p
}

type loginView struct {
	Username string
}

// LoginForm renders the login page, or skips it when already signed in.
func (h *AdminHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok && sess.IsAuthenticated() {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	h.render.Render(w, http.StatusOK, "admin_login", page{Title: "Admin Login", Body: loginView{}})
}

// Login exchanges credentials for a token pair and stores it in the session.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	creds := apiclient.Credentials{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	view := loginView{Username: creds.Username}

	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.logger.Error("login without session middleware")
		h.render.Render(w, http.StatusInternalServerError, "admin_login", page{Title: "Admin Login", Error: msgSessionUnavailable, Body: view})
		return
	}

	tokens, err := h.api.Login(r.Context(), creds)
	if err != nil {
		h.logger.Warn("admin login failed", "username", creds.Username, "error", err)
		status := http.StatusOK
		if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.Status == http.StatusUnauthorized {
			status = http.StatusUnauthorized
		}
		h.render.Render(w, status, "admin_login", page{
			Title: "Admin Login",
			Error: apiclient.Message(err, msgInvalidCredentials),
			Body:  view,
		})
		return
	}
	if err := sess.SaveTokens(r.Context(), tokens.Access, tokens.Refresh); err != nil {
		h.logger.Error("failed to save admin session", "error", err)
		h.render.Render(w, http.StatusInternalServerError, "admin_login", page{Title: "Admin Login", Error: msgSessionUnavailable, Body: view})
		return
	}
	h.logger.Info("admin logged in", "username", creds.Username)
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// Logout clears the session tokens.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		if err := sess.Logout(r.Context()); err != nil {
			h.logger.Warn("logout did not clear stored session", "error", err)
		}
	}
	http.Redirect(w, r, AdminLoginPath, http.StatusSeeOther)
}

type dashboardView struct {
	Stats *apiclient.Stats
}

// Dashboard renders the appointment counters.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := admin.NewDashboard(h.api, h.options()...).Load(r.Context())
	if redirectIfExpired(w, r, err) {
		return
	}
	h.render.Render(w, http.StatusOK, "admin_dashboard", adminPage(r, "Admin Dashboard", dashboardView{Stats: stats}))
}

type doctorForm struct {
	ID    string
	Input apiclient.DoctorInput
	Years string
}

// HasMode reports whether the form has mode ticked.
func (f doctorForm) HasMode(mode apiclient.ConsultationMode) bool {
	for _, m := range f.Input.ConsultationModes {
		if m == mode {
			return true
		}
	}
	return false
}

func blankDoctorForm() doctorForm {
	return doctorForm{Input: apiclient.DoctorInput{IsActive: true}}
}

func formFromDoctor(d apiclient.Doctor) doctorForm {
	return doctorForm{
		ID: d.ID,
		Input: apiclient.DoctorInput{
			Name:              d.Name,
			Specialization:    d.Specialization,
			Bio:               d.Bio,
			YearsOfExperience: d.YearsOfExperience,
			ConsultationModes: d.ConsultationModes,
			IsActive:          d.IsActive,
		},
		Years: strconv.Itoa(d.YearsOfExperience),
	}
}

type doctorsAdminView struct {
	Doctors  []apiclient.Doctor
	Form     doctorForm
	AllModes []apiclient.ConsultationMode
}

// Doctors renders the roster and the add form, or the edit form when
// ?edit= names a loaded doctor.
func (h *AdminHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	roster := admin.NewDoctorRoster(h.api, h.cache, h.options()...)
	err := roster.Load(r.Context())
	if redirectIfExpired(w, r, err) {
		return
	}
	form := blankDoctorForm()
	errMsg := roster.Err()
	if id := r.URL.Query().Get("edit"); id != "" && err == nil {
		if d, ok := roster.Find(id); ok {
			form = formFromDoctor(d)
		} else {
			errMsg = msgDoctorNotFound
		}
	}
	h.renderDoctors(w, r, roster, form, errMsg, "")
}

// SaveDoctor creates or updates a doctor from the form. A rejected form is
// shown again with what was typed.
func (h *AdminHandler) SaveDoctor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	roster := admin.NewDoctorRoster(h.api, h.cache, h.options()...)
	id := strings.TrimSpace(r.PostForm.Get("id"))
	in, parseErr := admin.ParseDoctorForm(r.PostForm)
	form := doctorForm{ID: id, Input: in, Years: strings.TrimSpace(r.PostForm.Get("years_of_experience"))}

	if parseErr != nil {
		err := roster.Load(ctx)
		if redirectIfExpired(w, r, err) {
			return
		}
		h.renderDoctors(w, r, roster, form, parseErr.Error(), "")
		return
	}

	err := roster.Save(ctx, id, in)
	if redirectIfExpired(w, r, err) {
		return
	}
	if err != nil {
		errMsg := roster.Err()
		if loadErr := roster.Load(ctx); redirectIfExpired(w, r, loadErr) {
			return
		}
		h.renderDoctors(w, r, roster, form, errMsg, "")
		return
	}
	h.renderDoctors(w, r, roster, blankDoctorForm(), roster.Err(), roster.Notice())
}

// ToggleDoctor flips a doctor's active flag.
func (h *AdminHandler) ToggleDoctor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roster := admin.NewDoctorRoster(h.api, h.cache, h.options()...)
	err := roster.Load(ctx)
	if redirectIfExpired(w, r, err) {
		return
	}
	if err == nil {
		err = roster.ToggleActive(ctx, chi.URLParam(r, "id"))
		if redirectIfExpired(w, r, err) {
			return
		}
		if err == nil {
			http.Redirect(w, r, "/admin/doctors", http.StatusSeeOther)
			return
		}
	}
	errMsg := roster.Err()
	if errors.Is(err, admin.ErrDoctorNotFound) {
		errMsg = msgDoctorNotFound
	}
	h.renderDoctors(w, r, roster, blankDoctorForm(), errMsg, "")
}

func (h *AdminHandler) renderDoctors(w http.ResponseWriter, r *http.Request, roster *admin.DoctorRoster, form doctorForm, errMsg, notice string) {
	p := adminPage(r, "Doctor Management", doctorsAdminView{
		Doctors:  roster.Doctors(),
		Form:     form,
		AllModes: apiclient.ConsultationModes,
	})
	p.Error = errMsg
	p.Notice = notice
	h.render.Render(w, http.StatusOK, "admin_doctors", p)
}

type appointmentsView struct {
	Appointments []apiclient.Appointment
	Doctors      []apiclient.Doctor
	Filters      admin.Filters
	Statuses     []apiclient.Status
}

// Appointments renders the filtered appointment board.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	board := admin.NewAppointmentBoard(h.api, h.options()...)
	board.Restore(admin.Filters{
		Doctor: strings.TrimSpace(q.Get("doctor")),
		Date:   strings.TrimSpace(q.Get("date")),
		Status: strings.TrimSpace(q.Get("status")),
	})

	var err error
	if q.Get("action") == "clear" {
		err = errors.Join(board.ClearFilters(ctx), board.LoadDoctors(ctx))
	} else {
		err = board.Load(ctx)
	}
	if redirectIfExpired(w, r, err) {
		return
	}
	h.renderBoard(w, r, board, board.Err())
}

// SetAppointmentStatus confirms or cancels one appointment, keeping the
// filters the board was showing.
func (h *AdminHandler) SetAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	board := admin.NewAppointmentBoard(h.api, h.options()...)
	board.Restore(admin.Filters{
		Doctor: strings.TrimSpace(r.PostForm.Get("filter_doctor")),
		Date:   strings.TrimSpace(r.PostForm.Get("filter_date")),
		Status: strings.TrimSpace(r.PostForm.Get("filter_status")),
	})
	if err := board.Load(ctx); redirectIfExpired(w, r, err) {
		return
	}

	status := apiclient.Status(strings.TrimSpace(r.PostForm.Get("status")))
	err := board.SetStatus(ctx, chi.URLParam(r, "id"), status)
	if redirectIfExpired(w, r, err) {
		return
	}
	errMsg := board.Err()
	if errors.Is(err, admin.ErrUnknownStatus) {
		errMsg = msgUnknownStatus
	}
	h.renderBoard(w, r, board, errMsg)
}

func (h *AdminHandler) renderBoard(w http.ResponseWriter, r *http.Request, board *admin.AppointmentBoard, errMsg string) {
	p := adminPage(r, "Appointment Management", appointmentsView{
		Appointments: board.Appointments(),
		Doctors:      board.Doctors(),
		Filters:      board.Filters(),
		Statuses:     apiclient.Statuses,
	})
	p.Error = errMsg
	p.Notice = board.Notice()
	h.render.Render(w, http.StatusOK, "admin_appointments", p)
}
