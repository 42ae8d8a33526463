package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/reconcile"
)

const (
	msgLoadDoctors      = "Failed to load doctors"
	msgSaveDoctor       = "Failed to save doctor"
	msgToggleDoctor     = "Failed to update doctor status"
	msgModeRequired     = "Please select at least one consultation mode"
	noticeDoctorAdded   = "Doctor added successfully!"
	noticeDoctorUpdated = "Doctor updated successfully!"

	maxYearsOfExperience = 70
)

// ErrDoctorNotFound is returned when toggling a doctor the roster does not
// hold.
var ErrDoctorNotFound = errors.New("admin: doctor not found")

// DoctorsAPI is the backend surface the roster uses.
type DoctorsAPI interface {
	AdminListDoctors(ctx context.Context) ([]apiclient.Doctor, error)
	AdminCreateDoctor(ctx context.Context, in apiclient.DoctorInput) (*apiclient.Doctor, error)
	AdminUpdateDoctor(ctx context.Context, id string, in apiclient.DoctorInput) (*apiclient.Doctor, error)
	AdminSetDoctorActive(ctx context.Context, id string, active bool) error
}

// Purger drops cached public doctor data after a write.
type Purger interface {
	Purge()
}

// ValidationError lists the problems with a doctor form, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for _, field := range []string{"name", "specialization", "bio", "years_of_experience", "consultation_modes"} {
		if msg, ok := e.Fields[field]; ok {
			return msg
		}
	}
	return "invalid doctor"
}

// ParseDoctorForm reads the admin doctor form. A non-numeric years field is
// reported as a validation error.
func ParseDoctorForm(form url.Values) (apiclient.DoctorInput, error) {
	in := apiclient.DoctorInput{
		Name:           strings.TrimSpace(form.Get("name")),
		Specialization: strings.TrimSpace(form.Get("specialization")),
		Bio:            strings.TrimSpace(form.Get("bio")),
		IsActive:       formBool(form.Get("is_active")),
	}
	for _, m := range form["consultation_modes"] {
		in.ConsultationModes = append(in.ConsultationModes, apiclient.ConsultationMode(strings.TrimSpace(m)))
	}
	rawYears := strings.TrimSpace(form.Get("years_of_experience"))
	if rawYears == "" {
		return in, &ValidationError{Fields: map[string]string{"years_of_experience": "Years of experience is required"}}
	}
	years, err := strconv.Atoi(rawYears)
	if err != nil {
		return in, &ValidationError{Fields: map[string]string{"years_of_experience": "Years of experience must be a whole number"}}
	}
	in.YearsOfExperience = years
	return in, ValidateDoctor(in)
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// ValidateDoctor checks a doctor payload before it is sent.
func ValidateDoctor(in apiclient.DoctorInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Name is required"
	}
	if strings.TrimSpace(in.Specialization) == "" {
		fields["specialization"] = "Specialization is required"
	}
	if strings.TrimSpace(in.Bio) == "" {
		fields["bio"] = "Bio is required"
	}
	if in.YearsOfExperience < 0 || in.YearsOfExperience > maxYearsOfExperience {
		fields["years_of_experience"] = fmt.Sprintf("Years of experience must be between 0 and %d", maxYearsOfExperience)
	}
	if len(in.ConsultationModes) == 0 {
		fields["consultation_modes"] = msgModeRequired
	} else {
		for _, m := range in.ConsultationModes {
			if !m.Valid() {
				fields["consultation_modes"] = fmt.Sprintf("Unknown consultation mode %q", m)
				break
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// DoctorRoster is the admin doctor list with create, update and the active
// toggle.
type DoctorRoster struct {
	api   DoctorsAPI
	cache Purger
	list  *reconcile.List[apiclient.Doctor]
	options

	mu     sync.Mutex
	errMsg string
	notice string
}

// NewDoctorRoster builds a roster. cache may be nil.
func NewDoctorRoster(api DoctorsAPI, cache Purger, opts ...Option) *DoctorRoster {
	return &DoctorRoster{
		api:     api,
		cache:   cache,
		list:    reconcile.New[apiclient.Doctor](api.AdminListDoctors),
		options: buildOptions(opts),
	}
}

// Load fetches every doctor.
func (r *DoctorRoster) Load(ctx context.Context) error {
	if err := r.list.Refresh(ctx); err != nil {
		r.logger.Warn("failed to load doctors", "error", err)
		r.setErr(msgLoadDoctors)
		return fmt.Errorf("admin: load doctors: %w", err)
	}
	return nil
}

// Save creates the doctor when id is empty, otherwise updates it. Input is
// validated first; nothing is sent when it fails.
func (r *DoctorRoster) Save(ctx context.Context, id string, in apiclient.DoctorInput) error {
	r.setBanner("", "")
	if err := ValidateDoctor(in); err != nil {
		r.setErr(err.Error())
		return err
	}

	var (
		err    error
		notice string
	)
	if id == "" {
		_, err = r.api.AdminCreateDoctor(ctx, in)
		notice = noticeDoctorAdded
	} else {
		_, err = r.api.AdminUpdateDoctor(ctx, id, in)
		notice = noticeDoctorUpdated
	}
	if err != nil {
		r.logger.Warn("failed to save doctor", "doctor_id", id, "error", err)
		r.setErr(apiclient.Message(err, msgSaveDoctor))
		return fmt.Errorf("admin: save doctor: %w", err)
	}
	r.purge()
	r.setBanner("", notice)
	r.logger.Info("doctor saved", "doctor_id", id, "name", in.Name)
	return r.Load(ctx)
}

// ToggleActive flips the doctor's active flag locally, then on the backend.
// A failure reloads the roster from the server.
func (r *DoctorRoster) ToggleActive(ctx context.Context, id string) error {
	var current *apiclient.Doctor
	for _, d := range r.list.Items() {
		if d.ID == id {
			d := d
			current = &d
			break
		}
	}
	if current == nil {
		return fmt.Errorf("%w: %s", ErrDoctorNotFound, id)
	}
	next := !current.IsActive
	r.setBanner("", "")

	err := r.list.Apply(ctx,
		func(d apiclient.Doctor) bool { return d.ID == id },
		func(d *apiclient.Doctor) { d.IsActive = next },
		func(ctx context.Context) error { return r.api.AdminSetDoctorActive(ctx, id, next) },
	)
	if err != nil {
		r.logger.Warn("failed to toggle doctor", "doctor_id", id, "error", err)
		r.setErr(msgToggleDoctor)
		return fmt.Errorf("admin: toggle doctor: %w", err)
	}
	r.purge()
	return nil
}

// Find returns the doctor with id from the loaded roster.
func (r *DoctorRoster) Find(id string) (apiclient.Doctor, bool) {
	for _, d := range r.list.Items() {
		if d.ID == id {
			return d, true
		}
	}
	return apiclient.Doctor{}, false
}

func (r *DoctorRoster) Doctors() []apiclient.Doctor { return r.list.Items() }

func (r *DoctorRoster) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMsg
}

func (r *DoctorRoster) Notice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notice
}

func (r *DoctorRoster) purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *DoctorRoster) setErr(msg string) {
	r.mu.Lock()
	r.errMsg = msg
	r.mu.Unlock()
}

func (r *DoctorRoster) setBanner(errMsg, notice string) {
	r.mu.Lock()
	r.errMsg = errMsg
	r.notice = notice
	r.mu.Unlock()
}
