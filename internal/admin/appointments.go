// Package admin holds the workflows behind the admin panel: the appointment
// board, doctor roster and dashboard counters.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/observability/metrics"
	"github.com/wolfman30/docbook-web/internal/reconcile"
	"github.com/wolfman30/docbook-web/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgLoadAppointments   = "Failed to load appointments. Please try again."
	msgLoadDoctorsList    = "Failed to load doctors list"
	msgUpdateAppointment  = "Failed to update appointment status"
	noticeStatusChangeFmt = "Appointment %s successfully!"
)

var tracer = otel.Tracer("docbook.internal.admin")

// ErrUnknownStatus rejects a status outside apiclient.Statuses.
var ErrUnknownStatus = errors.New("admin: unknown appointment status")

// Filters narrow the appointment board. Empty fields are not sent.
type Filters = apiclient.AppointmentFilters

// AppointmentsAPI is the backend surface the board uses.
type AppointmentsAPI interface {
	AdminListAppointments(ctx context.Context, filters apiclient.AppointmentFilters) ([]apiclient.Appointment, error)
	AdminUpdateAppointmentStatus(ctx context.Context, id string, status apiclient.Status) error
	AdminListDoctors(ctx context.Context) ([]apiclient.Doctor, error)
}

// Transitions lists the statuses the board offers as next steps. Pending may
// be confirmed or cancelled, confirmed may be cancelled, cancelled is final.
func Transitions(status apiclient.Status) []apiclient.Status {
	switch status {
	case apiclient.StatusPending:
		return []apiclient.Status{apiclient.StatusConfirmed, apiclient.StatusCancelled}
	case apiclient.StatusConfirmed:
		return []apiclient.Status{apiclient.StatusCancelled}
	default:
		return nil
	}
}

// Option customizes the admin workflows.
type Option func(*options)

type options struct {
	logger  *logging.Logger
	metrics *metrics.FrontendMetrics
}

func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *metrics.FrontendMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AppointmentBoard is the admin appointment list with filters and status
// changes.
type AppointmentBoard struct {
	api  AppointmentsAPI
	list *reconcile.List[apiclient.Appointment]
	options

	mu      sync.Mutex
	filters Filters
	doctors []apiclient.Doctor
	errMsg  string
	notice  string
}

// NewAppointmentBoard builds a board with no filters.
func NewAppointmentBoard(api AppointmentsAPI, opts ...Option) *AppointmentBoard {
	b := &AppointmentBoard{api: api, options: buildOptions(opts)}
	b.list = reconcile.New[apiclient.Appointment](func(ctx context.Context) ([]apiclient.Appointment, error) {
		return api.AdminListAppointments(ctx, b.Filters())
	})
	return b
}

// Load fetches the appointments matching the current filters and the doctor
// list offered by the filter control.
func (b *AppointmentBoard) Load(ctx context.Context) error {
	listErr := b.refresh(ctx)
	docErr := b.LoadDoctors(ctx)
	if docErr != nil && listErr == nil {
		b.setErr(msgLoadDoctorsList)
	}
	return errors.Join(listErr, docErr)
}

// LoadDoctors fetches only the doctor list for the filter control.
func (b *AppointmentBoard) LoadDoctors(ctx context.Context) error {
	doctors, err := b.api.AdminListDoctors(ctx)
	if err != nil {
		b.logger.Warn("failed to load doctors for appointment filters", "error", err)
		return fmt.Errorf("admin: load doctors: %w", err)
	}
	b.mu.Lock()
	b.doctors = doctors
	b.mu.Unlock()
	return nil
}

// Restore sets filters carried by a request without fetching.
func (b *AppointmentBoard) Restore(f Filters) {
	b.mu.Lock()
	b.filters = f
	b.mu.Unlock()
}

// SetFilters replaces the filters and re-fetches when they changed.
func (b *AppointmentBoard) SetFilters(ctx context.Context, f Filters) error {
	b.mu.Lock()
	changed := f != b.filters
	b.filters = f
	b.mu.Unlock()
	if !changed && b.list.Loaded() {
		return nil
	}
	return b.refresh(ctx)
}

// ClearFilters drops every filter and re-fetches.
func (b *AppointmentBoard) ClearFilters(ctx context.Context) error {
	return b.SetFilters(ctx, Filters{})
}

func (b *AppointmentBoard) refresh(ctx context.Context) error {
	b.setErr("")
	if err := b.list.Refresh(ctx); err != nil {
		b.logger.Warn("failed to load appointments", "error", err)
		b.setErr(msgLoadAppointments)
		return fmt.Errorf("admin: load appointments: %w", err)
	}
	return nil
}

// SetStatus applies status to appointment id locally, then asks the backend.
// A failure surfaces the error and reloads the list from the server.
// Transitions outside Transitions are not rejected here.
func (b *AppointmentBoard) SetStatus(ctx context.Context, id string, status apiclient.Status) error {
	if !knownStatus(status) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	b.mu.Lock()
	b.errMsg = ""
	b.notice = ""
	b.mu.Unlock()

	ctx, span := tracer.Start(ctx, "admin.set_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("docbook.appointment_id", id),
		attribute.String("docbook.status", string(status)),
	)

	err := b.list.Apply(ctx,
		func(a apiclient.Appointment) bool { return a.ID == id },
		func(a *apiclient.Appointment) { a.Status = status },
		func(ctx context.Context) error {
			return b.api.AdminUpdateAppointmentStatus(ctx, id, status)
		},
	)
	b.metrics.ObserveStatusChange(string(status), err == nil)
	if err != nil {
		span.RecordError(err)
		b.logger.Warn("appointment status update failed", "appointment_id", id, "status", status, "error", err)
		b.setErr(apiclient.Message(err, msgUpdateAppointment))
		return fmt.Errorf("admin: set status: %w", err)
	}
	b.mu.Lock()
	b.notice = fmt.Sprintf(noticeStatusChangeFmt, status)
	b.mu.Unlock()
	b.logger.Info("appointment status updated", "appointment_id", id, "status", status)
	return nil
}

// Appointments returns the current (possibly tentative) list.
func (b *AppointmentBoard) Appointments() []apiclient.Appointment { return b.list.Items() }

func (b *AppointmentBoard) Filters() Filters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filters
}

// Doctors returns the doctors offered in the filter control.
func (b *AppointmentBoard) Doctors() []apiclient.Doctor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]apiclient.Doctor(nil), b.doctors...)
}

// Err is the inline error banner, empty when none.
func (b *AppointmentBoard) Err() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errMsg
}

// Notice is the success banner, empty when none.
func (b *AppointmentBoard) Notice() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notice
}

func (b *AppointmentBoard) setErr(msg string) {
	b.mu.Lock()
	b.errMsg = msg
	b.mu.Unlock()
}

func knownStatus(s apiclient.Status) bool {
	for _, known := range apiclient.Statuses {
		if s == known {
			return true
		}
	}
	return false
}
