// Package lookup finds a patient's appointments by contact number.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

const (
	msgContactRequired = "Please enter your contact number"
	msgLookupFailed    = "Failed to fetch appointments"
)

// API is the backend call the lookup needs.
type API interface {
	MyAppointments(ctx context.Context, contact string) ([]apiclient.Appointment, error)
}

// ValidationError reports unusable input; no request was made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Entry is one appointment prepared for display.
type Entry struct {
	apiclient.Appointment
	Upcoming  bool
	Display   StatusDisplay
	DateLabel string
	TimeLabel string
}

// Result is what the lookup page renders. Searched flips to true once a
// request has completed, whether it found anything or failed.
type Result struct {
	Contact  string
	Searched bool
	Entries  []Entry
	Error    string
}

// Service performs lookups.
type Service struct {
	api    API
	logger *logging.Logger
	now    func() time.Time
	loc    *time.Location
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now for the upcoming check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone appointment times are read in. Defaults to
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(api API, opts ...Option) *Service {
	s := &Service{
		api:    api,
		logger: logging.Default(),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup fetches appointments for contact. Blank input fails validation
// without a network call. A backend failure is reported in Result.Error and
// also returned.
func (s *Service) Lookup(ctx context.Context, contact string) (Result, error) {
	trimmed := strings.TrimSpace(contact)
	if trimmed == "" {
		return Result{Contact: contact, Error: msgContactRequired}, &ValidationError{Message: msgContactRequired}
	}

	appts, err := s.api.MyAppointments(ctx, trimmed)
	if err != nil {
		s.logger.Warn("appointment lookup failed", "error", err)
		return Result{
			Contact:  trimmed,
			Searched: true,
			Entries:  []Entry{},
			Error:    apiclient.Message(err, msgLookupFailed),
		}, fmt.Errorf("lookup: %w", err)
	}

	now := s.now()
	entries := make([]Entry, 0, len(appts))
	for _, a := range appts {
		entries = append(entries, s.entry(a, now))
	}
	return Result{Contact: trimmed, Searched: true, Entries: entries}, nil
}

func (s *Service) entry(a apiclient.Appointment, now time.Time) Entry {
	e := Entry{
		Appointment: a,
		Display:     DisplayFor(a.Status),
		DateLabel:   FormatDate(a.AppointmentDate),
		TimeLabel:   FormatTime(a.AppointmentTime),
	}
	if at, ok := startsAt(a.AppointmentDate, a.AppointmentTime, s.loc); ok {
		e.Upcoming = at.After(now)
	}
	return e
}
