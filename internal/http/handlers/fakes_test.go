package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

var errBackendDown = errors.New("backend down")

func testDoctors() []apiclient.Doctor {
	return []apiclient.Doctor{
		{
			ID:                "d1",
			Name:              "Alice Smith",
			Specialization:    "Cardiology",
			YearsOfExperience: 12,
			Bio:               "Heart specialist",
			ConsultationModes: []apiclient.ConsultationMode{apiclient.ModeOnline, apiclient.ModeInPerson},
			IsAvailable:       true,
			IsActive:          true,
		},
		{
			ID:                "d2",
			Name:              "Bob Jones",
			Specialization:    "Dermatology",
			YearsOfExperience: 4,
			ConsultationModes: []apiclient.ConsultationMode{apiclient.ModeOnline},
			IsAvailable:       false,
			IsActive:          false,
		},
	}
}

type fakeDirectory struct {
	doctors []apiclient.Doctor
	specs   []string
	err     error
	specErr error
	gotSpec string
}

func (f *fakeDirectory) Doctors(_ context.Context, spec string) ([]apiclient.Doctor, error) {
	f.gotSpec = spec
	if f.err != nil {
		return nil, f.err
	}
	var out []apiclient.Doctor
	for _, d := range f.doctors {
		if spec == "" || d.Specialization == spec {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDirectory) Doctor(_ context.Context, id string) (*apiclient.Doctor, error) {
	for _, d := range f.doctors {
		if d.ID == id {
			d := d
			return &d, nil
		}
	}
	return nil, &apiclient.APIError{Status: http.StatusNotFound, Message: "No Doctor matches the given query."}
}

func (f *fakeDirectory) Specializations(context.Context) ([]string, error) {
	if f.specErr != nil {
		return nil, f.specErr
	}
	return f.specs, nil
}

type fakeBookingAPI struct {
	mu        sync.Mutex
	slots     []string
	slotsErr  error
	createErr error
	created   []apiclient.AppointmentRequest

	// started and proceed, when set, hold CreateAppointment open.
	started chan struct{}
	proceed chan struct{}
}

func (f *fakeBookingAPI) AvailableSlots(context.Context, string, string) ([]string, error) {
	if f.slotsErr != nil {
		return nil, f.slotsErr
	}
	return append([]string(nil), f.slots...), nil
}

func (f *fakeBookingAPI) CreateAppointment(_ context.Context, req apiclient.AppointmentRequest) (*apiclient.BookingResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.proceed != nil {
		<-f.proceed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &apiclient.BookingResult{
		Message: "Appointment booked successfully",
		Appointment: apiclient.Appointment{
			ID:               "a-new",
			DoctorName:       "Alice Smith",
			PatientName:      req.PatientName,
			PatientContact:   req.PatientContact,
			ConsultationType: req.ConsultationType,
			AppointmentDate:  req.AppointmentDate,
			AppointmentTime:  req.AppointmentTime,
			Status:           apiclient.StatusPending,
		},
	}, nil
}

type fakeLookupAPI struct {
	appts      []apiclient.Appointment
	err        error
	gotContact string
}

func (f *fakeLookupAPI) MyAppointments(_ context.Context, contact string) ([]apiclient.Appointment, error) {
	f.gotContact = contact
	return f.appts, f.err
}

type fakeAdminAPI struct {
	mu sync.Mutex

	doctors      []apiclient.Doctor
	appointments []apiclient.Appointment
	stats        *apiclient.Stats

	listErr    error
	doctorsErr error
	statsErr   error
	updateErr  error
	createErr  error
	loginErr   error

	gotFilters   []apiclient.AppointmentFilters
	statusCalls  []string
	activeCalls  []string
	createdInput []apiclient.DoctorInput
	gotCreds     apiclient.Credentials
}

func (f *fakeAdminAPI) AdminListAppointments(_ context.Context, filters apiclient.AppointmentFilters) ([]apiclient.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotFilters = append(f.gotFilters, filters)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]apiclient.Appointment(nil), f.appointments...), nil
}

func (f *fakeAdminAPI) AdminUpdateAppointmentStatus(_ context.Context, id string, status apiclient.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, id+"="+string(status))
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.appointments {
		if f.appointments[i].ID == id {
			f.appointments[i].Status = status
		}
	}
	return nil
}

func (f *fakeAdminAPI) AdminListDoctors(context.Context) ([]apiclient.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doctorsErr != nil {
		return nil, f.doctorsErr
	}
	return append([]apiclient.Doctor(nil), f.doctors...), nil
}

func (f *fakeAdminAPI) AdminCreateDoctor(_ context.Context, in apiclient.DoctorInput) (*apiclient.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdInput = append(f.createdInput, in)
	d := apiclient.Doctor{ID: "d-new", Name: in.Name, Specialization: in.Specialization, ConsultationModes: in.ConsultationModes, IsActive: in.IsActive}
	f.doctors = append(f.doctors, d)
	return &d, nil
}

func (f *fakeAdminAPI) AdminUpdateDoctor(_ context.Context, id string, in apiclient.DoctorInput) (*apiclient.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.doctors {
		if f.doctors[i].ID == id {
			f.doctors[i].Name = in.Name
			d := f.doctors[i]
			return &d, nil
		}
	}
	return nil, &apiclient.APIError{Status: http.StatusNotFound, Message: "Not found."}
}

func (f *fakeAdminAPI) AdminSetDoctorActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if active {
		f.activeCalls = append(f.activeCalls, id+"=on")
	} else {
		f.activeCalls = append(f.activeCalls, id+"=off")
	}
	for i := range f.doctors {
		if f.doctors[i].ID == id {
			f.doctors[i].IsActive = active
		}
	}
	return nil
}

func (f *fakeAdminAPI) AdminStats(context.Context) (*apiclient.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeAdminAPI) Login(_ context.Context, creds apiclient.Credentials) (*apiclient.TokenPair, error) {
	f.gotCreds = creds
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &apiclient.TokenPair{Access: "access-token", Refresh: "refresh-token"}, nil
}

type purgeCounter struct{ n int }

func (p *purgeCounter) Purge() { p.n++ }

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(logging.Default())
	require.NoError(t, err)
	return r
}

func newTestSession(t *testing.T, authenticated bool) *session.Session {
	t.Helper()
	manager := session.NewManager(session.NewMemoryStore(), logging.Default())
	sess, err := manager.Open(context.Background(), "")
	require.NoError(t, err)
	if authenticated {
		require.NoError(t, sess.SaveTokens(context.Background(), "access-token", "refresh-token"))
	}
	return sess
}

func withSession(sess *session.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

func formBody(values url.Values) *strings.Reader {
	return strings.NewReader(values.Encode())
}
