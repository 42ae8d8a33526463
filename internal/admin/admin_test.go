package admin

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/internal/observability/metrics"
)

// fakeBackend keeps authoritative server state for the admin workflows.
type fakeBackend struct {
	mu           sync.Mutex
	appointments []apiclient.Appointment
	doctors      []apiclient.Doctor
	listFilters  []apiclient.AppointmentFilters
	doctorLists  int
	updateGate   chan struct{}
	updateErr    error
	toggleErr    error
	listDocErr   error
	created      []apiclient.DoctorInput
	updated      map[string]apiclient.DoctorInput
	stats        *apiclient.Stats
	statsErr     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		appointments: []apiclient.Appointment{
			{ID: "a1", PatientName: "Ana", Status: apiclient.StatusPending},
			{ID: "a2", PatientName: "Ben", Status: apiclient.StatusConfirmed},
		},
		doctors: []apiclient.Doctor{
			{ID: "d1", Name: "Meera Rao", IsActive: true},
			{ID: "d2", Name: "Omar Haddad", IsActive: false},
		},
		updated: map[string]apiclient.DoctorInput{},
	}
}

func (f *fakeBackend) AdminListAppointments(_ context.Context, filters apiclient.AppointmentFilters) ([]apiclient.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFilters = append(f.listFilters, filters)
	return append([]apiclient.Appointment(nil), f.appointments...), nil
}

func (f *fakeBackend) AdminUpdateAppointmentStatus(_ context.Context, id string, status apiclient.Status) error {
	if f.updateGate != nil {
		<-f.updateGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeBackend) AdminListDoctors(context.Context) ([]apiclient.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doctorLists++
	if f.listDocErr != nil {
		return nil, f.listDocErr
	}
	return append([]apiclient.Doctor(nil), f.doctors...), nil
}

func (f *fakeBackend) AdminCreateDoctor(_ context.Context, in apiclient.DoctorInput) (*apiclient.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	d := apiclient.Doctor{ID: "d3", Name: in.Name, IsActive: in.IsActive}
	f.doctors = append(f.doctors, d)
	return &d, nil
}

func (f *fakeBackend) AdminUpdateDoctor(_ context.Context, id string, in apiclient.DoctorInput) (*apiclient.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[id] = in
	return &apiclient.Doctor{ID: id, Name: in.Name}, nil
}

func (f *fakeBackend) AdminSetDoctorActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return f.toggleErr
	}
	for i := range f.doctors {
		if f.doctors[i].ID == id {
			f.doctors[i].IsActive = active
		}
	}
	return nil
}

func (f *fakeBackend) AdminStats(context.Context) (*apiclient.Stats, error) {
	return f.stats, f.statsErr
}

type purgeCounter struct{ n int }

func (p *purgeCounter) Purge() { p.n++ }

func statusOf(appts []apiclient.Appointment, id string) apiclient.Status {
	for _, a := range appts {
		if a.ID == id {
			return a.Status
		}
	}
	return ""
}

func TestTransitions(t *testing.T) {
	assert.Equal(t, []apiclient.Status{apiclient.StatusConfirmed, apiclient.StatusCancelled}, Transitions(apiclient.StatusPending))
	assert.Equal(t, []apiclient.Status{apiclient.StatusCancelled}, Transitions(apiclient.StatusConfirmed))
	assert.Empty(t, Transitions(apiclient.StatusCancelled))
	assert.Empty(t, Transitions("unknown"))
}

func TestBoardLoad(t *testing.T) {
	backend := newFakeBackend()
	board := NewAppointmentBoard(backend)

	require.NoError(t, board.Load(context.Background()))
	assert.Len(t, board.Appointments(), 2)
	assert.Len(t, board.Doctors(), 2)
	assert.Empty(t, board.Err())
	assert.Equal(t, []apiclient.AppointmentFilters{{}}, backend.listFilters)
}

func TestBoardLoadDoctorFailureShowsBanner(t *testing.T) {
	backend := newFakeBackend()
	backend.listDocErr = errors.New("down")
	board := NewAppointmentBoard(backend)

	err := board.Load(context.Background())
	require.Error(t, err)
	assert.Len(t, board.Appointments(), 2)
	assert.Equal(t, "Failed to load doctors list", board.Err())
}

func TestBoardSetStatusIsOptimistic(t *testing.T) {
	backend := newFakeBackend()
	backend.updateGate = make(chan struct{})
	board := NewAppointmentBoard(backend)
	require.NoError(t, board.Load(context.Background()))

	done := make(chan error, 1)
	go func() { done <- board.SetStatus(context.Background(), "a1", apiclient.StatusConfirmed) }()

	require.Eventually(t, func() bool {
		return statusOf(board.Appointments(), "a1") == apiclient.StatusConfirmed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, apiclient.StatusPending, statusOf(backend.appointments, "a1"))

	close(backend.updateGate)
	require.NoError(t, <-done)
	assert.Equal(t, "Appointment confirmed successfully!", board.Notice())
	assert.Empty(t, board.Err())
	assert.Len(t, backend.listFilters, 1)
}

func TestBoardSetStatusFailureRefetches(t *testing.T) {
	backend := newFakeBackend()
	backend.updateErr = &apiclient.APIError{Status: 400, Message: "Invalid status transition"}
	reg := prometheus.NewRegistry()
	m := metrics.NewFrontendMetrics(reg)
	board := NewAppointmentBoard(backend, WithMetrics(m))
	require.NoError(t, board.Load(context.Background()))

	err := board.SetStatus(context.Background(), "a2", apiclient.StatusPending)
	require.Error(t, err)
	assert.Equal(t, "Invalid status transition", board.Err())
	assert.Empty(t, board.Notice())
	assert.Len(t, backend.listFilters, 2)
	assert.Equal(t, apiclient.StatusConfirmed, statusOf(board.Appointments(), "a2"))

	count, gatherErr := testutil.GatherAndCount(reg, "docbook_admin_status_changes_total")
	require.NoError(t, gatherErr)
	assert.Equal(t, 1, count)
}

func TestBoardSetStatusFallbackMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.updateErr = errors.New("boom")
	board := NewAppointmentBoard(backend)
	require.NoError(t, board.Load(context.Background()))

	require.Error(t, board.SetStatus(context.Background(), "a1", apiclient.StatusCancelled))
	assert.Equal(t, "Failed to update appointment status", board.Err())
}

func TestBoardSetStatusRejectsUnknownStatus(t *testing.T) {
	board := NewAppointmentBoard(newFakeBackend())
	assert.ErrorIs(t, board.SetStatus(context.Background(), "a1", "archived"), ErrUnknownStatus)
}

func TestBoardFiltersRefetch(t *testing.T) {
	backend := newFakeBackend()
	board := NewAppointmentBoard(backend)
	ctx := context.Background()
	require.NoError(t, board.Load(ctx))

	require.NoError(t, board.SetFilters(ctx, Filters{Status: "pending", Doctor: "d1"}))
	require.NoError(t, board.SetFilters(ctx, Filters{Status: "pending", Doctor: "d1"}))
	require.NoError(t, board.ClearFilters(ctx))

	require.Len(t, backend.listFilters, 3)
	assert.Equal(t, apiclient.AppointmentFilters{Status: "pending", Doctor: "d1"}, backend.listFilters[1])
	assert.True(t, backend.listFilters[2].IsZero())
	assert.Empty(t, backend.listFilters[2].Query())
	assert.Equal(t, Filters{}, board.Filters())
}

func TestValidateDoctor(t *testing.T) {
	valid := apiclient.DoctorInput{
		Name:              "Meera Rao",
		Specialization:    "Cardiology",
		Bio:               "Heart specialist",
		YearsOfExperience: 12,
		ConsultationModes: []apiclient.ConsultationMode{apiclient.ModeOnline},
	}
	require.NoError(t, ValidateDoctor(valid))

	noModes := valid
	noModes.ConsultationModes = nil
	err := ValidateDoctor(noModes)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Please select at least one consultation mode", err.Error())

	tooSenior := valid
	tooSenior.YearsOfExperience = 71
	require.ErrorAs(t, ValidateDoctor(tooSenior), &verr)
	assert.Contains(t, verr.Fields, "years_of_experience")

	badMode := valid
	badMode.ConsultationModes = []apiclient.ConsultationMode{"telepathy"}
	require.ErrorAs(t, ValidateDoctor(badMode), &verr)
	assert.Contains(t, verr.Fields, "consultation_modes")

	blank := apiclient.DoctorInput{ConsultationModes: valid.ConsultationModes}
	require.ErrorAs(t, ValidateDoctor(blank), &verr)
	assert.Len(t, verr.Fields, 3)
	assert.Equal(t, "Name is required", verr.Error())
}

func TestParseDoctorForm(t *testing.T) {
	form := url.Values{
		"name":                {" Meera Rao "},
		"specialization":      {"Cardiology"},
		"bio":                 {"Heart specialist"},
		"years_of_experience": {"12"},
		"consultation_modes":  {"online", "in-person"},
		"is_active":           {"on"},
	}
	in, err := ParseDoctorForm(form)
	require.NoError(t, err)
	assert.Equal(t, "Meera Rao", in.Name)
	assert.Equal(t, 12, in.YearsOfExperience)
	assert.True(t, in.IsActive)
	assert.Equal(t, []apiclient.ConsultationMode{apiclient.ModeOnline, apiclient.ModeInPerson}, in.ConsultationModes)

	form.Set("years_of_experience", "twelve")
	_, err = ParseDoctorForm(form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "years_of_experience")
}

func TestRosterSaveValidatesBeforeSending(t *testing.T) {
	backend := newFakeBackend()
	roster := NewDoctorRoster(backend, nil)

	err := roster.Save(context.Background(), "", apiclient.DoctorInput{Name: "X", Specialization: "Y", Bio: "Z"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Please select at least one consultation mode", roster.Err())
	assert.Empty(t, backend.created)
}

func TestRosterCreateAndUpdate(t *testing.T) {
	backend := newFakeBackend()
	cache := &purgeCounter{}
	roster := NewDoctorRoster(backend, cache)
	ctx := context.Background()
	in := apiclient.DoctorInput{
		Name:              "Lena Park",
		Specialization:    "Dermatology",
		Bio:               "Skin",
		YearsOfExperience: 3,
		ConsultationModes: []apiclient.ConsultationMode{apiclient.ModeInPerson},
		IsActive:          true,
	}

	require.NoError(t, roster.Save(ctx, "", in))
	assert.Equal(t, "Doctor added successfully!", roster.Notice())
	assert.Len(t, roster.Doctors(), 3)
	assert.Equal(t, 1, cache.n)

	require.NoError(t, roster.Save(ctx, "d1", in))
	assert.Equal(t, "Doctor updated successfully!", roster.Notice())
	assert.Equal(t, "Lena Park", backend.updated["d1"].Name)
	assert.Equal(t, 2, cache.n)
}

func TestRosterToggleActive(t *testing.T) {
	backend := newFakeBackend()
	cache := &purgeCounter{}
	roster := NewDoctorRoster(backend, cache)
	ctx := context.Background()
	require.NoError(t, roster.Load(ctx))

	require.NoError(t, roster.ToggleActive(ctx, "d2"))
	d, ok := roster.Find("d2")
	require.True(t, ok)
	assert.True(t, d.IsActive)
	assert.True(t, backend.doctors[1].IsActive)
	assert.Equal(t, 1, cache.n)
	assert.Equal(t, 1, backend.doctorLists)
}

func TestRosterToggleFailureRollsBack(t *testing.T) {
	backend := newFakeBackend()
	backend.toggleErr = errors.New("boom")
	cache := &purgeCounter{}
	roster := NewDoctorRoster(backend, cache)
	ctx := context.Background()
	require.NoError(t, roster.Load(ctx))

	require.Error(t, roster.ToggleActive(ctx, "d1"))
	assert.Equal(t, "Failed to update doctor status", roster.Err())
	d, ok := roster.Find("d1")
	require.True(t, ok)
	assert.True(t, d.IsActive)
	assert.Equal(t, 2, backend.doctorLists)
	assert.Zero(t, cache.n)
}

func TestRosterToggleUnknownDoctor(t *testing.T) {
	roster := NewDoctorRoster(newFakeBackend(), nil)
	require.NoError(t, roster.Load(context.Background()))
	assert.ErrorIs(t, roster.ToggleActive(context.Background(), "nope"), ErrDoctorNotFound)
}

func TestDashboard(t *testing.T) {
	backend := newFakeBackend()
	backend.stats = &apiclient.Stats{TotalAppointments: 4, Pending: 1}
	dash := NewDashboard(backend)

	stats, err := dash.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalAppointments)

	backend.statsErr = &apiclient.APIError{Status: 401, Message: "expired"}
	stats, err = dash.Load(context.Background())
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, apiclient.ErrSessionExpired)
}

func TestBoardRestoreThenClear(t *testing.T) {
	backend := newFakeBackend()
	board := NewAppointmentBoard(backend)
	ctx := context.Background()

	board.Restore(Filters{Date: "2030-01-15"})
	require.NoError(t, board.Load(ctx))
	require.NoError(t, board.ClearFilters(ctx))

	require.Len(t, backend.listFilters, 2)
	assert.Equal(t, "2030-01-15", backend.listFilters[0].Date)
	assert.True(t, backend.listFilters[1].IsZero())
}
