package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	adminDoctorsPath      = "/doctors/admin/"
	adminAppointmentsPath = "/appointments/admin/appointments/"
)

// AdminListDoctors returns every doctor, active or not.
func (c *Client) AdminListDoctors(ctx context.Context) ([]Doctor, error) {
	var doctors []Doctor
	if err := c.doJSON(ctx, http.MethodGet, adminDoctorsPath, nil, &doctors); err != nil {
		return nil, fmt.Errorf("admin list doctors: %w", err)
	}
	return doctors, nil
}

func (c *Client) AdminGetDoctor(ctx context.Context, id string) (*Doctor, error) {
	var doctor Doctor
	if err := c.doJSON(ctx, http.MethodGet, adminDoctorsPath+url.PathEscape(id)+"/", nil, &doctor); err != nil {
		return nil, fmt.Errorf("admin get doctor: %w", err)
	}
	return &doctor, nil
}

func (c *Client) AdminCreateDoctor(ctx context.Context, in DoctorInput) (*Doctor, error) {
	var doctor Doctor
	if err := c.doJSON(ctx, http.MethodPost, adminDoctorsPath, in, &doctor); err != nil {
		return nil, fmt.Errorf("admin create doctor: %w", err)
	}
	return &doctor, nil
}

func (c *Client) AdminUpdateDoctor(ctx context.Context, id string, in DoctorInput) (*Doctor, error) {
	var doctor Doctor
	if err := c.doJSON(ctx, http.MethodPatch, adminDoctorsPath+url.PathEscape(id)+"/", in, &doctor); err != nil {
		return nil, fmt.Errorf("admin update doctor: %w", err)
	}
	return &doctor, nil
}

// AdminSetDoctorActive patches only the is_active flag.
func (c *Client) AdminSetDoctorActive(ctx context.Context, id string, active bool) error {
	body := map[string]bool{"is_active": active}
	if err := c.doJSON(ctx, http.MethodPatch, adminDoctorsPath+url.PathEscape(id)+"/", body, nil); err != nil {
		return fmt.Errorf("admin set doctor active: %w", err)
	}
	return nil
}

// Query encodes the non-empty filters.
func (f AppointmentFilters) Query() url.Values {
	q := url.Values{}
	if f.Doctor != "" {
		q.Set("doctor", f.Doctor)
	}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	return q
}

// IsZero reports whether no filter is set.
func (f AppointmentFilters) IsZero() bool {
	return f == AppointmentFilters{}
}

// AdminListAppointments lists appointments matching filters. Empty filters
// are omitted from the query string.
func (c *Client) AdminListAppointments(ctx context.Context, filters AppointmentFilters) ([]Appointment, error) {
	path := adminAppointmentsPath
	if q := filters.Query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var appts []Appointment
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &appts); err != nil {
		return nil, fmt.Errorf("admin list appointments: %w", err)
	}
	return appts, nil
}

func (c *Client) AdminGetAppointment(ctx context.Context, id string) (*Appointment, error) {
	var appt Appointment
	if err := c.doJSON(ctx, http.MethodGet, adminAppointmentsPath+url.PathEscape(id)+"/", nil, &appt); err != nil {
		return nil, fmt.Errorf("admin get appointment: %w", err)
	}
	return &appt, nil
}

// AdminUpdateAppointmentStatus patches only the status field.
func (c *Client) AdminUpdateAppointmentStatus(ctx context.Context, id string, status Status) error {
	body := map[string]Status{"status": status}
	if err := c.doJSON(ctx, http.MethodPatch, adminAppointmentsPath+url.PathEscape(id)+"/", body, nil); err != nil {
		return fmt.Errorf("admin update appointment status: %w", err)
	}
	return nil
}

func (c *Client) AdminStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.doJSON(ctx, http.MethodGet, "/appointments/admin/stats/", nil, &stats); err != nil {
		return nil, fmt.Errorf("admin stats: %w", err)
	}
	return &stats, nil
}
