package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListDoctors returns the public doctor listing, optionally narrowed to one
// specialization.
func (c *Client) ListDoctors(ctx context.Context, specialization string) ([]Doctor, error) {
	path := "/doctors/"
	if s := strings.TrimSpace(specialization); s != "" {
		path += "?" + url.Values{"specialization": {s}}.Encode()
	}
	var doctors []Doctor
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &doctors); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// GetDoctor returns one public doctor profile.
func (c *Client) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	var doctor Doctor
	if err := c.doJSON(ctx, http.MethodGet, "/doctors/"+url.PathEscape(id)+"/", nil, &doctor); err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &doctor, nil
}

// ListSpecializations returns the distinct specializations of active doctors.
func (c *Client) ListSpecializations(ctx context.Context) ([]string, error) {
	var specs []string
	if err := c.doJSON(ctx, http.MethodGet, "/doctors/specializations/", nil, &specs); err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	return specs, nil
}

// CreateAppointment books a slot.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*BookingResult, error) {
	var result BookingResult
	if err := c.doJSON(ctx, http.MethodPost, "/appointments/", req, &result); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return &result, nil
}

// AvailableSlots returns the free "HH:MM" slots for a doctor on date
// (YYYY-MM-DD). An empty list is a valid answer.
func (c *Client) AvailableSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	q := url.Values{}
	q.Set("doctor_id", doctorID)
	q.Set("date", date)
	var set SlotSet
	if err := c.doJSON(ctx, http.MethodGet, "/appointments/available-slots/?"+q.Encode(), nil, &set); err != nil {
		return nil, fmt.Errorf("available slots: %w", err)
	}
	if set.AvailableSlots == nil {
		return []string{}, nil
	}
	return set.AvailableSlots, nil
}

// MyAppointments returns every appointment booked under contact.
func (c *Client) MyAppointments(ctx context.Context, contact string) ([]Appointment, error) {
	path := "/appointments/my-appointments/?" + url.Values{"contact": {contact}}.Encode()
	var appts []Appointment
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &appts); err != nil {
		return nil, fmt.Errorf("my appointments: %w", err)
	}
	return appts, nil
}

// Login exchanges admin credentials for a token pair.
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenPair, error) {
	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login/", creds, &pair); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &pair, nil
}
