// Package apiclient is the single gateway to the booking backend's HTTP JSON
// API: doctors, appointments, slot availability and admin authentication.
package apiclient

import "time"

// ConsultationMode is how a consultation takes place.
type ConsultationMode string

const (
	ModeOnline   ConsultationMode = "online"
	ModeInPerson ConsultationMode = "in-person"
)

// ConsultationModes lists every mode the backend accepts, in display order.
var ConsultationModes = []ConsultationMode{ModeOnline, ModeInPerson}

// Valid reports whether m is a mode the backend accepts.
func (m ConsultationMode) Valid() bool {
	for _, known := range ConsultationModes {
		if m == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists the known appointment statuses in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled}

// Doctor is returned by both the public and the admin doctor endpoints. The
// public serializer fills IsAvailable, the admin one IsActive and timestamps.
type Doctor struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Specialization    string             `json:"specialization"`
	YearsOfExperience int                `json:"years_of_experience"`
	Bio               string             `json:"bio,omitempty"`
	ConsultationModes []ConsultationMode `json:"consultation_modes"`
	IsAvailable       bool               `json:"is_available"`
	IsActive          bool               `json:"is_active"`
	CreatedAt         *time.Time         `json:"created_at,omitempty"`
	UpdatedAt         *time.Time         `json:"updated_at,omitempty"`
}

// Offers reports whether the doctor lists mode.
func (d Doctor) Offers(mode ConsultationMode) bool {
	for _, m := range d.ConsultationModes {
		if m == mode {
			return true
		}
	}
	return false
}

// DoctorInput is the admin create/update payload.
type DoctorInput struct {
	Name              string             `json:"name"`
	Specialization    string             `json:"specialization"`
	Bio               string             `json:"bio"`
	YearsOfExperience int                `json:"years_of_experience"`
	ConsultationModes []ConsultationMode `json:"consultation_modes"`
	IsActive          bool               `json:"is_active"`
}

// Appointment covers the public detail serializer (nested Doctor) and the
// admin serializer (flattened DoctorName/DoctorSpecialization).
type Appointment struct {
	ID                   string           `json:"id"`
	Doctor               *Doctor          `json:"doctor,omitempty"`
	DoctorName           string           `json:"doctor_name,omitempty"`
	DoctorSpecialization string           `json:"doctor_specialization,omitempty"`
	PatientName          string           `json:"patient_name"`
	PatientContact       string           `json:"patient_contact"`
	ConsultationType     ConsultationMode `json:"consultation_type"`
	AppointmentDate      string           `json:"appointment_date"`
	AppointmentTime      string           `json:"appointment_time"`
	Status               Status           `json:"status"`
	CreatedAt            time.Time        `json:"created_at"`
}

// DoctorDisplayName prefers the nested doctor, then the flattened admin field.
func (a Appointment) DoctorDisplayName() string {
	if a.Doctor != nil && a.Doctor.Name != "" {
		return a.Doctor.Name
	}
	return a.DoctorName
}

// AppointmentRequest is the public booking payload.
type AppointmentRequest struct {
	Doctor           string           `json:"doctor"`
	PatientName      string           `json:"patient_name"`
	PatientContact   string           `json:"patient_contact"`
	ConsultationType ConsultationMode `json:"consultation_type"`
	AppointmentDate  string           `json:"appointment_date"`
	AppointmentTime  string           `json:"appointment_time"`
}

// BookingResult is the backend's reply to a created appointment.
type BookingResult struct {
	Message     string      `json:"message"`
	Appointment Appointment `json:"appointment"`
}

// SlotSet is the availability reply for one doctor and date.
type SlotSet struct {
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
}

// AppointmentFilters narrows the admin appointment list. Empty fields are
// not sent.
type AppointmentFilters struct {
	Doctor string
	Date   string
	Status string
}

// Credentials is the admin login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is the login reply.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Stats are the admin dashboard counters.
type Stats struct {
	TotalAppointments    int `json:"total_appointments"`
	Pending              int `json:"pending"`
	Confirmed            int `json:"confirmed"`
	Cancelled            int `json:"cancelled"`
	TodayAppointments    int `json:"today_appointments"`
	UpcomingAppointments int `json:"upcoming_appointments"`
}
