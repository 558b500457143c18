package models

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRegistrationClosed is returned when the event does not accept
	// registrations, or does not exist.
	ErrRegistrationClosed = errors.New("registration closed")
	// ErrInvalidCredentials is returned by admin login checks.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UnknownReferenceError reports a registration that points at a catalog row
// (vessel type or event) that does not exist.
type UnknownReferenceError struct {
	Field string
}

func (e *UnknownReferenceError) Error() string { return "unknown " + e.Field }

// ===== Events =====
type Event struct {
	ID                    string     `json:"id"`
	Year                  int        `json:"year"`
	RegistrationStartDate *time.Time `json:"registration_start_date"`
}

// UnsetStart decides the gate result for events without a start date.
type UnsetStart bool

const (
	UnsetStartClosed UnsetStart = false
	UnsetStartOpen   UnsetStart = true
)

// Accepts reports whether an event with the given start date accepts
// registrations at now.
func (u UnsetStart) Accepts(start *time.Time, now time.Time) bool {
	if start == nil {
		return bool(u)
	}
	return !start.After(now)
}

type EventRepository interface {
	// Current returns the first event of the given year, or nil if there is none.
	Current(ctx context.Context, year int) (*Event, error)
	// FindOpen reports whether an event with id exists whose registration
	// start date is at or before now.
	FindOpen(ctx context.Context, id string, now time.Time, unset UnsetStart) (bool, error)
	Create(ctx context.Context, e *Event) error
	SetRegistrationStart(ctx context.Context, id string, start *time.Time) error
}

// ===== Vessel types =====
type VesselType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VesselTypeRepository interface {
	GetAll(ctx context.Context) ([]VesselType, error)
	Create(ctx context.Context, vt *VesselType) error
}

// ===== Registrations =====
type Registrant struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	PlaceOfBirth string    `json:"place_of_birth"`
}

type Participant struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
}

type Vessel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	VesselTypeID string `json:"vessel_type_id"`
}

// Registration is the aggregate written by the intake flow. All children are
// created together with it.
type Registration struct {
	ID           string        `json:"id"`
	EventID      string        `json:"event_id"`
	Registrant   Registrant    `json:"registrant"`
	Participants []Participant `json:"participants"`
	Vessel       Vessel        `json:"vessel"`
	MusicRequest *string       `json:"music_request"`
	Association  *string       `json:"association"`
}

// Admission is consulted with the event's start date while the event row is
// locked by the composite write.
type Admission func(start *time.Time) bool

type RegistrationRepository interface {
	// Create writes the registration and all of its children atomically,
	// provided admit accepts the event. It returns ErrRegistrationClosed when
	// the event is missing or admit refuses, and *UnknownReferenceError on a
	// dangling vessel type.
	Create(ctx context.Context, r *Registration, admit Admission) error
}

// ===== Admins =====
type Admin struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

type AdminRepository interface {
	// Ensure creates the admin unless the email is already taken.
	Ensure(ctx context.Context, a *Admin) error
	ValidateCredentials(ctx context.Context, email, plain string) (Admin, error)
}

// ===== Submission journal =====
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeInvalid          Outcome = "invalid"
	OutcomeClosed           Outcome = "closed"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeFailed           Outcome = "failed"
)

// Submission is one intake attempt as recorded for the organisers.
type Submission struct {
	ID             string    `bson:"_id" json:"id"`
	At             time.Time `bson:"at" json:"at"`
	Outcome        Outcome   `bson:"outcome" json:"outcome"`
	EventID        string    `bson:"event_id,omitempty" json:"event_id,omitempty"`
	Email          string    `bson:"email,omitempty" json:"email,omitempty"`
	RegistrationID string    `bson:"registration_id,omitempty" json:"registration_id,omitempty"`
	Issues         []string  `bson:"issues,omitempty" json:"issues,omitempty"`
}

type SubmissionJournal interface {
	Record(ctx context.Context, s Submission) error
}
