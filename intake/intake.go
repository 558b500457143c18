package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"tobbedansen/models"
)

const (
	DenialMessage  = "We laten momenteel nog geen inschrijvingen toe."
	ApologyMessage = "Er ging iets mis, als dit blijft voorkomen stuur je ons best een berichtje."
)

// ErrRegistrationClosed is returned when the event is not open for
// registrations. A missing event is indistinguishable from a closed one.
var ErrRegistrationClosed = models.ErrRegistrationClosed

// ValidationError carries every issue found in a rejected payload.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	return strings.Join(issueStrings(e.Issues), "\n")
}

// PersistenceError wraps a store failure. Its detail is for the server log only.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persist registration: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Service runs the intake workflow: validate, ask the gate, persist.
type Service struct {
	gate    *Gate
	regs    models.RegistrationRepository
	journal models.SubmissionJournal
	newID   func() string
	now     func() time.Time
}

func NewService(gate *Gate, regs models.RegistrationRepository, journal models.SubmissionJournal) *Service {
	if journal == nil {
		journal = models.NopJournal{}
	}
	return &Service{
		gate:    gate,
		regs:    regs,
		journal: journal,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Submit handles one registration body. On success the stored aggregate is
// returned. Errors are *ValidationError, ErrRegistrationClosed,
// *models.UnknownReferenceError or *PersistenceError.
func (s *Service) Submit(ctx context.Context, body []byte) (models.Registration, error) {
	p, issues := Parse(body)
	if len(issues) > 0 {
		s.record(ctx, models.Submission{
			Outcome: models.OutcomeInvalid,
			EventID: p.Event,
			Email:   p.Registrant.Email,
			Issues:  issueStrings(issues),
		})
		return models.Registration{}, &ValidationError{Issues: issues}
	}

	open, err := s.gate.IsOpen(ctx, p.Event)
	if err != nil {
		s.record(ctx, models.Submission{Outcome: models.OutcomeFailed, EventID: p.Event, Email: p.Registrant.Email})
		return models.Registration{}, &PersistenceError{Err: fmt.Errorf("event gate: %w", err)}
	}
	if !open {
		s.record(ctx, models.Submission{Outcome: models.OutcomeClosed, EventID: p.Event, Email: p.Registrant.Email})
		return models.Registration{}, ErrRegistrationClosed
	}

	reg := s.build(p)
	sub := models.Submission{EventID: reg.EventID, Email: reg.Registrant.Email, RegistrationID: reg.ID}

	err = s.regs.Create(ctx, &reg, s.gate.Admission())
	var unknown *models.UnknownReferenceError
	switch {
	case err == nil:
		sub.Outcome = models.OutcomeAccepted
		s.record(ctx, sub)
		return reg, nil
	case errors.Is(err, models.ErrRegistrationClosed):
		// the window moved between the gate check and the write
		sub.Outcome, sub.RegistrationID = models.OutcomeClosed, ""
		s.record(ctx, sub)
		return models.Registration{}, ErrRegistrationClosed
	case errors.As(err, &unknown):
		sub.Outcome, sub.RegistrationID = models.OutcomeUnknownReference, ""
		s.record(ctx, sub)
		return models.Registration{}, unknown
	default:
		log.Printf("registration %s for event %s: %v", reg.ID, reg.EventID, err)
		sub.Outcome, sub.RegistrationID = models.OutcomeFailed, ""
		s.record(ctx, sub)
		return models.Registration{}, &PersistenceError{Err: err}
	}
}

func (s *Service) build(p Payload) models.Registration {
	reg := models.Registration{
		ID:      s.newID(),
		EventID: p.Event,
		Registrant: models.Registrant{
			ID:           s.newID(),
			FirstName:    p.Registrant.FirstName,
			LastName:     p.Registrant.LastName,
			Email:        p.Registrant.Email,
			DateOfBirth:  p.Registrant.DateOfBirth.Time(),
			PlaceOfBirth: p.Registrant.PlaceOfBirth,
		},
		Participants: make([]models.Participant, 0, len(p.Participants)),
		Vessel: models.Vessel{
			ID:           s.newID(),
			Name:         p.Vessel.Name,
			VesselTypeID: p.Vessel.VesselTypeID,
		},
		MusicRequest: p.MusicRequest,
		Association:  p.association(),
	}
	for _, in := range p.Participants {
		reg.Participants = append(reg.Participants, models.Participant{
			ID:          s.newID(),
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			DateOfBirth: in.DateOfBirth.Time(),
		})
	}
	return reg
}

// record writes to the journal without letting a journal outage affect the
// response.
func (s *Service) record(ctx context.Context, sub models.Submission) {
	sub.ID = s.newID()
	sub.At = s.now().UTC()
	if err := s.journal.Record(context.WithoutCancel(ctx), sub); err != nil {
		log.Printf("journal submission %s (%s): %v", sub.ID, sub.Outcome, err)
	}
}

func issueStrings(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.String()
	}
	return out
}
