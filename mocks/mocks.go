// Package mocks holds in-memory repositories for handler and service tests.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"tobbedansen/models"
)

type MockEventRepo struct {
	mu    sync.Mutex
	Items map[string]models.Event
	Err   error // returned by every call when set
}

func NewMockEventRepo() *MockEventRepo {
	return &MockEventRepo{Items: map[string]models.Event{}}
}

// Put stores an event with the given start date.
func (m *MockEventRepo) Put(id string, year int, start *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items[id] = models.Event{ID: id, Year: year, RegistrationStartDate: start}
}

func (m *MockEventRepo) Get(id string) (models.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Items[id]
	return e, ok
}

func (m *MockEventRepo) Current(_ context.Context, year int) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, e := range m.Items {
		if e.Year == year {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *MockEventRepo) FindOpen(_ context.Context, id string, now time.Time, unset models.UnsetStart) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	e, ok := m.Items[id]
	return ok && unset.Accepts(e.RegistrationStartDate, now), nil
}

func (m *MockEventRepo) Create(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Items[e.ID]; ok {
		return errors.New("dup")
	}
	m.Items[e.ID] = *e
	return nil
}

func (m *MockEventRepo) SetRegistrationStart(_ context.Context, id string, start *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	e, ok := m.Items[id]
	if !ok {
		return models.ErrNotFound
	}
	e.RegistrationStartDate = start
	m.Items[id] = e
	return nil
}

type MockVesselTypeRepo struct {
	mu    sync.Mutex
	Items []models.VesselType
}

func (m *MockVesselTypeRepo) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vt := range m.Items {
		if vt.ID == id {
			return true
		}
	}
	return false
}

func (m *MockVesselTypeRepo) GetAll(context.Context) ([]models.VesselType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.VesselType{}, m.Items...), nil
}

func (m *MockVesselTypeRepo) Create(_ context.Context, vt *models.VesselType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.Items {
		if have.ID == vt.ID {
			return errors.New("dup")
		}
	}
	m.Items = append(m.Items, *vt)
	return nil
}

// MockRegRepo mimics the composite write: it checks the event through Events,
// the vessel type through VesselTypes, and stores nothing on failure.
type MockRegRepo struct {
	mu          sync.Mutex
	Events      *MockEventRepo
	VesselTypes *MockVesselTypeRepo
	Items       []models.Registration
	Writes      int   // successful composite writes
	Err         error // returned instead of writing when set
}

func (m *MockRegRepo) Create(_ context.Context, r *models.Registration, admit models.Admission) error {
	e, ok := m.Events.Get(r.EventID)
	if !ok || !admit(e.RegistrationStartDate) {
		return models.ErrRegistrationClosed
	}
	if m.VesselTypes != nil && !m.VesselTypes.Has(r.Vessel.VesselTypeID) {
		return &models.UnknownReferenceError{Field: "vessel.vessel_type_id"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Items = append(m.Items, *r)
	m.Writes++
	return nil
}

func (m *MockRegRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes
}

// MockAdminRepo compares plain-text passwords.
type MockAdminRepo struct {
	Admins map[string]models.Admin // keyed by email
}

func (m *MockAdminRepo) Ensure(_ context.Context, a *models.Admin) error {
	if _, ok := m.Admins[a.Email]; ok {
		return nil
	}
	a.ID = int64(len(m.Admins) + 1)
	m.Admins[a.Email] = *a
	return nil
}

func (m *MockAdminRepo) ValidateCredentials(_ context.Context, email, plain string) (models.Admin, error) {
	a, ok := m.Admins[email]
	if !ok || a.Password != plain {
		return models.Admin{}, models.ErrInvalidCredentials
	}
	return a, nil
}

type MockJournal struct {
	mu          sync.Mutex
	Submissions []models.Submission
	Err         error
}

func (m *MockJournal) Record(_ context.Context, s models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Submissions = append(m.Submissions, s)
	return nil
}

func (m *MockJournal) Last() (models.Submission, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Submissions) == 0 {
		return models.Submission{}, false
	}
	return m.Submissions[len(m.Submissions)-1], true
}
