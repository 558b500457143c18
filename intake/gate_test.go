package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"tobbedansen/mocks"
	"tobbedansen/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func ptr(t time.Time) *time.Time { return &t }

func TestGate_IsOpen(t *testing.T) {
	events := mocks.NewMockEventRepo()
	events.Put("past", 2024, ptr(fixedNow.Add(-time.Hour)))
	events.Put("exact", 2024, ptr(fixedNow))
	events.Put("future", 2024, ptr(fixedNow.Add(time.Minute)))
	events.Put("unset", 2024, nil)

	cases := []struct {
		id    string
		unset models.UnsetStart
		want  bool
	}{
		{"past", models.UnsetStartClosed, true},
		{"exact", models.UnsetStartClosed, true},
		{"future", models.UnsetStartClosed, false},
		{"future", models.UnsetStartOpen, false},
		{"unknown", models.UnsetStartClosed, false},
		{"unknown", models.UnsetStartOpen, false},
		{"unset", models.UnsetStartClosed, false},
		{"unset", models.UnsetStartOpen, true},
	}
	for _, tc := range cases {
		g := NewGate(events, tc.unset, clock)
		open, err := g.IsOpen(context.Background(), tc.id)
		if err != nil {
			t.Fatalf("%s: %v", tc.id, err)
		}
		if open != tc.want {
			t.Fatalf("%s (unset open=%v): got %v want %v", tc.id, tc.unset, open, tc.want)
		}
	}
}

func TestGate_StoreError(t *testing.T) {
	events := mocks.NewMockEventRepo()
	events.Err = errors.New("connection refused")

	open, err := NewGate(events, models.UnsetStartClosed, clock).IsOpen(context.Background(), "evt")
	if open || err == nil {
		t.Fatalf("expected closed with an error, got open=%v err=%v", open, err)
	}
}

func TestGate_Admission(t *testing.T) {
	admit := NewGate(mocks.NewMockEventRepo(), models.UnsetStartClosed, clock).Admission()
	if !admit(ptr(fixedNow.Add(-time.Second))) {
		t.Fatal("a past start should admit")
	}
	if admit(ptr(fixedNow.Add(time.Second))) {
		t.Fatal("a future start should not admit")
	}
	if admit(nil) {
		t.Fatal("an unset start should not admit when unset means closed")
	}

	admit = NewGate(mocks.NewMockEventRepo(), models.UnsetStartOpen, clock).Admission()
	if !admit(nil) {
		t.Fatal("an unset start should admit when unset means open")
	}
}

func TestGate_DefaultsToWallClock(t *testing.T) {
	events := mocks.NewMockEventRepo()
	events.Put("evt", time.Now().Year(), ptr(time.Now().Add(-time.Minute)))

	open, err := NewGate(events, models.UnsetStartClosed, nil).IsOpen(context.Background(), "evt")
	if err != nil {
		t.Fatal(err)
	}
	if !open {
		t.Fatal("expected the gate to be open")
	}
}
