package model

import (
	"testing"
	"time"
)

func TestValidAppointmentStatus(t *testing.T) {
	for _, s := range []string{AppointmentConfirmed, AppointmentCancelled, AppointmentCompleted} {
		if !ValidAppointmentStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	// Pending is only the initial state.
	for _, s := range []string{AppointmentPending, "", "done"} {
		if ValidAppointmentStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestAppointmentPatchApply(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	when := time.Date(2026, 6, 1, 14, 30, 0, 0, loc)
	place := "Prešernov trg"

	a := Appointment{Location: "Tivoli", Notes: "bring papers"}
	AppointmentPatch{Time: &when, Location: &place}.Apply(&a)

	if !a.Time.Equal(when) || a.Time.Location() != time.UTC {
		t.Errorf("Time = %v, want %v in UTC", a.Time, when)
	}
	if a.Location != place {
		t.Errorf("Location = %q, want %q", a.Location, place)
	}
	if a.Notes != "bring papers" {
		t.Errorf("Notes changed to %q", a.Notes)
	}
}
