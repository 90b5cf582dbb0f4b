package sla

import "time"

// DueDates anchors targets on created and returns the absolute due instants in UTC.
func DueDates(created time.Time, targets Targets) (response, resolution *time.Time) {
	return dueAt(created, targets.Response), dueAt(created, targets.Resolution)
}

func dueAt(created time.Time, t *Target) *time.Time {
	if t == nil {
		return nil
	}
	due := created.UTC().Add(t.Duration())
	return &due
}
