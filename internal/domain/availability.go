package domain

import "time"

// BusyInterval is one span a provider reports as occupied.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CandidateSlot struct {
	Start           time.Time
	DurationMinutes int
}

func (s CandidateSlot) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
