package schedule

import (
	"sort"

	"tattootrack/internal/models"
)

// Candidate is a proposed booking on a given day.
type Candidate struct {
	StartTime      string
	EstimatedHours float64
}

// Slot is an existing appointment on the same day as a candidate.
type Slot struct {
	ID             string
	Status         models.AppointmentStatus
	StartTime      string
	EstimatedHours float64
	Title          string
	ClientName     string
}

// Conflict describes the booked appointment a candidate collides with.
type Conflict struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ClientName string `json:"client_name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// FindConflict returns the earliest-starting slot that overlaps the
// candidate, or nil. Cancelled slots and the slot whose ID equals excludeID
// never conflict. Ties on start time keep the caller's order.
func FindConflict(candidate Candidate, existing []Slot, excludeID string) (*Conflict, error) {
	want, err := SlotInterval(candidate.StartTime, candidate.EstimatedHours)
	if err != nil {
		return nil, err
	}

	type placed struct {
		slot     Slot
		interval Interval
	}
	active := make([]placed, 0, len(existing))
	for _, s := range existing {
		if s.Status == models.AppointmentStatusCancelled {
			continue
		}
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		iv, err := SlotInterval(s.StartTime, s.EstimatedHours)
		if err != nil {
			return nil, err
		}
		active = append(active, placed{slot: s, interval: iv})
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].interval.Start < active[j].interval.Start
	})

	for _, p := range active {
		if !want.Overlaps(p.interval) {
			continue
		}
		return &Conflict{
			ID:         p.slot.ID,
			Title:      p.slot.Title,
			ClientName: p.slot.ClientName,
			StartTime:  p.slot.StartTime,
			EndTime:    MinutesToTime(p.interval.End),
		}, nil
	}
	return nil, nil
}
