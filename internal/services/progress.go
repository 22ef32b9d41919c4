package services

import (
	"math"

	"github.com/kitchenops/checklists/internal/models"
)

// Counts is the aggregate progress of one instance.
type Counts struct {
	TotalMain          int `json:"totalMain"`
	CompletedMain      int `json:"completedMain"`
	TotalConnected     int `json:"totalConnected"`
	CompletedConnected int `json:"completedConnected"`
}

func (c Counts) Total() int     { return c.TotalMain + c.TotalConnected }
func (c Counts) Completed() int { return c.CompletedMain + c.CompletedConnected }

// Percentage is round(100 * completed / total), 0 for an empty checklist.
func (c Counts) Percentage() int {
	if c.Total() == 0 {
		return 0
	}
	return int(math.Round(100 * float64(c.Completed()) / float64(c.Total())))
}

// Aggregate derives counts from the tree's units and an instance's progress
// rows. Rows for containers, connected items or units no longer in the tree
// are ignored; a missing row counts as incomplete.
func Aggregate(u Units, progress []models.ItemProgress, connected []models.ConnectedItemProgress) Counts {
	c := Counts{TotalMain: len(u.Main), TotalConnected: len(u.Connections)}
	seen := make(map[uint]bool, len(progress))
	for _, p := range progress {
		if p.IsCompleted && u.Main[p.ChecklistItemID] && !seen[p.ChecklistItemID] {
			seen[p.ChecklistItemID] = true
			c.CompletedMain++
		}
	}
	seenConn := make(map[uint]bool, len(connected))
	for _, p := range connected {
		if p.IsCompleted && u.Connections[p.ConnectionID] && !seenConn[p.ConnectionID] {
			seenConn[p.ConnectionID] = true
			c.CompletedConnected++
		}
	}
	return c
}

// Status derives the listing status of an instance.
func Status(inst models.Instance, c Counts) string {
	switch {
	case inst.CompletedAt != nil:
		return models.StatusCompleted
	case c.Completed() > 0:
		return models.StatusInProgress
	default:
		return models.StatusPending
	}
}
