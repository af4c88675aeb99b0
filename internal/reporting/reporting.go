// Package reporting holds the pure derivations the dashboards render:
// maintenance-overdue detection and assignment status summaries. Everything
// here is a single pass over already-fetched rows.
package reporting

import (
	"time"

	"curbcycle.dev/opsdash/internal/store"
)

// DueSoonWindow is how far ahead a maintenance item counts as "due soon".
const DueSoonWindow = 7 * 24 * time.Hour

// MaintenanceState classifies one schedule entry relative to now.
type MaintenanceState string

const (
	MaintenanceCompleted MaintenanceState = "completed"
	MaintenanceOverdue   MaintenanceState = "overdue"
	MaintenanceDueSoon   MaintenanceState = "due_soon"
	MaintenanceScheduled MaintenanceState = "scheduled"
)

// ClassifyMaintenance derives the display state for a schedule entry.
func ClassifyMaintenance(s store.MaintenanceSchedule, now time.Time) MaintenanceState {
	switch {
	case s.CompletedAt != nil:
		return MaintenanceCompleted
	case s.DueDate.Before(now):
		return MaintenanceOverdue
	case s.DueDate.Sub(now) <= DueSoonWindow:
		return MaintenanceDueSoon
	default:
		return MaintenanceScheduled
	}
}

// MaintenanceSummary counts schedule entries by derived state.
type MaintenanceSummary struct {
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	DueSoon   int `json:"due_soon"`
	Scheduled int `json:"scheduled"`
}

// SummarizeMaintenance tallies the derived state of each entry.
func SummarizeMaintenance(schedules []store.MaintenanceSchedule, now time.Time) MaintenanceSummary {
	var sum MaintenanceSummary
	for _, s := range schedules {
		switch ClassifyMaintenance(s, now) {
		case MaintenanceCompleted:
			sum.Completed++
		case MaintenanceOverdue:
			sum.Overdue++
		case MaintenanceDueSoon:
			sum.DueSoon++
		case MaintenanceScheduled:
			sum.Scheduled++
		}
	}
	return sum
}

// AssignmentSummary counts jobs by status plus a completion rate over the
// non-blocked population.
type AssignmentSummary struct {
	Pending        int     `json:"pending"`
	InProgress     int     `json:"in_progress"`
	Completed      int     `json:"completed"`
	Blocked        int     `json:"blocked"`
	CompletionRate float64 `json:"completion_rate"`
}

// SummarizeAssignments tallies jobs by status. Unknown statuses are counted
// as pending, matching how the dashboard renders unexpected rows.
func SummarizeAssignments(assignments []store.Assignment) AssignmentSummary {
	var sum AssignmentSummary
	for _, a := range assignments {
		switch a.Status {
		case store.AssignmentInProgress:
			sum.InProgress++
		case store.AssignmentCompleted:
			sum.Completed++
		case store.AssignmentBlocked:
			sum.Blocked++
		default:
			sum.Pending++
		}
	}

	workable := sum.Pending + sum.InProgress + sum.Completed
	if workable > 0 {
		sum.CompletionRate = float64(sum.Completed) / float64(workable)
	}
	return sum
}
