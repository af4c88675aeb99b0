package reporting_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/internal/reporting"
	"curbcycle.dev/opsdash/internal/store"
)

var _ = Describe("Maintenance", func() {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	schedule := func(due time.Time, completed *time.Time) store.MaintenanceSchedule {
		return store.MaintenanceSchedule{DueDate: due, CompletedAt: completed}
	}

	Describe("ClassifyMaintenance", func() {
		It("should treat completed entries as completed even when past due", func() {
			done := now.Add(-time.Hour)
			s := schedule(now.Add(-30*24*time.Hour), &done)
			Expect(reporting.ClassifyMaintenance(s, now)).To(Equal(reporting.MaintenanceCompleted))
		})

		It("should mark entries past their due date overdue", func() {
			s := schedule(now.Add(-time.Minute), nil)
			Expect(reporting.ClassifyMaintenance(s, now)).To(Equal(reporting.MaintenanceOverdue))
		})

		It("should mark entries inside the week window due soon", func() {
			s := schedule(now.Add(3*24*time.Hour), nil)
			Expect(reporting.ClassifyMaintenance(s, now)).To(Equal(reporting.MaintenanceDueSoon))
		})

		It("should leave far-future entries scheduled", func() {
			s := schedule(now.Add(30*24*time.Hour), nil)
			Expect(reporting.ClassifyMaintenance(s, now)).To(Equal(reporting.MaintenanceScheduled))
		})
	})

	Describe("SummarizeMaintenance", func() {
		It("should tally entries by derived state", func() {
			done := now.Add(-time.Hour)
			sum := reporting.SummarizeMaintenance([]store.MaintenanceSchedule{
				schedule(now.Add(-48*time.Hour), nil),
				schedule(now.Add(-time.Hour), nil),
				schedule(now.Add(2*24*time.Hour), nil),
				schedule(now.Add(60*24*time.Hour), nil),
				schedule(now.Add(-10*24*time.Hour), &done),
			}, now)

			Expect(sum.Overdue).To(Equal(2))
			Expect(sum.DueSoon).To(Equal(1))
			Expect(sum.Scheduled).To(Equal(1))
			Expect(sum.Completed).To(Equal(1))
		})
	})
})

var _ = Describe("SummarizeAssignments", func() {
	job := func(status string) store.Assignment {
		return store.Assignment{Status: status}
	}

	It("should count each status and compute the completion rate", func() {
		sum := reporting.SummarizeAssignments([]store.Assignment{
			job(store.AssignmentPending),
			job(store.AssignmentInProgress),
			job(store.AssignmentCompleted),
			job(store.AssignmentCompleted),
			job(store.AssignmentBlocked),
		})

		Expect(sum.Pending).To(Equal(1))
		Expect(sum.InProgress).To(Equal(1))
		Expect(sum.Completed).To(Equal(2))
		Expect(sum.Blocked).To(Equal(1))
		// Blocked jobs are excluded from the denominator.
		Expect(sum.CompletionRate).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("should count unknown statuses as pending", func() {
		sum := reporting.SummarizeAssignments([]store.Assignment{job("mystery")})
		Expect(sum.Pending).To(Equal(1))
	})

	It("should report a zero rate with no workable jobs", func() {
		sum := reporting.SummarizeAssignments([]store.Assignment{job(store.AssignmentBlocked)})
		Expect(sum.CompletionRate).To(BeZero())
	})
})
