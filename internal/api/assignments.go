package api

import (
	"net/http"
	"time"

	"curbcycle.dev/opsdash/internal/reporting"
	"curbcycle.dev/opsdash/internal/store"
	"curbcycle.dev/opsdash/pkg/wire"
)

// handleListAssignments returns assignments, filterable by employee and
// status.
func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("assigned_date desc")
	if employee := r.URL.Query().Get("employee_id"); employee != "" {
		q = q.Where("employee_id = ?", employee)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var assignments []store.Assignment
	if err := q.Find(&assignments).Error; err != nil {
		s.respondStoreError(w, err, "assignments")
		return
	}
	s.respondJSON(w, http.StatusOK, assignments)
}

type createAssignmentRequest struct {
	HouseID      uint      `json:"house_id"`
	EmployeeID   uint      `json:"employee_id"`
	AssignedDate time.Time `json:"assigned_date"`
	Notes        string    `json:"notes"`
}

// handleCreateAssignment schedules a service visit.
func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.HouseID == 0 || req.EmployeeID == 0 {
		s.respondError(w, http.StatusBadRequest, "house_id and employee_id are required")
		return
	}
	if req.AssignedDate.IsZero() {
		req.AssignedDate = time.Now().UTC()
	}

	assignment := store.Assignment{
		HouseID:      req.HouseID,
		EmployeeID:   req.EmployeeID,
		Status:       store.AssignmentPending,
		AssignedDate: req.AssignedDate,
		Notes:        req.Notes,
	}
	if err := s.db.WithContext(r.Context()).Create(&assignment).Error; err != nil {
		s.respondStoreError(w, err, "assignment")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "create", "assignment", assignment.ID, "")
	s.respondJSON(w, http.StatusCreated, assignment)
}

type updateAssignmentStatusRequest struct {
	Status string `json:"status"`
}

// handleUpdateAssignmentStatus writes a new status. Transitions are
// unguarded; the last write wins, and dashboards derive their views from
// whatever is stored.
func (s *Server) handleUpdateAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	var req updateAssignmentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Status {
	case store.AssignmentPending, store.AssignmentInProgress,
		store.AssignmentCompleted, store.AssignmentBlocked:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	var assignment store.Assignment
	if err := s.db.WithContext(r.Context()).First(&assignment, id).Error; err != nil {
		s.respondStoreError(w, err, "assignment")
		return
	}

	updates := map[string]any{"status": req.Status}
	if req.Status == store.AssignmentCompleted {
		now := time.Now().UTC()
		updates["completed_at"] = &now
	}
	if err := s.db.WithContext(r.Context()).Model(&assignment).Updates(updates).Error; err != nil {
		s.respondStoreError(w, err, "assignment")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "status", "assignment", assignment.ID, req.Status)
	s.publishEvent(r, wire.TopicAssignmentStatus, assignment)

	s.respondJSON(w, http.StatusOK, assignment)
}

// handleAssignmentSummary returns completion statistics, optionally scoped
// to one employee.
func (s *Server) handleAssignmentSummary(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context())
	if employee := r.URL.Query().Get("employee_id"); employee != "" {
		q = q.Where("employee_id = ?", employee)
	}

	var assignments []store.Assignment
	if err := q.Find(&assignments).Error; err != nil {
		s.respondStoreError(w, err, "assignments")
		return
	}
	s.respondJSON(w, http.StatusOK, reporting.SummarizeAssignments(assignments))
}
