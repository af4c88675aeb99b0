package api

import (
	"net/http"
	"time"

	"curbcycle.dev/opsdash/internal/reporting"
	"curbcycle.dev/opsdash/internal/store"
)

// handleListVehicles returns the fleet with last known positions.
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("id")
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var vehicles []store.Vehicle
	if err := q.Find(&vehicles).Error; err != nil {
		s.respondStoreError(w, err, "vehicles")
		return
	}
	s.respondJSON(w, http.StatusOK, vehicles)
}

type vehicleRequest struct {
	Name       string `json:"name"`
	Plate      string `json:"plate"`
	Status     string `json:"status"`
	AssignedTo *uint  `json:"assigned_to"`
}

// handleCreateVehicle registers a truck.
func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Plate == "" {
		s.respondError(w, http.StatusBadRequest, "name and plate are required")
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}

	vehicle := store.Vehicle{
		Name:       req.Name,
		Plate:      req.Plate,
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
	}
	if err := s.db.WithContext(r.Context()).Create(&vehicle).Error; err != nil {
		s.logger.Error("failed to create vehicle", "error", err)
		s.respondError(w, http.StatusConflict, "plate already registered")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "create", "vehicle", vehicle.ID, vehicle.Plate)
	s.respondJSON(w, http.StatusCreated, vehicle)
}

// handleGetVehicle returns one vehicle.
func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	var vehicle store.Vehicle
	if err := s.db.WithContext(r.Context()).First(&vehicle, id).Error; err != nil {
		s.respondStoreError(w, err, "vehicle")
		return
	}
	s.respondJSON(w, http.StatusOK, vehicle)
}

// handleUpdateVehicle replaces the mutable fields of a vehicle. Position
// fields are owned by the ingest service and are not writable here.
func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	var req vehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Plate == "" {
		s.respondError(w, http.StatusBadRequest, "name and plate are required")
		return
	}

	var vehicle store.Vehicle
	if err := s.db.WithContext(r.Context()).First(&vehicle, id).Error; err != nil {
		s.respondStoreError(w, err, "vehicle")
		return
	}

	vehicle.Name = req.Name
	vehicle.Plate = req.Plate
	if req.Status != "" {
		vehicle.Status = req.Status
	}
	vehicle.AssignedTo = req.AssignedTo

	if err := s.db.WithContext(r.Context()).Save(&vehicle).Error; err != nil {
		s.respondStoreError(w, err, "vehicle")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "update", "vehicle", vehicle.ID, "")
	s.respondJSON(w, http.StatusOK, vehicle)
}

// handleListMaintenance returns maintenance items, filterable by vehicle.
func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("due_date")
	if vehicle := r.URL.Query().Get("vehicle_id"); vehicle != "" {
		q = q.Where("vehicle_id = ?", vehicle)
	}

	var schedules []store.MaintenanceSchedule
	if err := q.Find(&schedules).Error; err != nil {
		s.respondStoreError(w, err, "maintenance schedules")
		return
	}

	// Attach the derived state so clients render badges without duplicating
	// the classification rules.
	now := time.Now().UTC()
	type item struct {
		store.MaintenanceSchedule
		State reporting.MaintenanceState `json:"state"`
	}
	items := make([]item, 0, len(schedules))
	for _, sched := range schedules {
		items = append(items, item{
			MaintenanceSchedule: sched,
			State:               reporting.ClassifyMaintenance(sched, now),
		})
	}
	s.respondJSON(w, http.StatusOK, items)
}

type maintenanceRequest struct {
	VehicleID   uint      `json:"vehicle_id"`
	ServiceType string    `json:"service_type"`
	DueDate     time.Time `json:"due_date"`
	Notes       string    `json:"notes"`
}

// handleCreateMaintenance schedules a service item.
func (s *Server) handleCreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VehicleID == 0 || req.ServiceType == "" || req.DueDate.IsZero() {
		s.respondError(w, http.StatusBadRequest, "vehicle_id, service_type and due_date are required")
		return
	}

	var vehicle store.Vehicle
	if err := s.db.WithContext(r.Context()).First(&vehicle, req.VehicleID).Error; err != nil {
		s.respondStoreError(w, err, "vehicle")
		return
	}

	schedule := store.MaintenanceSchedule{
		VehicleID:   req.VehicleID,
		ServiceType: req.ServiceType,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
	}
	if err := s.db.WithContext(r.Context()).Create(&schedule).Error; err != nil {
		s.respondStoreError(w, err, "maintenance schedule")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "create", "maintenance", schedule.ID, schedule.ServiceType)
	s.respondJSON(w, http.StatusCreated, schedule)
}

// handleCompleteMaintenance stamps a schedule as done.
func (s *Server) handleCompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid maintenance id")
		return
	}

	var schedule store.MaintenanceSchedule
	if err := s.db.WithContext(r.Context()).First(&schedule, id).Error; err != nil {
		s.respondStoreError(w, err, "maintenance schedule")
		return
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(r.Context()).
		Model(&schedule).
		Update("completed_at", &now).Error; err != nil {
		s.respondStoreError(w, err, "maintenance schedule")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "complete", "maintenance", schedule.ID, "")
	s.respondJSON(w, http.StatusOK, schedule)
}

// handleMaintenanceSummary returns fleet-wide maintenance counts.
func (s *Server) handleMaintenanceSummary(w http.ResponseWriter, r *http.Request) {
	var schedules []store.MaintenanceSchedule
	if err := s.db.WithContext(r.Context()).Find(&schedules).Error; err != nil {
		s.respondStoreError(w, err, "maintenance schedules")
		return
	}
	s.respondJSON(w, http.StatusOK, reporting.SummarizeMaintenance(schedules, time.Now().UTC()))
}
