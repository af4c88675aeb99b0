package api

import (
	"net/http"

	"curbcycle.dev/opsdash/internal/store"
)

// handleListHouses returns houses visible to the caller. Customers see only
// their own addresses; staff see everything.
func (s *Server) handleListHouses(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	q := s.db.WithContext(r.Context()).Order("id")
	if profile.Role == store.RoleCustomer {
		q = q.Where("customer_id = ?", profile.ID)
	}

	var houses []store.House
	if err := q.Find(&houses).Error; err != nil {
		s.respondStoreError(w, err, "houses")
		return
	}
	s.respondJSON(w, http.StatusOK, houses)
}

type houseRequest struct {
	CustomerID    uint    `json:"customer_id"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	CollectionDay string  `json:"collection_day"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// handleCreateHouse registers a service address. Customers can only create
// houses for themselves.
func (s *Server) handleCreateHouse(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	var req houseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Address == "" {
		s.respondError(w, http.StatusBadRequest, "address is required")
		return
	}

	if profile.Role == store.RoleCustomer {
		req.CustomerID = profile.ID
	}
	if req.CustomerID == 0 {
		s.respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	house := store.House{
		CustomerID:    req.CustomerID,
		Address:       req.Address,
		City:          req.City,
		CollectionDay: req.CollectionDay,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	}
	if err := s.db.WithContext(r.Context()).Create(&house).Error; err != nil {
		s.respondStoreError(w, err, "house")
		return
	}

	s.audit(r, profile.ID, "create", "house", house.ID, house.Address)
	s.respondJSON(w, http.StatusCreated, house)
}

// loadHouse fetches a house and enforces customer ownership.
func (s *Server) loadHouse(w http.ResponseWriter, r *http.Request) (*store.House, bool) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid house id")
		return nil, false
	}

	var house store.House
	if err := s.db.WithContext(r.Context()).First(&house, id).Error; err != nil {
		s.respondStoreError(w, err, "house")
		return nil, false
	}

	profile, _ := profileFromContext(r.Context())
	if profile.Role == store.RoleCustomer && house.CustomerID != profile.ID {
		s.respondError(w, http.StatusForbidden, "not your house")
		return nil, false
	}
	return &house, true
}

// handleGetHouse returns a single house.
func (s *Server) handleGetHouse(w http.ResponseWriter, r *http.Request) {
	house, ok := s.loadHouse(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, house)
}

// handleUpdateHouse replaces the mutable fields of a house.
func (s *Server) handleUpdateHouse(w http.ResponseWriter, r *http.Request) {
	house, ok := s.loadHouse(w, r)
	if !ok {
		return
	}

	var req houseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Address == "" {
		s.respondError(w, http.StatusBadRequest, "address is required")
		return
	}

	house.Address = req.Address
	house.City = req.City
	house.CollectionDay = req.CollectionDay
	house.Latitude = req.Latitude
	house.Longitude = req.Longitude

	if err := s.db.WithContext(r.Context()).Save(house).Error; err != nil {
		s.respondStoreError(w, err, "house")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "update", "house", house.ID, "")
	s.respondJSON(w, http.StatusOK, house)
}

// handleDeleteHouse soft-deletes a house.
func (s *Server) handleDeleteHouse(w http.ResponseWriter, r *http.Request) {
	house, ok := s.loadHouse(w, r)
	if !ok {
		return
	}

	if err := s.db.WithContext(r.Context()).Delete(house).Error; err != nil {
		s.respondStoreError(w, err, "house")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "delete", "house", house.ID, house.Address)
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
