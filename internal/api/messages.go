package api

import (
	"net/http"
	"time"

	"curbcycle.dev/opsdash/internal/store"
)

// handleListMessages returns the caller's inbox, newest first. ?box=sent
// switches to sent messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	q := s.db.WithContext(r.Context()).Order("id desc")
	if r.URL.Query().Get("box") == "sent" {
		q = q.Where("sender_id = ?", profile.ID)
	} else {
		q = q.Where("recipient_id = ?", profile.ID)
	}

	var messages []store.Message
	if err := q.Find(&messages).Error; err != nil {
		s.respondStoreError(w, err, "messages")
		return
	}
	s.respondJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	RecipientID uint   `json:"recipient_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// handleSendMessage delivers a message to another profile.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RecipientID == 0 || req.Body == "" {
		s.respondError(w, http.StatusBadRequest, "recipient_id and body are required")
		return
	}

	var recipient store.Profile
	if err := s.db.WithContext(r.Context()).First(&recipient, req.RecipientID).Error; err != nil {
		s.respondStoreError(w, err, "recipient")
		return
	}

	message := store.Message{
		SenderID:    profile.ID,
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Body:        req.Body,
	}
	if err := s.db.WithContext(r.Context()).Create(&message).Error; err != nil {
		s.respondStoreError(w, err, "message")
		return
	}
	s.respondJSON(w, http.StatusCreated, message)
}

// handleMarkMessageRead stamps a received message as read.
func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	var message store.Message
	if err := s.db.WithContext(r.Context()).First(&message, id).Error; err != nil {
		s.respondStoreError(w, err, "message")
		return
	}
	if message.RecipientID != profile.ID {
		s.respondError(w, http.StatusForbidden, "not your message")
		return
	}

	if message.ReadAt == nil {
		now := time.Now().UTC()
		if err := s.db.WithContext(r.Context()).
			Model(&message).
			Update("read_at", &now).Error; err != nil {
			s.respondStoreError(w, err, "message")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, message)
}

// handleListAuditLogs returns the audit trail, newest first, capped at 500
// rows per request.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("id desc").Limit(500)
	if entity := r.URL.Query().Get("entity"); entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if actor := r.URL.Query().Get("actor_id"); actor != "" {
		q = q.Where("actor_id = ?", actor)
	}

	var logs []store.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		s.respondStoreError(w, err, "audit logs")
		return
	}
	s.respondJSON(w, http.StatusOK, logs)
}
