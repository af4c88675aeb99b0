package api

import (
	"errors"
	"net/http"

	"curbcycle.dev/opsdash/internal/pricing"
	"curbcycle.dev/opsdash/internal/store"
)

type quoteRequest struct {
	PlanKind    string   `json:"plan_kind"`
	TierID      string   `json:"tier_id"`
	AddOnIDs    []string `json:"addon_ids"`
	UnitCount   int      `json:"unit_count"`
	Duration    string   `json:"duration"`
	PaymentType string   `json:"payment_type"`
}

func (q quoteRequest) selection() pricing.Selection {
	return pricing.Selection{
		Kind:        pricing.PlanKind(q.PlanKind),
		TierID:      q.TierID,
		AddOnIDs:    q.AddOnIDs,
		UnitCount:   q.UnitCount,
		Duration:    pricing.Duration(q.Duration),
		PaymentType: pricing.PaymentType(q.PaymentType),
	}
}

// handleQuote prices a plan selection. Pure computation, no persistence, so
// the endpoint is open: the public checkout page calls it before signup.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := pricing.Calculate(req.selection())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, quote)
}

// handleListSubscriptions returns the caller's subscriptions; staff can list
// everyone's.
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	q := s.db.WithContext(r.Context()).Order("id desc")
	if profile.Role == store.RoleCustomer {
		q = q.Where("profile_id = ?", profile.ID)
	} else if pid := r.URL.Query().Get("profile_id"); pid != "" {
		q = q.Where("profile_id = ?", pid)
	}

	var subs []store.Subscription
	if err := q.Find(&subs).Error; err != nil {
		s.respondStoreError(w, err, "subscriptions")
		return
	}
	s.respondJSON(w, http.StatusOK, subs)
}

type createSubscriptionResponse struct {
	Subscription store.Subscription `json:"subscription"`
	Quote        pricing.Quote      `json:"quote"`
}

// handleCreateSubscription prices the selection server-side and persists the
// snapshot. Client-supplied totals are never trusted.
func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	profile, _ := profileFromContext(r.Context())

	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := pricing.Calculate(req.selection())
	if err != nil {
		if errors.Is(err, pricing.ErrNoPlanSelected) ||
			errors.Is(err, pricing.ErrUnknownTier) ||
			errors.Is(err, pricing.ErrUnknownAddOn) ||
			errors.Is(err, pricing.ErrInvalidUnits) ||
			errors.Is(err, pricing.ErrInvalidDuration) ||
			errors.Is(err, pricing.ErrInvalidPayment) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to price subscription", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sub := store.Subscription{
		ProfileID:    profile.ID,
		PlanKind:     req.PlanKind,
		PlanID:       req.TierID,
		AddOnIDs:     store.StringList(req.AddOnIDs),
		UnitCount:    req.UnitCount,
		Duration:     req.Duration,
		PaymentType:  req.PaymentType,
		MonthlyTotal: quote.MonthlyTotal,
		Total:        quote.Total,
		Status:       "active",
	}
	if err := s.db.WithContext(r.Context()).Create(&sub).Error; err != nil {
		s.respondStoreError(w, err, "subscription")
		return
	}

	s.audit(r, profile.ID, "create", "subscription", sub.ID, sub.PlanID)
	s.logger.Info("subscription created",
		"profile_id", profile.ID,
		"plan_id", sub.PlanID,
		"total", sub.Total,
	)

	s.respondJSON(w, http.StatusCreated, createSubscriptionResponse{
		Subscription: sub,
		Quote:        quote,
	})
}
