package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/internal/pricing"
)

// The quote and health endpoints touch no backing services, so they are
// exercised through the full router.
var _ = Describe("Quote endpoint", func() {
	var server *Server
	var router http.Handler

	BeforeEach(func() {
		var err error
		server, err = NewServer(testConfig())
		Expect(err).NotTo(HaveOccurred())
		router = server.routes()
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("should price a single-family selection", func() {
		rec := post(`{
			"plan_kind": "single_family",
			"tier_id": "standard",
			"addon_ids": ["extra-bin"],
			"duration": "monthly",
			"payment_type": "recurring"
		}`)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var quote pricing.Quote
		Expect(json.Unmarshal(rec.Body.Bytes(), &quote)).To(Succeed())
		Expect(quote.PlanID).To(Equal("standard"))
		Expect(quote.MonthlyTotal).To(BeNumerically("~", 54.99+11.40, 0.001))
		Expect(quote.Total).To(Equal(quote.MonthlyTotal))
	})

	It("should reject a selection without a tier", func() {
		rec := post(`{
			"plan_kind": "single_family",
			"duration": "monthly",
			"payment_type": "recurring"
		}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("tier must be selected"))
	})

	It("should reject a community selection with zero units", func() {
		rec := post(`{
			"plan_kind": "multi_family",
			"tier_id": "community-essential",
			"unit_count": 0,
			"duration": "yearly",
			"payment_type": "one-time"
		}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("unit count"))
	})

	It("should reject a malformed body", func() {
		rec := post(`{"plan_kind": `)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should reject unknown fields", func() {
		rec := post(`{"plan_kind": "single_family", "tier_id": "standard", "duration": "monthly", "payment_type": "recurring", "total": 1}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Health endpoint", func() {
	It("should report ok", func() {
		server, err := NewServer(testConfig())
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.routes().ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"status":"ok"`))
	})
})
