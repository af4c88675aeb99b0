// Package api provides end-to-end tests for the HTTP operations API.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/pkg/wire"
)

// doJSON performs an authenticated JSON request and decodes the response
// body into out when it is non-nil.
func doJSON(method, path, token string, body, out any) (int, error) {
	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// login authenticates a seeded account and returns its session token.
func login(email, password string) (string, error) {
	var out struct {
		Token   string `json:"token"`
		Profile struct {
			ID   uint   `json:"id"`
			Role string `json:"role"`
		} `json:"profile"`
	}
	status, err := doJSON(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login returned %d", status)
	}
	return out.Token, nil
}

var _ = Describe("API E2E", func() {
	Context("Authentication", func() {
		It("should reject a wrong password", func() {
			status, err := doJSON(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
				"email":    adminEmail,
				"password": "wrong-password",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("should issue a session token and resolve it via auth/me", func() {
			token, err := login(adminEmail, seedPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())

			var me struct {
				Email string `json:"email"`
				Role  string `json:"role"`
			}
			status, err := doJSON(http.MethodGet, "/api/v1/auth/me", token, nil, &me)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(me.Email).To(Equal(adminEmail))
			Expect(me.Role).To(Equal("admin"))
		})

		It("should reject requests without a session", func() {
			status, err := doJSON(http.MethodGet, "/api/v1/auth/me", "", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("should deny staff endpoints to customers", func() {
			token, err := login(customerEmail, seedPassword)
			Expect(err).NotTo(HaveOccurred())

			status, err := doJSON(http.MethodGet, "/api/v1/vehicles", token, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusForbidden))
		})
	})

	Context("Pricing", func() {
		It("should quote a residential plan with an add-on without auth", func() {
			var quote struct {
				PlanID       string  `json:"plan_id"`
				MonthlyTotal float64 `json:"monthly_total"`
			}
			status, err := doJSON(http.MethodPost, "/api/v1/pricing/quote", "", map[string]any{
				"plan_kind":    "residential",
				"tier_id":      "standard",
				"addon_ids":    []string{"extra-bin"},
				"duration":     "monthly",
				"payment_type": "monthly",
			}, &quote)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(quote.PlanID).To(Equal("standard"))
			Expect(quote.MonthlyTotal).To(BeNumerically("~", 66.39, 0.001))
		})

		It("should reject an unknown tier", func() {
			status, err := doJSON(http.MethodPost, "/api/v1/pricing/quote", "", map[string]any{
				"plan_kind":    "residential",
				"tier_id":      "platinum-deluxe",
				"duration":     "monthly",
				"payment_type": "monthly",
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Context("Houses", func() {
		It("should let a customer register and list a house", func() {
			token, err := login(customerEmail, seedPassword)
			Expect(err).NotTo(HaveOccurred())

			var created struct {
				ID      uint   `json:"id"`
				Address string `json:"address"`
			}
			status, err := doJSON(http.MethodPost, "/api/v1/houses", token, map[string]any{
				"address":        "12 Birch Lane",
				"city":           "Tacoma",
				"collection_day": "tuesday",
			}, &created)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusCreated))
			Expect(created.ID).NotTo(BeZero())

			var houses []struct {
				ID uint `json:"id"`
			}
			status, err = doJSON(http.MethodGet, "/api/v1/houses", token, nil, &houses)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			found := false
			for _, h := range houses {
				if h.ID == created.ID {
					found = true
				}
			}
			Expect(found).To(BeTrue())
		})
	})

	Context("Sensor Webhook", func() {
		var (
			sensorID uint
			apiKey   string
			deviceID = "bin-api-e2e-001"
		)

		It("should register a sensor and return the key exactly once", func() {
			token, err := login(adminEmail, seedPassword)
			Expect(err).NotTo(HaveOccurred())

			var created struct {
				Sensor struct {
					ID       uint   `json:"id"`
					DeviceID string `json:"device_id"`
				} `json:"sensor"`
				APIKey string `json:"api_key"`
			}
			status, err := doJSON(http.MethodPost, "/api/v1/sensors", token, map[string]any{
				"device_id": deviceID,
				"name":      "Birch Lane Bin",
				"alert_thresholds": map[string]any{
					"fill_level": map[string]float64{"max": 90},
				},
			}, &created)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusCreated))
			Expect(created.APIKey).NotTo(BeEmpty())
			Expect(created.Sensor.DeviceID).To(Equal(deviceID))

			sensorID = created.Sensor.ID
			apiKey = created.APIKey

			// The key must not appear on subsequent reads.
			var fetched map[string]any
			status, err = doJSON(http.MethodGet, fmt.Sprintf("/api/v1/sensors/%d", sensorID), token, nil, &fetched)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(fetched).NotTo(HaveKey("api_key"))
		})

		It("should reject webhook posts with a bad key", func() {
			payload := wire.SensorPayload{
				DeviceID: deviceID,
				Readings: []wire.ReadingValue{{Type: "fill_level", Value: 10}},
			}
			raw, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, baseURL+"/functions/v1/iot-sensor-webhook", bytes.NewBuffer(raw))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Sensor-Api-Key", "not-the-key")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = resp.Body.Close() }()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should store webhook readings and raise threshold alerts", func() {
			payload := wire.SensorPayload{
				DeviceID: deviceID,
				Readings: []wire.ReadingValue{
					{Type: "fill_level", Value: 96.0, Unit: "%"},
					{Type: "temperature", Value: 18.5, Unit: "C"},
				},
				Timestamp: time.Now().Unix(),
			}
			raw, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, baseURL+"/functions/v1/iot-sensor-webhook", bytes.NewBuffer(raw))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Sensor-Api-Key", apiKey)

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = resp.Body.Close() }()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result struct {
				Success        bool `json:"success"`
				ReadingsStored int  `json:"readings_stored"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
			Expect(result.Success).To(BeTrue())
			Expect(result.ReadingsStored).To(Equal(2))

			// Readings are stored synchronously; verify through the API.
			token, err := login(adminEmail, seedPassword)
			Expect(err).NotTo(HaveOccurred())

			var readings []struct {
				ReadingType string  `json:"reading_type"`
				Value       float64 `json:"value"`
			}
			status, err := doJSON(http.MethodGet, fmt.Sprintf("/api/v1/sensors/%d/readings", sensorID), token, nil, &readings)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(len(readings)).To(BeNumerically(">=", 2))

			// The fill level breached its configured maximum.
			var alerts []struct {
				DeviceID    string `json:"device_id"`
				ReadingType string `json:"reading_type"`
				Direction   string `json:"direction"`
				Status      string `json:"status"`
			}
			status, err = doJSON(http.MethodGet, "/api/v1/alerts", token, nil, &alerts)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			found := false
			for _, a := range alerts {
				if a.DeviceID == deviceID && a.ReadingType == "fill_level" {
					found = true
					Expect(a.Direction).To(Equal("above_max"))
					Expect(a.Status).To(Equal("open"))
				}
			}
			Expect(found).To(BeTrue())
		})
	})

	Context("Subscriptions", func() {
		It("should price and persist a subscription server side", func() {
			token, err := login(customerEmail, seedPassword)
			Expect(err).NotTo(HaveOccurred())

			var created struct {
				Subscription struct {
					ID           uint    `json:"id"`
					PlanID       string  `json:"plan_id"`
					MonthlyTotal float64 `json:"monthly_total"`
					Status       string  `json:"status"`
				} `json:"subscription"`
				Quote struct {
					MonthlyTotal float64 `json:"monthly_total"`
				} `json:"quote"`
			}
			status, err := doJSON(http.MethodPost, "/api/v1/subscriptions", token, map[string]any{
				"plan_kind":    "residential",
				"tier_id":      "standard",
				"addon_ids":    []string{"extra-bin"},
				"duration":     "monthly",
				"payment_type": "monthly",
			}, &created)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusCreated))
			Expect(created.Subscription.ID).NotTo(BeZero())
			Expect(created.Subscription.PlanID).To(Equal("standard"))
			Expect(created.Subscription.Status).To(Equal("active"))
			Expect(created.Subscription.MonthlyTotal).To(BeNumerically("~", created.Quote.MonthlyTotal, 0.001))

			var subs []struct {
				ID uint `json:"id"`
			}
			status, err = doJSON(http.MethodGet, "/api/v1/subscriptions", token, nil, &subs)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(subs).NotTo(BeEmpty())
		})
	})
})
