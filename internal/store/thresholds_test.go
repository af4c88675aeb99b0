package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/internal/store"
)

func ptr(v float64) *float64 { return &v }

var _ = Describe("ThresholdConfig", func() {
	var cfg store.ThresholdConfig

	BeforeEach(func() {
		cfg = store.ThresholdConfig{
			"fill_level":  {Max: ptr(85)},
			"temperature": {Min: ptr(-10), Max: ptr(60)},
			"battery":     {Min: ptr(15)},
		}
	})

	Describe("Evaluate", func() {
		It("should report a value above the max", func() {
			limit, direction, ok := cfg.Evaluate("fill_level", 92.5)
			Expect(ok).To(BeTrue())
			Expect(direction).To(Equal(store.BreachAboveMax))
			Expect(limit).To(Equal(85.0))
		})

		It("should report a value below the min", func() {
			limit, direction, ok := cfg.Evaluate("battery", 9.0)
			Expect(ok).To(BeTrue())
			Expect(direction).To(Equal(store.BreachBelowMin))
			Expect(limit).To(Equal(15.0))
		})

		It("should accept a value inside a two-sided range", func() {
			_, _, ok := cfg.Evaluate("temperature", 21.0)
			Expect(ok).To(BeFalse())
		})

		It("should treat the limits themselves as in range", func() {
			_, _, ok := cfg.Evaluate("fill_level", 85.0)
			Expect(ok).To(BeFalse())

			_, _, ok = cfg.Evaluate("battery", 15.0)
			Expect(ok).To(BeFalse())
		})

		It("should ignore reading types with no configured threshold", func() {
			_, _, ok := cfg.Evaluate("humidity", 999)
			Expect(ok).To(BeFalse())
		})

		It("should ignore everything on a nil config", func() {
			var empty store.ThresholdConfig
			_, _, ok := empty.Evaluate("fill_level", 100)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("database round trip", func() {
		It("should serialize to JSON and scan back", func() {
			value, err := cfg.Value()
			Expect(err).NotTo(HaveOccurred())

			var decoded store.ThresholdConfig
			Expect(decoded.Scan(value)).To(Succeed())
			Expect(decoded).To(HaveKey("fill_level"))
			Expect(*decoded["fill_level"].Max).To(Equal(85.0))
			Expect(decoded["fill_level"].Min).To(BeNil())
		})

		It("should scan NULL as an empty config", func() {
			var decoded store.ThresholdConfig
			Expect(decoded.Scan(nil)).To(Succeed())
			Expect(decoded).To(BeEmpty())
		})
	})
})

var _ = Describe("StringList", func() {
	It("should serialize and scan add-on ids in order", func() {
		list := store.StringList{"extra-bin", "yard-waste"}
		value, err := list.Value()
		Expect(err).NotTo(HaveOccurred())

		var decoded store.StringList
		Expect(decoded.Scan(value)).To(Succeed())
		Expect(decoded).To(Equal(list))
	})

	It("should treat a nil list as empty JSON array", func() {
		var list store.StringList
		value, err := list.Value()
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("[]"))
	})
})
