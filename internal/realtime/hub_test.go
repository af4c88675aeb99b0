package realtime_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/internal/realtime"
	"curbcycle.dev/opsdash/pkg/wire"
)

var _ = Describe("Hub", func() {
	var hub *realtime.Hub

	BeforeEach(func() {
		hub = realtime.NewHub()
	})

	event := func(topic string) wire.Event {
		e, err := wire.NewEvent(topic, map[string]string{"k": "v"})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("should deliver events to a topic subscriber", func() {
		sub := hub.Subscribe(wire.TopicSensorAlert)
		defer sub.Close()

		hub.Publish(event(wire.TopicSensorAlert))

		Eventually(sub.C).Should(Receive(WithTransform(func(e wire.Event) string {
			return e.Topic
		}, Equal(wire.TopicSensorAlert))))
	})

	It("should not deliver events for other topics", func() {
		sub := hub.Subscribe(wire.TopicSensorAlert)
		defer sub.Close()

		hub.Publish(event(wire.TopicFleetLocation))

		Consistently(sub.C).ShouldNot(Receive())
	})

	It("should deliver everything to a subscriber with no topic filter", func() {
		sub := hub.Subscribe()
		defer sub.Close()

		hub.Publish(event(wire.TopicSensorReading))
		hub.Publish(event(wire.TopicFleetLocation))

		Eventually(sub.C).Should(Receive())
		Eventually(sub.C).Should(Receive())
	})

	It("should detach a closed subscription", func() {
		sub := hub.Subscribe(wire.TopicSensorAlert)
		Expect(hub.SubscriberCount()).To(Equal(1))

		sub.Close()
		Expect(hub.SubscriberCount()).To(BeZero())

		// Closing twice is safe.
		sub.Close()
	})

	It("should close the channel when the subscription closes", func() {
		sub := hub.Subscribe()
		sub.Close()
		Eventually(sub.C).Should(BeClosed())
	})

	It("should drop events for a full subscriber instead of blocking", func() {
		sub := hub.Subscribe(wire.TopicSensorReading)
		defer sub.Close()

		// Publish far beyond the buffer depth; the hub must not deadlock.
		for range 200 {
			hub.Publish(event(wire.TopicSensorReading))
		}

		// Whatever fit in the buffer is still readable.
		Eventually(sub.C).Should(Receive())
	})
})
