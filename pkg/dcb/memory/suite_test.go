package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go-dcb/pkg/dcb"
	"go-dcb/pkg/dcb/memory"
)

func TestMemorySuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "In-Memory Store Suite")
}

var _ = Describe("Store", func() {
	var (
		store     *memory.Store
		tenant    dcb.Tenant
		orderType dcb.EventType
		orderTag  dcb.EventTag
	)

	BeforeEach(func() {
		store = memory.New()
		var err error
		tenant, err = dcb.NewTenant("ginkgo-tenant")
		Expect(err).NotTo(HaveOccurred())
		orderType, err = dcb.NewEventType("order-created")
		Expect(err).NotTo(HaveOccurred())
		orderTag, err = dcb.NewEventTag("order", "987")
		Expect(err).NotTo(HaveOccurred())
	})

	newOrderEvent := func() dcb.EventToPersist {
		raw, _ := json.Marshal(map[string]string{})
		e, err := dcb.NewEventToPersist(orderType, []dcb.EventTag{orderTag}, raw)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	Describe("Append", func() {
		It("assigns strictly increasing positions across a batch", func() {
			events := []dcb.EventToPersist{newOrderEvent(), newOrderEvent(), newOrderEvent()}
			envelopes, err := store.Append(context.Background(), tenant, events)
			Expect(err).NotTo(HaveOccurred())
			Expect(envelopes).To(HaveLen(3))

			var lastPos int64 = -1
			for _, env := range envelopes {
				pos, ok := env.Position()
				Expect(ok).To(BeTrue())
				Expect(pos).To(BeNumerically(">", lastPos))
				lastPos = pos
			}
		})

		It("rejects an append whose consistency boundary is violated", func() {
			e1 := newOrderEvent()
			_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{e1})
			Expect(err).NotTo(HaveOccurred())

			e2 := newOrderEvent()
			boundary := dcb.NewStreamQuery().WithTags(orderTag)
			_, err = store.Append(context.Background(), tenant, []dcb.EventToPersist{e2},
				dcb.WithConsistencyBoundary(boundary))
			Expect(dcb.IsConcurrencyError(err)).To(BeTrue())
			Expect(store.Count(tenant)).To(Equal(1))
		})
	})

	Describe("Stream", func() {
		It("returns nothing for an empty query", func() {
			_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{newOrderEvent()})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery())
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("truncates to maxCount in position order", func() {
			for i := 0; i < 5; i++ {
				_, err := store.Append(context.Background(), tenant, []dcb.EventToPersist{newOrderEvent()})
				Expect(err).NotTo(HaveOccurred())
			}

			got, err := store.Stream(context.Background(), tenant, dcb.NewStreamQuery().WithTags(orderTag), dcb.WithMaxCount(3))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(3))
		})
	})
})
