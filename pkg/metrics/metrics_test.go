package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	Describe("StatusLabel", func() {
		It("should map nil to success and errors to error", func() {
			Expect(metrics.StatusLabel(nil)).To(Equal("success"))
			Expect(metrics.StatusLabel(errors.New("boom"))).To(Equal("error"))
		})
	})

	Describe("Handler", func() {
		// Collectors register on a process-wide registry, so every collector set is
		// created once for the whole suite.
		var (
			store  *metrics.StoreMetrics
			ingest *metrics.IngestMetrics
		)

		BeforeEach(func() {
			if store == nil {
				store = metrics.NewStoreMetrics("metrics_test")
				ingest = metrics.NewIngestMetrics("metrics_test")
			}
		})

		scrape := func() string {
			rec := httptest.NewRecorder()
			metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			ExpectWithOffset(1, rec.Code).To(Equal(http.StatusOK))
			body, err := io.ReadAll(rec.Body)
			ExpectWithOffset(1, err).NotTo(HaveOccurred())
			return string(body)
		}

		It("should expose the runtime collectors", func() {
			Expect(scrape()).To(ContainSubstring("go_goroutines"))
		})

		It("should expose registered collectors with their labels", func() {
			store.RecordsAppended.WithLabelValues("sensor").Inc()
			ingest.MessagesTotal.WithLabelValues("prediction", "success").Inc()

			body := scrape()
			Expect(body).To(ContainSubstring(`metrics_test_store_records_appended_total{kind="sensor"}`))
			Expect(body).To(ContainSubstring(`metrics_test_ingest_messages_total{status="success",type="prediction"}`))
		})

		It("should panic when the same collectors are registered twice", func() {
			Expect(func() { metrics.NewStoreMetrics("metrics_test") }).To(Panic())
		})
	})
})
