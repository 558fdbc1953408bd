package mlclient_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/mlclient"
)

var _ = Describe("Client", func() {
	var (
		logger   *slog.Logger
		server   *httptest.Server
		reply    func(w http.ResponseWriter, r *http.Request)
		received []byte
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		received = nil
		reply = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"prediction":{"status":"Unhealthy","disease":"Tomato Late Blight","severity":"Moderate"}}`)
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/predict"))
			Expect(r.Method).To(Equal(http.MethodPost))

			file, _, err := r.FormFile("image")
			if err == nil {
				received, _ = io.ReadAll(file)
			}
			reply(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func(timeout time.Duration) *mlclient.Client {
		c, err := mlclient.New(&mlclient.Config{Logger: logger, URL: server.URL + "/", Timeout: timeout})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("New", func() {
		DescribeTable("rejects incomplete configuration",
			func(cfg *mlclient.Config, substr string) {
				c, err := mlclient.New(cfg)
				Expect(err).To(MatchError(ContainSubstring(substr)))
				Expect(c).To(BeNil())
			},
			Entry("nil config", nil, "config cannot be nil"),
			Entry("missing logger", &mlclient.Config{URL: "http://ml"}, "logger"),
			Entry("missing url", &mlclient.Config{Logger: slog.Default()}, "url"),
		)
	})

	It("should upload the image and map an unhealthy classification", func() {
		p, err := newClient(time.Second).Predict(context.Background(), "leaf.jpg", []byte("jpeg-bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(received).To(Equal([]byte("jpeg-bytes")))
		Expect(p.DiseaseName).To(Equal("Tomato Late Blight"))
		Expect(p.Severity).To(Equal(domain.SeverityMedium))
		Expect(p.Status).To(Equal(domain.PlantUnhealthy))
		Expect(p.Validate()).To(Succeed())
	})

	It("should map a healthy classification", func() {
		reply = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"prediction":{"status":"Healthy","disease":null,"confidence":0.93}}`)
		}

		p, err := newClient(time.Second).Predict(context.Background(), "", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(domain.PlantHealthy))
		Expect(p.DiseaseName).To(Equal("Healthy"))
		Expect(p.Severity).To(Equal(domain.SeverityLow))
		Expect(p.Confidence).To(BeNumerically("~", 93, 0.001))
	})

	It("should reject an empty image without calling the service", func() {
		_, err := newClient(time.Second).Predict(context.Background(), "leaf.jpg", nil)
		Expect(domain.IsValidation(err)).To(BeTrue())
		Expect(received).To(BeNil())
	})

	DescribeTable("reports upstream failures",
		func(write func(w http.ResponseWriter), status int) {
			reply = func(w http.ResponseWriter, _ *http.Request) { write(w) }

			_, err := newClient(time.Second).Predict(context.Background(), "leaf.jpg", []byte("x"))
			Expect(errors.Is(err, domain.ErrUpstreamService)).To(BeTrue())
			Expect(domain.IsValidation(err)).To(BeFalse())

			var upstream *domain.UpstreamError
			Expect(errors.As(err, &upstream)).To(BeTrue())
			Expect(upstream.StatusCode).To(Equal(status))
		},
		Entry("error status with message", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"No image uploaded"}`)
		}, http.StatusBadRequest),
		Entry("server error", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
		}, http.StatusInternalServerError),
		Entry("malformed body", func(w http.ResponseWriter) {
			_, _ = io.WriteString(w, `not json`)
		}, 0),
		Entry("missing prediction", func(w http.ResponseWriter) {
			_, _ = io.WriteString(w, `{}`)
		}, 0),
		Entry("unknown severity", func(w http.ResponseWriter) {
			_, _ = io.WriteString(w, `{"prediction":{"status":"Unhealthy","disease":"Rust","severity":"Extreme"}}`)
		}, 0),
		Entry("unhealthy without disease", func(w http.ResponseWriter) {
			_, _ = io.WriteString(w, `{"prediction":{"status":"Unhealthy","severity":"High"}}`)
		}, 0),
	)

	It("should report a timeout as an upstream failure", func() {
		reply = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}

		_, err := newClient(50*time.Millisecond).Predict(context.Background(), "leaf.jpg", []byte("x"))
		Expect(errors.Is(err, domain.ErrUpstreamService)).To(BeTrue())
	})

	It("should report an unreachable service as an upstream failure", func() {
		c, err := mlclient.New(&mlclient.Config{Logger: logger, URL: "http://127.0.0.1:1", Timeout: time.Second})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Predict(context.Background(), "leaf.jpg", []byte("x"))
		Expect(errors.Is(err, domain.ErrUpstreamService)).To(BeTrue())
	})
})
