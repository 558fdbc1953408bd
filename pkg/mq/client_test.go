package mq_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/pkg/mq"
	"github.com/Smehapavi/AgriNex/pkg/mq/mock"
)

var _ = Describe("MQ Client", func() {
	var (
		logger *slog.Logger
		client *mq.Client
	)

	newUnreachable := func() *mq.Client {
		c, err := mq.New(&mq.Config{
			Logger: logger,
			URL:    "amqp://invalid:5672",
			Queue:  "field-records",
		})
		Expect(err).NotTo(HaveOccurred())
		// Give the reconnect goroutine time to fail its first dial.
		time.Sleep(100 * time.Millisecond)
		return c
	}

	BeforeEach(func() {
		client = nil
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	AfterEach(func() {
		if client != nil {
			_ = client.Close()
		}
	})

	Describe("New", func() {
		It("should return error when config is nil", func() {
			c, err := mq.New(nil)
			Expect(err).To(HaveOccurred())
			Expect(c).To(BeNil())
		})

		DescribeTable("required fields",
			func(cfg *mq.Config, substr string) {
				if cfg.Logger == nil && substr != "logger" {
					cfg.Logger = logger
				}
				c, err := mq.New(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(substr))
				Expect(c).To(BeNil())
			},
			Entry("logger", &mq.Config{URL: "amqp://localhost:5672", Queue: "q"}, "logger"),
			Entry("queue", &mq.Config{URL: "amqp://localhost:5672"}, "queue"),
			Entry("url", &mq.Config{Queue: "q"}, "url"),
		)

		It("should bind the configured queue", func() {
			client = newUnreachable()
			Expect(client.Queue()).To(Equal("field-records"))
			Expect(client.Ready()).To(BeFalse())
		})
	})

	Describe("Push", func() {
		Context("when not connected", func() {
			It("should retry with backoff until the context expires", func() {
				client = newUnreachable()

				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, "sensor", []byte("payload"))
				elapsed := time.Since(start)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("context deadline exceeded"))
				Expect(elapsed).To(BeNumerically(">=", 100*time.Millisecond))
			})

			It("should give up after the maximum number of attempts", func() {
				client = newUnreachable()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, "prediction", []byte("payload"))
				elapsed := time.Since(start)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("maximum retry attempts exceeded"))
				// 100ms + 200ms + 400ms + 800ms + 1600ms of backoff
				Expect(elapsed).To(BeNumerically(">=", 3*time.Second))
				Expect(elapsed).To(BeNumerically("<", 10*time.Second))
			})

			It("should stop retrying once the client is closed", func() {
				client = newUnreachable()

				done := make(chan error, 1)
				go func() { done <- client.Push(context.Background(), "sensor", []byte("payload")) }()

				time.Sleep(150 * time.Millisecond)
				_ = client.Close()

				var err error
				Eventually(done, 2*time.Second).Should(Receive(&err))
				Expect(err.Error()).To(ContainSubstring("shutting down"))
			})

			It("should fail UnsafePush immediately", func() {
				client = newUnreachable()

				err := client.UnsafePush(context.Background(), "sensor", []byte("payload"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not connected"))
			})
		})
	})

	Describe("Consume", func() {
		It("should fail when not connected", func() {
			client = newUnreachable()

			_, err := client.Consume()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not connected"))
		})
	})

	Describe("Close", func() {
		It("should report a client that never connected as already closed", func() {
			c := newUnreachable()

			err := c.Close()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("already closed"))

			err = c.Close()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("already closed"))
		})

		It("should tolerate concurrent closes", func() {
			c := newUnreachable()

			done := make(chan bool, 3)
			for i := 0; i < 3; i++ {
				go func() {
					_ = c.Close()
					done <- true
				}()
			}

			for i := 0; i < 3; i++ {
				Eventually(done).Should(Receive())
			}
		})
	})
})

var _ = Describe("MockClient", func() {
	It("should record pushes with their message type", func() {
		m := mock.NewMockClient()

		Expect(m.Push(context.Background(), "sensor", []byte("a"))).To(Succeed())
		Expect(m.Push(context.Background(), "prediction", []byte("b"))).To(Succeed())

		calls := m.Pushed()
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].Type).To(Equal("sensor"))
		Expect(calls[1].Body).To(Equal([]byte("b")))

		m.Reset()
		Expect(m.Pushed()).To(BeEmpty())
	})

	It("should report readiness as configured", func() {
		m := mock.NewMockClient()
		Expect(m.Ready()).To(BeTrue())
		m.NotReady = true
		Expect(m.Ready()).To(BeFalse())
	})
})
