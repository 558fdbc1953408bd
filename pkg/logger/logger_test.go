package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Smehapavi/AgriNex/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var entry map[string]any
	ExpectWithOffset(1, json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
	return entry
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("should fall back to defaults for a nil config", func() {
			Expect(logger.New(nil)).NotTo(BeNil())
		})

		It("should write JSON by default", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf})

			log.Info("sensor reading stored", "zone", "A", "soil_moisture", 28.5)

			entry := decodeLine(buf)
			Expect(entry).To(HaveKeyWithValue("msg", "sensor reading stored"))
			Expect(entry).To(HaveKeyWithValue("zone", "A"))
			Expect(entry).To(HaveKeyWithValue("soil_moisture", 28.5))
			Expect(entry).To(HaveKey("time"))
			Expect(entry).To(HaveKey("level"))
		})

		It("should write logfmt text when asked", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf, Format: "TEXT"})

			log.Info("spray executed", "nozzle_id", "nozzle-1")

			Expect(buf.String()).To(ContainSubstring(`msg="spray executed"`))
			Expect(buf.String()).To(ContainSubstring("nozzle_id=nozzle-1"))
		})

		It("should attach the service name", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf, Service: "agrinex-serve"})

			log.Info("started")

			Expect(decodeLine(buf)).To(HaveKeyWithValue("service", "agrinex-serve"))
		})

		It("should include the source position when enabled", func() {
			buf := &bytes.Buffer{}
			log := logger.New(&logger.Config{Output: buf, AddSource: true})

			log.Info("with source")

			Expect(decodeLine(buf)).To(HaveKey("source"))
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("should parse level strings",
			func(input string, expected slog.Level) {
				Expect(logger.ParseLevel(input)).To(Equal(expected))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("info", "info", slog.LevelInfo),
			Entry("warn", "warn", slog.LevelWarn),
			Entry("warning", "warning", slog.LevelWarn),
			Entry("error", "error", slog.LevelError),
			Entry("upper case", "DEBUG", slog.LevelDebug),
			Entry("padded", " error ", slog.LevelError),
			Entry("invalid defaults to info", "verbose", slog.LevelInfo),
			Entry("empty defaults to info", "", slog.LevelInfo),
		)
	})

	Describe("level filtering", func() {
		DescribeTable("should drop records below the configured level",
			func(level slog.Level, write func(*slog.Logger), shouldAppear bool) {
				buf := &bytes.Buffer{}
				write(logger.New(&logger.Config{Level: level, Output: buf}))
				Expect(len(strings.TrimSpace(buf.String())) > 0).To(Equal(shouldAppear))
			},
			Entry("debug at debug", slog.LevelDebug, func(l *slog.Logger) { l.Debug("m") }, true),
			Entry("debug at info", slog.LevelInfo, func(l *slog.Logger) { l.Debug("m") }, false),
			Entry("warn at info", slog.LevelInfo, func(l *slog.Logger) { l.Warn("m") }, true),
			Entry("info at error", slog.LevelError, func(l *slog.Logger) { l.Info("m") }, false),
		)
	})

	Describe("WithComponent", func() {
		It("should tag records with the component", func() {
			buf := &bytes.Buffer{}
			log := logger.WithComponent(logger.New(&logger.Config{Output: buf}), "autopilot")

			log.Info("tick")

			Expect(decodeLine(buf)).To(HaveKeyWithValue("component", "autopilot"))
		})
	})

	Describe("WithContext", func() {
		It("should add the attributes to every record", func() {
			buf := &bytes.Buffer{}
			log := logger.WithContext(logger.New(&logger.Config{Output: buf}),
				slog.String("station_id", "st-1"),
				slog.Int("batch", 3),
			)

			log.Info("batch published")

			entry := decodeLine(buf)
			Expect(entry).To(HaveKeyWithValue("station_id", "st-1"))
			Expect(entry).To(HaveKeyWithValue("batch", float64(3)))
		})
	})

	Describe("DefaultConfig", func() {
		It("should use JSON at info level", func() {
			cfg := logger.DefaultConfig()
			Expect(cfg.Level).To(Equal(slog.LevelInfo))
			Expect(cfg.Format).To(Equal(logger.FormatJSON))
			Expect(cfg.AddSource).To(BeFalse())
		})
	})
})
