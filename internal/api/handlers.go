package api

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Smehapavi/AgriNex/internal/decision"
	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/internal/history"
	"github.com/Smehapavi/AgriNex/internal/mlclient"
	"github.com/Smehapavi/AgriNex/internal/spray"
)

const (
	recentPredictions   = 10
	maxPredictions      = 500
	defaultAnalyticsMax = 100
)

var errNoClassifier = errors.New("image classification is not configured")

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleRecentPredictions(c *fiber.Ctx) error {
	return s.listPredictions(c, recentPredictions)
}

func (s *Server) handleAllPredictions(c *fiber.Ctx) error {
	return s.listPredictions(c, maxPredictions)
}

func (s *Server) listPredictions(c *fiber.Ctx, n int) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	preds, err := s.store.LatestPredictions(ctx, n)
	if err != nil {
		return err
	}
	return c.JSON(preds)
}

type createPredictionRequest struct {
	Location       *domain.FieldPosition `json:"location"`
	Confidence     *float64              `json:"confidence"`
	Disease        string                `json:"disease"`
	Severity       string                `json:"severity"`
	Status         string                `json:"status"`
	PlantID        string                `json:"plantId"`
	Recommendation string                `json:"recommendation"`
}

func (s *Server) handleCreatePrediction(c *fiber.Ctx) error {
	var req createPredictionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.Disease == "" || req.Severity == "" || req.Status == "" {
		return &domain.ValidationError{Field: "body", Reason: "disease, severity and status are required"}
	}

	severity, err := domain.ParseSeverity(req.Severity)
	if err != nil {
		return err
	}

	status, err := domain.ParsePlantStatus(req.Status)
	if err != nil {
		return err
	}

	p := domain.Prediction{
		PlantID:        req.PlantID,
		DiseaseName:    req.Disease,
		Severity:       severity,
		Status:         status,
		Location:       req.Location,
		Recommendation: req.Recommendation,
	}
	if req.Confidence != nil {
		p.Confidence = *req.Confidence
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	stored, err := s.store.AppendPrediction(ctx, p)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "prediction": stored})
}

func (s *Server) handleDeletePredictions(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.store.Clear(ctx, domain.KindPrediction); err != nil {
		return err
	}

	s.logger.Info("all predictions deleted")
	return c.JSON(fiber.Map{"success": true, "message": "All predictions deleted."})
}

func (s *Server) handleLatestSensor(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	reading, err := s.store.LatestSensorReading(ctx)
	if err != nil {
		return err
	}
	if reading == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(reading)
}

func (s *Server) handleCreateSensor(c *fiber.Ctx) error {
	var reading domain.SensorReading
	if err := parseBody(c, &reading); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	stored, err := s.store.AppendSensorReading(ctx, reading)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "sensor": stored})
}

func (s *Server) handleSpray(c *fiber.Ctx) error {
	var cmd spray.Command
	if err := parseBody(c, &cmd); err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	log, err := s.sprayer.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  fmt.Sprintf("Spray command executed on nozzle %s", log.NozzleID),
		"sprayLog": log,
	})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	if raw := c.Query("type"); raw != "" {
		kind, err := domain.ParseKind(raw)
		if err != nil {
			return &domain.ValidationError{Field: "type", Reason: "must be one of predictions, sensors, sprays"}
		}

		limit, err := queryInt(c, "limit", history.DefaultLimit)
		if err != nil {
			return err
		}

		entries, err := s.history.AggregateKind(ctx, kind, limit)
		if err != nil {
			return err
		}
		return c.JSON(entries)
	}

	perKind, err := queryInt(c, "perKind", history.DefaultPerKind)
	if err != nil {
		return err
	}

	entries, err := s.history.Aggregate(ctx, perKind)
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (s *Server) handleMLPredict(c *fiber.Ctx) error {
	filename, image, err := readImage(c)
	if err != nil {
		return err
	}

	if len(image) == 0 {
		return &domain.ValidationError{Field: "image", Reason: "no image uploaded"}
	}

	if s.classifier == nil {
		return &domain.UpstreamError{Service: mlclient.ServiceName, Err: errNoClassifier}
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	p, err := s.classifier.Predict(ctx, filename, image)
	if err != nil {
		return err
	}

	stored, err := s.store.AppendPrediction(ctx, p)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "prediction": stored})
}

// readImage accepts either a multipart upload in the "image" field or the raw request body.
func readImage(c *fiber.Ctx) (string, []byte, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return "", c.Body(), nil
	}

	header, err := c.FormFile("image")
	if err != nil {
		return "", nil, &domain.ValidationError{Field: "image", Reason: "no image uploaded"}
	}

	file, err := header.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return header.Filename, image, nil
}

func (s *Server) handleRecommendation(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	snapshot, err := s.recommender.Recommend(ctx)
	if err != nil {
		return err
	}
	return c.JSON(snapshot)
}

type executeRecommendationRequest struct {
	NozzleID string `json:"nozzleId"`
}

func (s *Server) handleExecuteRecommendation(c *fiber.Ctx) error {
	var req executeRecommendationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.NozzleID == "" {
		return &domain.ValidationError{Field: "nozzleId", Reason: "is required"}
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	snapshot, err := s.recommender.Recommend(ctx)
	if err != nil {
		return err
	}

	log, err := decision.Act(ctx, s.sprayer, snapshot.Recommendation, req.NozzleID)
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"success":        true,
		"executed":       log != nil,
		"recommendation": snapshot.Recommendation,
	}
	if log != nil {
		resp["message"] = fmt.Sprintf("Spray command executed on nozzle %s", log.NozzleID)
		resp["sprayLog"] = log
	} else {
		resp["message"] = "No spraying needed"
	}
	return c.JSON(resp)
}

// DiseaseCount is one row of the disease analytics.
type DiseaseCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (s *Server) handleDiseaseAnalytics(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultAnalyticsMax)
	if err != nil {
		return err
	}
	if limit > maxPredictions {
		limit = maxPredictions
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	preds, err := s.store.LatestPredictions(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"total":    len(preds),
		"diseases": CountDiseases(preds),
	})
}

// CountDiseases tallies predictions by disease name, most frequent first and then by name.
func CountDiseases(preds []domain.Prediction) []DiseaseCount {
	counts := make(map[string]int)
	for _, p := range preds {
		counts[p.DiseaseName]++
	}

	out := make([]DiseaseCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, DiseaseCount{Name: name, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// queryInt reads an integer query parameter. Missing or non-positive values fall back to
// def; anything that is not an integer is a validation error.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: key, Reason: "must be an integer"}
	}
	if v <= 0 {
		return def, nil
	}
	return v, nil
}
