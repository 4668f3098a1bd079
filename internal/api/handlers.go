package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/topicast/topicast/internal/metrics"
	"github.com/topicast/topicast/pkg/topicast"
	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
)

type handlers struct {
	engine  *topicast.Topicast
	version string
	log     *zap.Logger
}

type examView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type subjectView struct {
	ID     int64  `json:"id"`
	ExamID int64  `json:"exam_id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
}

type chapterView struct {
	ID             int64  `json:"id"`
	SubjectID      int64  `json:"subject_id"`
	Name           string `json:"name"`
	WeightageMarks int    `json:"weightage_marks"`
	OrderIndex     int    `json:"order_index"`
}

func toExamView(e store.Exam) examView {
	return examView{ID: e.ID, Name: e.Name, FullName: e.FullName, Category: e.Category, Description: e.Description}
}

func toExamViews(exams []store.Exam) []examView {
	views := make([]examView, len(exams))
	for i, e := range exams {
		views[i] = toExamView(e)
	}
	return views
}

func (h *handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "Topicast API",
		"version": h.version,
	})
}

func (h *handlers) HealthDB(c *fiber.Ctx) error {
	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"database":    "connected",
		"exams_count": stats.Exams,
	})
}

func (h *handlers) Analyze(c *fiber.Ctx) error {
	return h.runAnalysis(c, c.Query("exam"), c.Query("subject"), c.Query("chapter"))
}

func (h *handlers) AnalyzePost(c *fiber.Ctx) error {
	var req struct {
		Exam    string `json:"exam"`
		Subject string `json:"subject"`
		Chapter string `json:"chapter"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	return h.runAnalysis(c, req.Exam, req.Subject, req.Chapter)
}

func (h *handlers) runAnalysis(c *fiber.Ctx, exam, subject, chapter string) error {
	if exam == "" || subject == "" {
		metrics.AnalysisTotal.WithLabelValues("invalid").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "exam and subject are required",
		})
	}

	start := time.Now()
	report, err := h.engine.Analyze(c.Context(), exam, subject, chapter)
	if err != nil {
		switch {
		case errors.Is(err, internalerr.ErrNotFound):
			metrics.AnalysisTotal.WithLabelValues("not_found").Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, internalerr.ErrInvalidInput):
			metrics.AnalysisTotal.WithLabelValues("invalid").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			h.log.Error("analysis failed",
				zap.String("exam", exam),
				zap.String("subject", subject),
				zap.Error(err))
			metrics.AnalysisTotal.WithLabelValues("error").Inc()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Analysis failed"})
		}
	}

	metrics.AnalysisTotal.WithLabelValues("success").Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	for _, p := range report.Predictions {
		metrics.PredictionProbability.Observe(float64(p.Probability) / 100)
	}

	return c.JSON(report)
}

func (h *handlers) Process(c *fiber.Ctx) error {
	var req struct {
		Directory string `json:"directory"`
		Exam      string `json:"exam"`
		Subject   string `json:"subject"`
		Limit     int    `json:"limit"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Directory == "" || req.Exam == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "directory and exam are required",
		})
	}

	start := time.Now()
	summary, err := h.engine.ProcessExamDir(c.Context(), req.Directory, req.Exam, req.Subject, req.Limit)
	if err != nil {
		if errors.Is(err, internalerr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("batch processing failed",
			zap.String("directory", req.Directory),
			zap.String("exam", req.Exam),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Processing failed"})
	}
	metrics.BatchDuration.Observe(time.Since(start).Seconds())

	return c.JSON(summary)
}

func (h *handlers) ListExams(c *fiber.Ctx) error {
	exams, err := h.engine.Query().Exams(c.Context())
	if err != nil {
		h.log.Error("listing exams", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list exams"})
	}
	return c.JSON(toExamViews(exams))
}

func (h *handlers) SearchExams(c *fiber.Ctx) error {
	name := c.Params("name")
	exams, err := h.engine.Query().SearchExams(c.Context(), name)
	if err != nil {
		h.log.Error("searching exams", zap.String("name", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Search failed"})
	}
	if len(exams) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "exam '" + name + "': not found",
		})
	}
	return c.JSON(toExamViews(exams))
}

func (h *handlers) ListSubjects(c *fiber.Ctx) error {
	examID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exam id"})
	}

	if _, err := h.engine.Store().GetExam(c.Context(), examID); err != nil {
		if errors.Is(err, internalerr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("loading exam", zap.Int64("exam_id", examID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load exam"})
	}

	subjects, err := h.engine.Store().ListSubjects(c.Context(), examID)
	if err != nil {
		h.log.Error("listing subjects", zap.Int64("exam_id", examID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list subjects"})
	}

	views := make([]subjectView, len(subjects))
	for i, s := range subjects {
		views[i] = subjectView{ID: s.ID, ExamID: s.ExamID, Name: s.Name, Code: s.Code}
	}
	return c.JSON(views)
}

func (h *handlers) ListChapters(c *fiber.Ctx) error {
	subjectID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subject id"})
	}

	if _, err := h.engine.Store().GetSubject(c.Context(), subjectID); err != nil {
		if errors.Is(err, internalerr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("loading subject", zap.Int64("subject_id", subjectID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load subject"})
	}

	chapters, err := h.engine.Store().ListChapters(c.Context(), subjectID)
	if err != nil {
		h.log.Error("listing chapters", zap.Int64("subject_id", subjectID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list chapters"})
	}

	views := make([]chapterView, len(chapters))
	for i, ch := range chapters {
		views[i] = chapterView{ID: ch.ID, SubjectID: ch.SubjectID, Name: ch.Name, WeightageMarks: ch.WeightageMarks, OrderIndex: ch.OrderIndex}
	}
	return c.JSON(views)
}

func (h *handlers) Stats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		h.log.Error("loading stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load stats"})
	}
	return c.JSON(fiber.Map{
		"exams":             stats.Exams,
		"subjects":          stats.Subjects,
		"chapters":          stats.Chapters,
		"questions":         stats.Questions,
		"topic_frequencies": stats.TopicFrequencies,
		"predictions":       stats.Predictions,
		"source_documents":  stats.SourceDocuments,
	})
}

func (h *handlers) ExamStats(c *fiber.Ctx) error {
	examStats, err := h.engine.ExamStats(c.Context(), c.Params("exam"))
	if err != nil {
		if errors.Is(err, internalerr.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("loading exam stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load exam stats"})
	}
	return c.JSON(examStats)
}
