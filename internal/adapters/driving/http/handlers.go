package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// validate checks request structs against their validate tags
var validate = validator.New()

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and queue connections)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "task queue unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Question answering endpoints

// AskRequest is the request body for answering a single question
type AskRequest struct {
	Question string `json:"question" validate:"required"`
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
}

// AskResponse is the answer payload returned to the caller
type AskResponse struct {
	Answer      string                `json:"answer"`
	Source      domain.AnswerSource   `json:"source"`
	Confidence  float64               `json:"confidence"`
	Snippets    []domain.Snippet      `json:"snippets,omitempty"`
	Weather     *domain.WeatherReport `json:"weather,omitempty"`
	ExternalAPI string                `json:"external_api,omitempty"`
	LatencyMS   int64                 `json:"latency_ms"`
	RecordID    string                `json:"record_id,omitempty"`
}

// handleAsk godoc
// @Summary      Answer a question
// @Description  Runs tiered retrieval, conditional external data, and generation, then records the conversation
// @Tags         Ask
// @Accept       json
// @Produce      json
// @Param        request  body      AskRequest  true  "Question"
// @Success      200      {object}  AskResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Router       /ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	start := time.Now()
	result := s.answerService.Answer(r.Context(), req.Question, userID)
	latency := time.Since(start)

	writeJSON(w, http.StatusOK, s.recordAndBuildResponse(r, req.Question, userID, req.Platform, result, latency))
}

// AskBatchRequest is the request body for answering several questions
type AskBatchRequest struct {
	Questions []string `json:"questions" validate:"required,min=1,max=20"`
	UserID    string   `json:"user_id"`
	Platform  string   `json:"platform"`
}

// AskBatchResponse wraps the per-question answers in request order
type AskBatchResponse struct {
	Answers []AskResponse `json:"answers"`
}

// handleAskBatch godoc
// @Summary      Answer a batch of questions
// @Description  Answers questions sequentially; a failing question yields its fallback entry and the batch continues
// @Tags         Ask
// @Accept       json
// @Produce      json
// @Param        request  body      AskBatchRequest  true  "Questions"
// @Success      200      {object}  AskBatchResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Router       /ask/batch [post]
func (s *Server) handleAskBatch(w http.ResponseWriter, r *http.Request) {
	var req AskBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	answers := make([]AskResponse, 0, len(req.Questions))
	for _, question := range req.Questions {
		start := time.Now()
		result := s.answerService.Answer(r.Context(), question, userID)
		latency := time.Since(start)
		answers = append(answers, s.recordAndBuildResponse(r, question, userID, req.Platform, result, latency))
	}

	writeJSON(w, http.StatusOK, AskBatchResponse{Answers: answers})
}

// recordAndBuildResponse persists the conversation record and shapes the
// API answer. A ledger failure is logged but never fails the request; the
// user already has their answer.
func (s *Server) recordAndBuildResponse(r *http.Request, question, userID, platform string, result *domain.AnswerResult, latency time.Duration) AskResponse {
	resp := AskResponse{
		Answer:      result.Answer,
		Source:      result.Source,
		Confidence:  result.Confidence,
		Snippets:    result.Snippets,
		Weather:     result.Weather,
		ExternalAPI: result.ExternalAPI,
		LatencyMS:   latency.Milliseconds(),
	}

	record, err := s.ledgerService.Record(r.Context(), question, userID, result, latency, platform)
	if err != nil {
		log.Printf("failed to record conversation for user %s: %v", userID, err)
		return resp
	}
	resp.RecordID = record.ID
	return resp
}

// Document endpoints

// IngestDocumentRequest is the request body for adding a knowledge document
type IngestDocumentRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
	Tier    string `json:"tier" validate:"omitempty,oneof=A B C"`
}

// handleIngestDocument godoc
// @Summary      Ingest a document
// @Description  Chunks the content, stores the document as pending, and queues background embedding
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      IngestDocumentRequest  true  "Document"
// @Success      201      {object}  domain.Document
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      500      {object}  ErrorResponse  "Ingest failed"
// @Router       /documents [post]
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	doc, err := s.docService.Ingest(r.Context(), req.Title, req.Content, domain.Tier(req.Tier))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to ingest document")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Lists knowledge documents, optionally scoped to a tier
// @Tags         Documents
// @Produce      json
// @Param        tier    query     string  false  "Tier filter (A, B, or C)"
// @Param        limit   query     int     false  "Page size (default 50)"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {array}   domain.Document
// @Failure      400     {object}  ErrorResponse  "Invalid tier"
// @Router       /documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	tier := domain.Tier(r.URL.Query().Get("tier"))
	if tier != "" && !tier.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown tier %q", tier))
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	docs, err := s.docService.List(r.Context(), tier, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument godoc
// @Summary      Get a document
// @Description  Retrieves a document and its embedding pipeline status
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentChunks godoc
// @Summary      Get a document with chunks
// @Description  Retrieves a document together with its ordered chunks
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.DocumentWithChunks
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id}/chunks [get]
func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docService.GetWithChunks(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete a document
// @Description  Removes the document and all its chunks
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docService.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleReprocessDocument godoc
// @Summary      Reprocess a document
// @Description  Clears stored embeddings and queues the document for re-embedding
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Document not found"
// @Failure      409  {object}  ErrorResponse  "Embedding already in progress"
// @Router       /documents/{id}/reprocess [post]
func (s *Server) handleReprocessDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docService.Reprocess(r.Context(), r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, domain.ErrIngestInProgress):
			writeError(w, http.StatusConflict, "embedding already in progress")
		default:
			writeError(w, http.StatusInternalServerError, "failed to reprocess document")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// Analytics and conversation endpoints

// handleAnalytics godoc
// @Summary      Get analytics
// @Description  Aggregates answer volume, source breakdown, confidence, and latency over a time range
// @Tags         Analytics
// @Produce      json
// @Param        range  query     string  false  "Time range, e.g. 24h, 7d (default 24h)"
// @Success      200    {object}  domain.Analytics
// @Failure      400    {object}  ErrorResponse  "Invalid time range"
// @Router       /analytics [get]
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	timeRange, err := parseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analytics, err := s.ledgerService.Analytics(r.Context(), timeRange)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute analytics")
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

// handleTopQuestions godoc
// @Summary      Most frequent questions
// @Description  Groups questions by exact text within a time range and returns the most frequent
// @Tags         Analytics
// @Produce      json
// @Param        range  query     string  false  "Time range, e.g. 24h, 7d (default 24h)"
// @Param        limit  query     int     false  "Number of questions (default 10)"
// @Success      200    {array}   domain.QuestionCount
// @Failure      400    {object}  ErrorResponse  "Invalid time range"
// @Router       /analytics/top-questions [get]
func (s *Server) handleTopQuestions(w http.ResponseWriter, r *http.Request) {
	timeRange, err := parseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	questions, err := s.ledgerService.TopQuestions(r.Context(), timeRange, queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute top questions")
		return
	}

	writeJSON(w, http.StatusOK, questions)
}

// handleListConversations godoc
// @Summary      List conversation records
// @Description  Returns a filtered, paginated page of conversation records
// @Tags         Analytics
// @Produce      json
// @Param        user_id  query     string  false  "User filter"
// @Param        source   query     string  false  "Answer source filter"
// @Param        start    query     string  false  "Window start (RFC 3339)"
// @Param        end      query     string  false  "Window end (RFC 3339)"
// @Param        search   query     string  false  "Substring match on question or answer"
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Page size (default 50)"
// @Success      200      {object}  domain.RecordPage
// @Failure      400      {object}  ErrorResponse  "Invalid time bound"
// @Router       /conversations [get]
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.RecordFilter{
		UserID: q.Get("user_id"),
		Source: domain.AnswerSource(q.Get("source")),
		Search: q.Get("search"),
		Page:   queryInt(r, "page", 0),
		Limit:  queryInt(r, "limit", 0),
	}

	for param, dst := range map[string]**time.Time{"start": &filter.Start, "end": &filter.End} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s time: must be RFC 3339", param))
			return
		}
		*dst = &ts
	}

	page, err := s.ledgerService.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// handleUserStats godoc
// @Summary      Get user statistics
// @Description  Retrieves a user's aggregate question counters
// @Tags         Analytics
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.UserStats
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /users/{id}/stats [get]
func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledgerService.UserStats(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Weather endpoints

// WeatherResponse combines current conditions with derived farming advice
type WeatherResponse struct {
	Weather *domain.WeatherReport `json:"weather"`
	Advice  domain.FarmingAdvice  `json:"advice"`
}

// handleWeatherCurrent godoc
// @Summary      Current weather with farming advice
// @Description  Returns current conditions for the configured location plus rule-based cassava farming advice
// @Tags         Weather
// @Produce      json
// @Success      200  {object}  WeatherResponse
// @Failure      503  {object}  ErrorResponse  "Weather capability not configured or unavailable"
// @Router       /weather [get]
func (s *Server) handleWeatherCurrent(w http.ResponseWriter, r *http.Request) {
	if s.weatherService == nil {
		writeError(w, http.StatusServiceUnavailable, "weather capability not configured")
		return
	}

	report, err := s.weatherService.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to fetch weather data")
		return
	}

	writeJSON(w, http.StatusOK, WeatherResponse{
		Weather: report,
		Advice:  domain.FarmingAdviceFor(report),
	})
}

// handleWeatherForecast godoc
// @Summary      Weather forecast
// @Description  Returns an aggregated daily forecast for the configured location
// @Tags         Weather
// @Produce      json
// @Param        days  query     int  false  "Number of days (default 5, max 5)"
// @Success      200   {object}  domain.Forecast
// @Failure      503   {object}  ErrorResponse  "Weather capability not configured or unavailable"
// @Router       /weather/forecast [get]
func (s *Server) handleWeatherForecast(w http.ResponseWriter, r *http.Request) {
	if s.weatherService == nil {
		writeError(w, http.StatusServiceUnavailable, "weather capability not configured")
		return
	}

	forecast, err := s.weatherService.Forecast(r.Context(), queryInt(r, "days", 5))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to fetch weather forecast")
		return
	}

	writeJSON(w, http.StatusOK, forecast)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// validationMessage flattens validator errors into one readable message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	parts := make([]string, len(verrs))
	for i, e := range verrs {
		parts[i] = fmt.Sprintf("%s failed on '%s'", e.Field(), e.Tag())
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// queryInt parses an integer query parameter, falling back on the default
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseTimeRange parses a duration like "24h" or "7d" (days are not a
// stdlib duration unit but are the natural way to ask for analytics)
func parseTimeRange(raw string) (time.Duration, error) {
	if raw == "" {
		return 24 * time.Hour, nil
	}

	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid time range %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid time range %q", raw)
	}
	return d, nil
}
