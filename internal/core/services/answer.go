package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driving"
)

// systemPrompt is the fixed instruction for the generation capability.
// The product answers Thai cassava farmers, so the instruction and the
// fallback below stay in Thai.
const systemPrompt = `คุณคือผู้ช่วยด้านมันสำปะหลังสำหรับเกษตรกรไทย
ตอบแบบเข้าใจง่าย กระชับ และเป็นประโยชน์
อ้างอิงข้อมูลจากเอกสารที่มีอยู่ก่อน ถ้าไม่มีจึงหาข้อมูลจากภายนอก

หลักการตอบคำถาม:
1. ใช้ข้อมูลจากเอกสารเป็นหลัก
2. ตอบแบบเข้าใจง่าย ไม่ซับซ้อน
3. ให้คำแนะนำที่ practical และใช้ได้จริง
4. หากไม่แน่ใจ ให้แนะนำให้ปรึกษาผู้เชี่ยวชาญเพิ่มเติม
5. ตอบเป็นภาษาไทยเสมอ`

// fallbackAnswer is served when generation fails. The user always gets an
// answer, worst case this one with source Error and confidence 0.
const fallbackAnswer = `ขออภัย เกิดข้อผิดพลาดในการประมวลผลคำถาม กรุณาลองใหม่อีกครั้งหรือติดต่อผู้ดูแลระบบ`

// batchFallbackAnswer replaces a single failed entry in a batch
const batchFallbackAnswer = `เกิดข้อผิดพลาดในการประมวลผลคำถามนี้`

// weatherKeywords trigger an external weather fetch when present in the
// question (case-insensitive substring match).
var weatherKeywords = []string{"อากาศ", "ฝน", "แดด", "ความชื้น", "อุณหภูมิ", "ดินแห้ง", "น้ำท่วม"}

// Confidence model weights
const (
	confidenceBase    = 0.3
	similarityWeight  = 0.6
	tierABonus        = 0.1
	externalDataBonus = 0.2
)

// Ensure answerService implements AnswerService
var _ driving.AnswerService = (*answerService)(nil)

// answerService orchestrates one question: tiered retrieval, conditional
// external data, generation, confidence scoring. It owns no persistence;
// the caller hands the result to the ledger.
type answerService struct {
	retriever driving.RetrievalService
	llm       driven.LLMService
	weather   driven.WeatherService // nil when unconfigured
	logger    *slog.Logger
}

// NewAnswerService creates a new AnswerService. weather may be nil; the
// orchestrator then answers without external data.
func NewAnswerService(
	retriever driving.RetrievalService,
	llm driven.LLMService,
	weather driven.WeatherService,
	logger *slog.Logger,
) driving.AnswerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &answerService{
		retriever: retriever,
		llm:       llm,
		weather:   weather,
		logger:    logger,
	}
}

// Answer runs the full pipeline. It never returns an error: every failure
// of a dependent capability degrades into a well-formed AnswerResult.
func (s *answerService) Answer(ctx context.Context, question, userID string) *domain.AnswerResult {
	start := time.Now()
	s.logger.Info("processing question",
		"user_id", userID,
		"question_length", len(question),
	)

	retrieval := s.retriever.Search(ctx, question)
	s.logger.Info("retrieval completed",
		"user_id", userID,
		"found", retrieval.Found,
		"snippets", len(retrieval.Snippets),
		"confidence", retrieval.Confidence,
	)

	contextBlock := prepareContext(retrieval.Snippets)

	var weather *domain.WeatherReport
	externalAPI := ""
	if !retrieval.Found || needsExternalData(question) {
		weather = s.fetchWeather(ctx, userID)
		if weather != nil {
			externalAPI = s.weather.Name()
		}
	}

	source := domain.SourceRAG
	if weather != nil {
		if retrieval.Found {
			source = domain.SourceHybrid
		} else {
			source = domain.SourceExternal
		}
	}

	gen, err := s.llm.Generate(ctx, systemPrompt, buildPrompt(question, contextBlock, weather))
	if err != nil {
		s.logger.Error("generation failed, serving fallback",
			"user_id", userID,
			"error", err,
			"duration", time.Since(start),
		)
		return &domain.AnswerResult{
			Answer:     fallbackAnswer,
			Source:     domain.SourceError,
			Confidence: 0,
			Snippets:   []domain.Snippet{},
			GenError:   err.Error(),
		}
	}

	confidence := computeConfidence(retrieval.Snippets, weather != nil)

	s.logger.Info("question answered",
		"user_id", userID,
		"source", source,
		"confidence", confidence,
		"duration", time.Since(start),
		"tokens", gen.Usage.TotalTokens,
	)

	return &domain.AnswerResult{
		Answer:      gen.Text,
		Source:      source,
		Confidence:  confidence,
		Snippets:    retrieval.Snippets,
		Weather:     weather,
		Usage:       gen.Usage,
		ExternalAPI: externalAPI,
	}
}

// AnswerBatch answers questions sequentially. One failing entry yields its
// fallback; the rest of the batch proceeds.
func (s *answerService) AnswerBatch(ctx context.Context, questions []string, userID string) []*domain.AnswerResult {
	s.logger.Info("processing batch", "user_id", userID, "count", len(questions))

	results := make([]*domain.AnswerResult, 0, len(questions))
	for _, q := range questions {
		if strings.TrimSpace(q) == "" {
			results = append(results, &domain.AnswerResult{
				Answer:     batchFallbackAnswer,
				Source:     domain.SourceError,
				Confidence: 0,
				Snippets:   []domain.Snippet{},
			})
			continue
		}
		results = append(results, s.Answer(ctx, q, userID))
	}
	return results
}

// fetchWeather fetches current conditions. Failure is never fatal to
// answering: it is logged and the pipeline proceeds without external data.
func (s *answerService) fetchWeather(ctx context.Context, userID string) *domain.WeatherReport {
	if s.weather == nil {
		s.logger.Debug("weather capability not configured", "user_id", userID)
		return nil
	}

	report, err := s.weather.Current(ctx)
	if err != nil {
		s.logger.Warn("weather fetch failed, proceeding without external data",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	s.logger.Info("external data fetched",
		"user_id", userID,
		"location", report.Location,
		"temperature", report.Temperature,
	)
	return report
}

// needsExternalData reports whether the question mentions weather or
// environment concerns.
func needsExternalData(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range weatherKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// prepareContext concatenates snippets as "[<tier><ordinal>] <text>" in
// retrieval order, separated by blank lines.
func prepareContext(snippets []domain.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}

	parts := make([]string, len(snippets))
	for i, sn := range snippets {
		parts[i] = fmt.Sprintf("[%s%d] %s", sn.Tier, i+1, sn.Content)
	}
	return strings.Join(parts, "\n\n")
}

// buildPrompt assembles the user prompt from the question, the retrieved
// context block and, if present, a serialized external-data block.
func buildPrompt(question, contextBlock string, weather *domain.WeatherReport) string {
	prompt := "คำถาม: " + question

	if contextBlock != "" {
		prompt += "\n\nข้อมูลจากฐานความรู้:\n" + contextBlock
	}

	if weather != nil {
		data, err := json.MarshalIndent(weather, "", "  ")
		if err == nil {
			prompt += "\n\nข้อมูลเพิ่มเติม (อากาศ/สภาพแวดล้อม):\n" + string(data)
		}
	}

	return prompt
}

// computeConfidence blends retrieval similarity, tier trust and external
// data presence into a [0,1] score. The base alone keeps it at 0.3; only
// the generation-failure path forces 0.
func computeConfidence(snippets []domain.Snippet, externalData bool) float64 {
	confidence := confidenceBase

	if len(snippets) > 0 {
		sum := 0.0
		tierACount := 0
		for _, sn := range snippets {
			sum += sn.Similarity
			if sn.Tier == domain.TierA {
				tierACount++
			}
		}
		confidence += (sum / float64(len(snippets))) * similarityWeight
		confidence += float64(tierACount) * tierABonus
	}

	if externalData {
		confidence += externalDataBonus
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
