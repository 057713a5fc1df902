package domain

// AnswerSource labels the provenance of an answer
type AnswerSource string

const (
	// SourceRAG means the answer used only retrieved knowledge-base context
	SourceRAG AnswerSource = "RAG"
	// SourceExternal means retrieval found nothing and external data was used
	SourceExternal AnswerSource = "External"
	// SourceHybrid means both retrieved context and external data were used
	SourceHybrid AnswerSource = "Hybrid"
	// SourceFallback means a canned answer was served without generation
	SourceFallback AnswerSource = "Fallback"
	// SourceError means generation failed and the fixed apology was served
	SourceError AnswerSource = "Error"
)

// Snippet is a retrieval result: chunk text plus similarity and provenance.
// Snippets are produced fresh per query and never persisted.
type Snippet struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Tier       Tier    `json:"tier"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RetrievalResult is the outcome of a tiered knowledge base search.
// Failures are absorbed before this is built: an embedding or store error
// yields Found=false with the cause in Err, never a propagated error.
type RetrievalResult struct {
	Found      bool      `json:"found"`
	Snippets   []Snippet `json:"snippets"`
	Confidence float64   `json:"confidence"`
	Err        string    `json:"error,omitempty"`
}

// Usage holds token accounting reported by the generation capability
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is the raw output of the generation capability
type Generation struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// AnswerResult is the final outcome of answering one question.
// It is immutable after creation; persistence is the ledger's job.
type AnswerResult struct {
	Answer      string         `json:"answer"`
	Source      AnswerSource   `json:"source"`
	Confidence  float64        `json:"confidence"`
	Snippets    []Snippet      `json:"snippets"`
	Weather     *WeatherReport `json:"weather,omitempty"`
	Usage       Usage          `json:"usage"`
	GenError    string         `json:"-"`
	ExternalAPI string         `json:"external_api,omitempty"`
}

// HasExternalData reports whether live external data contributed to the answer
func (r *AnswerResult) HasExternalData() bool {
	return r.Weather != nil
}
